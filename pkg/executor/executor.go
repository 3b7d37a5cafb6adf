// Package executor applies one fault action to one victim with bounded retry
// and a per-attempt timeout.
package executor

import (
	"context"
	"time"

	"github.com/saiprakashgorti/KubeLoom/pkg/cerrors"
	"github.com/saiprakashgorti/KubeLoom/pkg/cluster"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
)

// Config tunes the retry and timeout behaviour shared by all fault kinds
type Config struct {
	// Attempts bounds how often one action is tried on transient api errors
	Attempts uint
	// InitialBackoff is the wait before the second attempt, it grows by
	// BackoffFactor after every retry
	InitialBackoff time.Duration
	BackoffFactor  float64
	// AttemptTimeout is the hard per-attempt deadline, for timed faults the
	// injected duration is added on top
	AttemptTimeout time.Duration
	// RevertGrace bounds how long a rollback may take after the run context
	// is gone
	RevertGrace time.Duration
	// Injection carries the cluster-level injection knobs
	Injection cluster.InjectionParams
}

// DefaultConfig returns the executor defaults used by the CLI
func DefaultConfig() Config {
	return Config{
		Attempts:       3,
		InitialBackoff: 2 * time.Second,
		BackoffFactor:  2,
		AttemptTimeout: 30 * time.Second,
		RevertGrace:    30 * time.Second,
		Injection: cluster.InjectionParams{
			NetworkInterface: "eth0",
			StressCommand:    "md5sum /dev/zero",
			KillCommand:      "kill $(find /proc -name exe -lname '*/md5sum' 2>&1 | sed 's/\\/proc\\/\\(.*\\)\\/exe/\\1/')",
		},
	}
}

// Handler applies one fault kind to one victim. Side-effecting kinds own the
// full inject-wait-revert cycle and must guarantee the revert on every exit
// path including cancellation.
type Handler interface {
	Kind() types.FaultKind
	Apply(ctx context.Context, target types.Instance, spec types.FaultSpec) error
}

// Executor dispatches fault actions to the handler registered for the kind
type Executor struct {
	config   Config
	handlers map[types.FaultKind]Handler
}

// New returns an executor with the built-in fault kinds registered
func New(client cluster.Client, config Config) *Executor {
	e := &Executor{
		config:   config,
		handlers: make(map[types.FaultKind]Handler),
	}
	e.Register(&terminateFault{client: client})
	e.Register(&injectedFault{client: client, kind: types.FaultNetworkDelay, params: config.Injection, revertGrace: config.RevertGrace})
	e.Register(&injectedFault{client: client, kind: types.FaultResourceStress, params: config.Injection, revertGrace: config.RevertGrace})
	return e
}

// Register adds a fault handler, new kinds plug in here instead of modifying
// the executor
func (e *Executor) Register(handler Handler) {
	e.handlers[handler.Kind()] = handler
}

// Execute runs one fault action against one victim and always returns an
// outcome, never an error. Transient api errors are retried with exponential
// backoff up to the configured bound, a per-attempt timeout converts to a
// timed-out outcome rather than retrying indefinitely.
func (e *Executor) Execute(ctx context.Context, target types.Instance, spec types.FaultSpec) types.ActionOutcome {
	outcome := types.ActionOutcome{
		VictimID:  target.ID,
		Kind:      spec.Kind,
		StartedAt: time.Now(),
	}

	handler, ok := e.handlers[spec.Kind]
	if !ok {
		return e.finalize(outcome, cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Target: target.ID, Reason: "no handler registered for fault kind '" + string(spec.Kind) + "'"})
	}
	if ctx.Err() != nil {
		outcome.Result = types.OutcomeSkipped
		outcome.Reason = "run cancelled before dispatch"
		outcome.FinishedAt = time.Now()
		return outcome
	}

	attemptTimeout := e.config.AttemptTimeout
	if spec.Duration > 0 {
		attemptTimeout += spec.Duration
	}

	wait := e.config.InitialBackoff
	var err error
	for attempt := uint(0); attempt < e.config.Attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		err = handler.Apply(attemptCtx, target, spec)
		expired := attemptCtx.Err() == context.DeadlineExceeded
		cancel()

		if err == nil {
			break
		}
		if ctx.Err() != nil {
			// run-level cancellation, rollback already ran inside Apply
			if cerrors.GetErrorType(err) == cerrors.ErrorTypeRollbackFailure {
				break
			}
			outcome.Result = types.OutcomeSkipped
			outcome.Reason = "run cancelled mid-flight"
			outcome.FinishedAt = time.Now()
			return outcome
		}
		if expired {
			err = cerrors.Error{ErrorCode: cerrors.ErrorTypeTimeout, Target: target.ID, Reason: "action exceeded the per-attempt timeout"}
			break
		}
		if !cerrors.IsTransient(err) {
			break
		}
		if attempt+1 == e.config.Attempts {
			break
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			outcome.Result = types.OutcomeSkipped
			outcome.Reason = "run cancelled while backing off"
			outcome.FinishedAt = time.Now()
			return outcome
		}
		wait = time.Duration(float64(wait) * e.config.BackoffFactor)
	}
	return e.finalize(outcome, err)
}

func (e *Executor) finalize(outcome types.ActionOutcome, err error) types.ActionOutcome {
	outcome.FinishedAt = time.Now()
	if err == nil {
		outcome.Result = types.OutcomeSuccess
		return outcome
	}

	reason, code := cerrors.GetRootCauseAndErrorCode(err)
	outcome.Reason = reason
	switch code {
	case cerrors.ErrorTypeTimeout:
		outcome.Result = types.OutcomeTimedOut
	case cerrors.ErrorTypeRollbackFailure:
		outcome.Result = types.OutcomeFailed
		outcome.RollbackFailed = true
	default:
		outcome.Result = types.OutcomeFailed
	}
	return outcome
}
