// Package orchestrator drives one experiment run end to end: resolve,
// govern, select, dispatch faults concurrently, collect results, decide the
// overall verdict.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/saiprakashgorti/KubeLoom/pkg/cluster"
	"github.com/saiprakashgorti/KubeLoom/pkg/executor"
	"github.com/saiprakashgorti/KubeLoom/pkg/governor"
	"github.com/saiprakashgorti/KubeLoom/pkg/inventory"
	"github.com/saiprakashgorti/KubeLoom/pkg/log"
	"github.com/saiprakashgorti/KubeLoom/pkg/reporter"
	"github.com/saiprakashgorti/KubeLoom/pkg/selector"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
	"github.com/saiprakashgorti/KubeLoom/pkg/utils/stringutils"
)

const tracerName = "kubeloom/orchestrator"

// Orchestrator owns cancellation and abort propagation for a run, it is the
// only component that spawns concurrent work
type Orchestrator struct {
	client   cluster.Client
	registry *governor.Registry
	executor *executor.Executor
	reporter reporter.Reporter
	policy   types.SafetyPolicy
	limiter  *rate.Limiter
}

// New assembles an orchestrator, a nil limiter disables dispatch rate
// limiting
func New(client cluster.Client, registry *governor.Registry, exec *executor.Executor, rep reporter.Reporter, policy types.SafetyPolicy, limiter *rate.Limiter) *Orchestrator {
	return &Orchestrator{
		client:   client,
		registry: registry,
		executor: exec,
		reporter: rep,
		policy:   policy,
		limiter:  limiter,
	}
}

// Run executes one experiment against the workload. Governor rejections and
// configuration errors return the rejected result together with the cause,
// an executed run returns a nil error and the verdict carries the outcome.
func (o *Orchestrator) Run(ctx context.Context, ref types.WorkloadRef, spec types.FaultSpec) (types.ExperimentResult, error) {
	result := types.ExperimentResult{
		RunID:     stringutils.GetRunID(),
		Workload:  ref,
		Fault:     spec,
		Verdict:   types.VerdictPending,
		StartedAt: time.Now(),
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "run-experiment", trace.WithAttributes(
		attribute.String("workload", ref.String()),
		attribute.String("fault", string(spec.Kind)),
	))
	defer span.End()

	// configuration errors fail before any cluster contact
	if err := ref.Validate(); err != nil {
		return o.reject(result, span, err)
	}
	if err := spec.Validate(); err != nil {
		return o.reject(result, span, err)
	}
	if err := o.policy.Validate(); err != nil {
		return o.reject(result, span, err)
	}

	// reserve the workload, overlapping runs and cooldown fail fast here
	// with zero side effects
	if err := o.registry.Begin(ref); err != nil {
		return o.reject(result, span, err)
	}

	log.InfoWithValues("[Authorizing]: Taking workload snapshot", map[string]interface{}{
		"RunID":    result.RunID,
		"Workload": ref.String(),
	})
	snapshot, err := inventory.Snapshot(ctx, o.client, ref)
	if err != nil {
		o.registry.Finish(ref, 0)
		return o.reject(result, span, err)
	}

	authorized, err := governor.Authorize(snapshot, spec, o.policy)
	if err != nil {
		o.registry.Finish(ref, 0)
		return o.reject(result, span, err)
	}
	log.InfoWithValues("[Authorizing]: Governor approved the request", map[string]interface{}{
		"RunID":      result.RunID,
		"Healthy":    snapshot.HealthyCount(),
		"Authorized": authorized,
	})

	plan, clamped, err := selector.Select(snapshot, authorized, spec.Policy, spec.LabelWeights, spec.Seed)
	if err != nil {
		o.registry.Finish(ref, 0)
		return o.reject(result, span, err)
	}
	if clamped {
		log.Warnf("[Selecting]: Authorized count exceeded the snapshot size, downgraded to %v victims", len(plan.Victims))
	}

	log.InfoWithValues("[Executing]: Dispatching fault actions", map[string]interface{}{
		"RunID":         result.RunID,
		"Victims":       plan.IDs(),
		"MaxConcurrent": o.policy.MaxConcurrentVictims,
	})
	outcomes, cancelled := o.dispatch(ctx, plan, spec)

	// Finalizing: stable total ordering by victim id, completion order is
	// not deterministic
	types.SortOutcomes(outcomes)
	result.Outcomes = outcomes
	result.Verdict = computeVerdict(outcomes, cancelled)
	result.FinishedAt = time.Now()

	// chaos happened, arm the cooldown window for this workload
	o.registry.Finish(ref, o.policy.Cooldown)

	span.SetAttributes(attribute.String("verdict", string(result.Verdict)))
	o.reporter.OnRunFinished(result)
	return result, nil
}

// reject finalizes a run that terminated before any fault was dispatched
func (o *Orchestrator) reject(result types.ExperimentResult, span trace.Span, err error) (types.ExperimentResult, error) {
	result.Verdict = types.VerdictRejected
	result.FinishedAt = time.Now()
	span.SetAttributes(attribute.String("verdict", string(result.Verdict)))
	o.reporter.OnRunFinished(result)
	return result, err
}

// dispatch fans one executor invocation out per victim, bounded by
// maxConcurrentVictims in flight, each invocation is independent and the
// failure of one victim never blocks or cancels its siblings
func (o *Orchestrator) dispatch(ctx context.Context, plan types.VictimPlan, spec types.FaultSpec) ([]types.ActionOutcome, bool) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes []types.ActionOutcome
	)
	cancelled := false
	sem := make(chan struct{}, o.policy.MaxConcurrentVictims)

	record := func(outcome types.ActionOutcome) {
		o.reporter.OnActionOutcome(outcome)
		mu.Lock()
		outcomes = append(outcomes, outcome)
		mu.Unlock()
	}
	skip := func(victim types.Instance, reason string) {
		now := time.Now()
		record(types.ActionOutcome{
			VictimID:   victim.ID,
			Kind:       spec.Kind,
			StartedAt:  now,
			FinishedAt: now,
			Result:     types.OutcomeSkipped,
			Reason:     reason,
		})
	}

	for _, victim := range plan.Victims {
		if ctx.Err() != nil {
			cancelled = true
			skip(victim, "run cancelled before dispatch")
			continue
		}
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				cancelled = true
				skip(victim, "run cancelled while rate limited")
				continue
			}
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			cancelled = true
			skip(victim, "run cancelled before dispatch")
			continue
		}

		wg.Add(1)
		go func(victim types.Instance) {
			defer wg.Done()
			defer func() { <-sem }()
			record(o.executor.Execute(ctx, victim, spec))
		}(victim)
	}

	// join all workers before leaving the Executing state, in-flight
	// rollback obligations complete inside Execute
	wg.Wait()
	if ctx.Err() != nil {
		cancelled = true
	}
	return outcomes, cancelled
}

// computeVerdict folds the outcome list into the run verdict: all success is
// completed, a cancelled run with victims left undone is aborted, anything
// else is partially completed
func computeVerdict(outcomes []types.ActionOutcome, cancelled bool) types.Verdict {
	success, undone := 0, 0
	for _, outcome := range outcomes {
		switch outcome.Result {
		case types.OutcomeSuccess:
			success++
		case types.OutcomeSkipped:
			undone++
		}
	}
	switch {
	case len(outcomes) > 0 && success == len(outcomes):
		return types.VerdictCompleted
	case cancelled && (undone > 0 || success == 0):
		return types.VerdictAborted
	default:
		return types.VerdictPartiallyCompleted
	}
}
