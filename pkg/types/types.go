package types

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/saiprakashgorti/KubeLoom/pkg/cerrors"
)

// supported workload kinds
const (
	KindDeployment  = "deployment"
	KindStatefulSet = "statefulset"
	KindDaemonSet   = "daemonset"
)

// WorkloadRef identifies the target workload, it is immutable once an
// experiment starts
type WorkloadRef struct {
	Context   string
	Namespace string
	Name      string
	Kind      string
}

// Key returns the registry key for the workload, two refs with the same key
// are treated as the same target for cooldown and active-run accounting
func (w WorkloadRef) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s", w.Context, w.Namespace, w.Kind, w.Name)
}

func (w WorkloadRef) String() string {
	return fmt.Sprintf("%s/%s", w.Kind, w.Name)
}

//Validate checks the workload identity before any cluster contact
func (w WorkloadRef) Validate() error {
	if w.Name == "" || w.Namespace == "" {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Target: w.String(), Reason: "workload name and namespace are required"}
	}
	switch w.Kind {
	case KindDeployment, KindStatefulSet, KindDaemonSet:
		return nil
	}
	return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Target: w.String(), Reason: fmt.Sprintf("unsupported workload kind '%s'", w.Kind)}
}

// ParseWorkloadRef parses the 'kind/name' target notation used on the CLI
func ParseWorkloadRef(target, namespace string) (WorkloadRef, error) {
	parts := strings.SplitN(target, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return WorkloadRef{}, cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Target: target, Reason: "target must be in 'kind/name' format"}
	}
	ref := WorkloadRef{Namespace: namespace, Kind: strings.ToLower(parts[0]), Name: parts[1]}
	if err := ref.Validate(); err != nil {
		return WorkloadRef{}, err
	}
	return ref, nil
}

// Instance is one member of the target workload at snapshot time
type Instance struct {
	ID        string
	CreatedAt time.Time
	Ready     bool
	Labels    map[string]string
	Workload  WorkloadRef
}

// InstanceSnapshot is a point-in-time view of the workload members, it is
// never mutated after capture, a new experiment step takes a fresh snapshot
type InstanceSnapshot struct {
	Taken     time.Time
	Instances []Instance
}

// HealthyCount returns the number of ready instances in the snapshot
func (s InstanceSnapshot) HealthyCount() int {
	count := 0
	for _, instance := range s.Instances {
		if instance.Ready {
			count++
		}
	}
	return count
}

// Contains reports whether the snapshot holds the given instance id
func (s InstanceSnapshot) Contains(id string) bool {
	for _, instance := range s.Instances {
		if instance.ID == id {
			return true
		}
	}
	return false
}

// FaultKind enumerates the supported fault actions
type FaultKind string

const (
	FaultTerminate      FaultKind = "terminate"
	FaultNetworkDelay   FaultKind = "network-delay"
	FaultResourceStress FaultKind = "resource-stress"
)

// SelectionPolicy enumerates the victim selection strategies
type SelectionPolicy string

const (
	PolicyUniform       SelectionPolicy = "uniform"
	PolicyOldestFirst   SelectionPolicy = "oldest-first"
	PolicyLabelWeighted SelectionPolicy = "label-weighted"
)

// FaultSpec describes the fault to inject on the selected victims.
// The magnitude is either an absolute count or a percentage of the snapshot,
// exactly one of the two must be set.
type FaultSpec struct {
	Kind    FaultKind
	Count   int
	Percent int

	// Latency is the netem delay injected by the network-delay fault
	Latency time.Duration
	// Duration is how long an injected fault (delay, stress) stays applied
	// before the executor reverts it
	Duration time.Duration

	Policy       SelectionPolicy
	LabelWeights map[string]float64
	Seed         int64

	// Force deletes the victim with a zero grace period (terminate only)
	Force bool
}

//Validate fails fast with a configuration error before any cluster contact
func (f FaultSpec) Validate() error {
	switch f.Kind {
	case FaultTerminate:
	case FaultNetworkDelay:
		if f.Latency <= 0 {
			return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: "network-delay fault requires a positive latency"}
		}
		if f.Duration <= 0 {
			return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: "network-delay fault requires a positive duration"}
		}
	case FaultResourceStress:
		if f.Duration <= 0 {
			return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: "resource-stress fault requires a positive duration"}
		}
	default:
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: fmt.Sprintf("unsupported fault kind '%s'", f.Kind)}
	}

	if f.Count < 0 || f.Percent < 0 || f.Percent > 100 {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: "fault magnitude out of range"}
	}
	if (f.Count == 0) == (f.Percent == 0) {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: "exactly one of count or percent magnitude must be set"}
	}

	switch f.Policy {
	case PolicyUniform, PolicyOldestFirst:
	case PolicyLabelWeighted:
		if len(f.LabelWeights) == 0 {
			return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: "label-weighted policy requires at least one label weight"}
		}
	default:
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: fmt.Sprintf("unsupported selection policy '%s'", f.Policy)}
	}
	return nil
}

// SafetyPolicy holds the blast-radius invariants enforced by the governor
type SafetyPolicy struct {
	MinHealthyFraction   float64
	MaxConcurrentVictims int
	Cooldown             time.Duration
}

//Validate fails fast with a configuration error on out-of-range invariants
func (p SafetyPolicy) Validate() error {
	if p.MinHealthyFraction <= 0 || p.MinHealthyFraction > 1 {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: "minHealthyFraction must be in (0,1]"}
	}
	if p.MaxConcurrentVictims < 1 {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: "maxConcurrentVictims must be >= 1"}
	}
	if p.Cooldown < 0 {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: "cooldown must not be negative"}
	}
	return nil
}

// VictimPlan is the approved set of instances to act on for one run,
// produced once by the selector and consumed by the orchestrator
type VictimPlan struct {
	Victims []Instance
}

// IDs returns the victim ids in plan order
func (p VictimPlan) IDs() []string {
	ids := make([]string, 0, len(p.Victims))
	for _, victim := range p.Victims {
		ids = append(ids, victim.ID)
	}
	return ids
}

// OutcomeResult enumerates the terminal states of one victim action
type OutcomeResult string

const (
	OutcomeSuccess  OutcomeResult = "success"
	OutcomeFailed   OutcomeResult = "failed"
	OutcomeTimedOut OutcomeResult = "timed-out"
	OutcomeSkipped  OutcomeResult = "skipped"
)

// ActionOutcome records the result of one fault action on one victim, it is
// appended to the run's outcome list and never rewritten
type ActionOutcome struct {
	VictimID   string
	Kind       FaultKind
	StartedAt  time.Time
	FinishedAt time.Time
	Result     OutcomeResult
	Reason     string

	// RollbackFailed marks residual cluster impact, an injected fault that
	// could not be reverted, it is never silently swallowed
	RollbackFailed bool
}

// Verdict enumerates the terminal states of one experiment run
type Verdict string

const (
	VerdictPending            Verdict = "in-progress"
	VerdictCompleted          Verdict = "completed"
	VerdictPartiallyCompleted Verdict = "partially-completed"
	VerdictAborted            Verdict = "aborted"
	VerdictRejected           Verdict = "rejected"
)

// Phase enumerates the orchestrator state machine
type Phase string

const (
	PhasePending     Phase = "Pending"
	PhaseAuthorizing Phase = "Authorizing"
	PhaseSelecting   Phase = "Selecting"
	PhaseExecuting   Phase = "Executing"
	PhaseFinalizing  Phase = "Finalizing"
)

// ExperimentResult is created at run start with a pending verdict and
// finalized exactly once when the orchestrator terminates the run
type ExperimentResult struct {
	RunID      string
	Workload   WorkloadRef
	Fault      FaultSpec
	Outcomes   []ActionOutcome
	Verdict    Verdict
	StartedAt  time.Time
	FinishedAt time.Time
}

// SortOutcomes orders the outcome list by victim id, completion order is not
// deterministic so reporting uses this stable total ordering
func SortOutcomes(outcomes []ActionOutcome) {
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].VictimID < outcomes[j].VictimID
	})
}
