package governor

import (
	"fmt"
	"sync"
	"time"

	"github.com/saiprakashgorti/KubeLoom/pkg/cerrors"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
)

// Registry tracks per-workload cooldown windows and active runs. It is the
// only mutable state shared between runs, guarded by a mutex so two
// concurrent runs against the same workload can never both pass the
// governor. The state lives for the process lifetime only.
type Registry struct {
	mu       sync.Mutex
	active   map[string]struct{}
	cooldown map[string]time.Time
	now      func() time.Time
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		active:   make(map[string]struct{}),
		cooldown: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Begin reserves the workload for one run. It fails fast when another run is
// already executing against the workload or a prior run's cooldown window
// has not elapsed yet.
func (r *Registry) Begin(ref types.WorkloadRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ref.Key()
	if _, ok := r.active[key]; ok {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeRunAlreadyActive, Target: ref.String(), Reason: "another run is already executing against this workload"}
	}
	if until, ok := r.cooldown[key]; ok {
		if r.now().Before(until) {
			return cerrors.Error{ErrorCode: cerrors.ErrorTypeCooldownActive, Target: ref.String(), Reason: fmt.Sprintf("cooldown active for another %v", until.Sub(r.now()).Round(time.Second))}
		}
		delete(r.cooldown, key)
	}
	r.active[key] = struct{}{}
	return nil
}

// Finish releases the workload and arms the cooldown window. A zero cooldown
// leaves no window behind, rejected runs never arm one.
func (r *Registry) Finish(ref types.WorkloadRef, cooldown time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ref.Key()
	delete(r.active, key)
	if cooldown > 0 {
		r.cooldown[key] = r.now().Add(cooldown)
	}
}
