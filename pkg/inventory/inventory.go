// Package inventory captures point-in-time snapshots of a workload's member
// instances.
package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/palantir/stacktrace"
	"github.com/saiprakashgorti/KubeLoom/pkg/cluster"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
	"github.com/saiprakashgorti/KubeLoom/pkg/utils/retry"
)

const (
	listAttempts = 3
	listWait     = 2 * time.Second
	listBackoff  = 2.0
)

// Snapshot queries the orchestration api for the current members of the
// workload. Transient api errors are retried with backoff before giving up,
// the returned snapshot is immutable, a later experiment step takes a fresh
// one.
func Snapshot(ctx context.Context, client cluster.Client, ref types.WorkloadRef) (types.InstanceSnapshot, error) {
	var instances []types.Instance
	if err := retry.
		Times(listAttempts).
		Wait(listWait).
		Backoff(listBackoff).
		TryWithContext(ctx, func(attempt uint) error {
			var err error
			instances, err = client.ListInstances(ctx, ref)
			return err
		}); err != nil {
		return types.InstanceSnapshot{}, stacktrace.Propagate(err, "could not snapshot workload %s", ref.String())
	}

	// stable order so seeded selection is reproducible across identical views
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].ID < instances[j].ID
	})
	return types.InstanceSnapshot{Taken: time.Now(), Instances: instances}, nil
}
