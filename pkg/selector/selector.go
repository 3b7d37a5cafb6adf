// Package selector picks victim instances from a snapshot, all policies are
// deterministic for a fixed seed so experiment runs are reproducible.
package selector

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/saiprakashgorti/KubeLoom/pkg/cerrors"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
)

// Select picks `count` distinct victims from the snapshot under the given
// policy. The returned clamped flag reports a defensive downgrade when count
// exceeded the snapshot size, the governor already bounded the count so the
// caller logs it instead of failing. The plan is always a subset of the
// snapshot.
func Select(snapshot types.InstanceSnapshot, count int, policy types.SelectionPolicy, weights map[string]float64, seed int64) (types.VictimPlan, bool, error) {
	clamped := false
	if count > len(snapshot.Instances) {
		count = len(snapshot.Instances)
		clamped = true
	}
	if count <= 0 {
		return types.VictimPlan{}, clamped, nil
	}

	var victims []types.Instance
	switch policy {
	case types.PolicyUniform:
		victims = selectUniform(snapshot.Instances, count, seed)
	case types.PolicyOldestFirst:
		victims = selectOldestFirst(snapshot.Instances, count)
	case types.PolicyLabelWeighted:
		victims = selectLabelWeighted(snapshot.Instances, count, weights, seed)
	default:
		return types.VictimPlan{}, clamped, cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: fmt.Sprintf("unsupported selection policy '%s'", policy)}
	}

	// plan order is stable regardless of how the policy picked
	sort.Slice(victims, func(i, j int) bool { return victims[i].ID < victims[j].ID })
	return types.VictimPlan{Victims: victims}, clamped, nil
}

// selectUniform samples without replacement from a seeded source
func selectUniform(instances []types.Instance, count int, seed int64) []types.Instance {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(instances))

	victims := make([]types.Instance, 0, count)
	for _, idx := range perm[:count] {
		victims = append(victims, instances[idx])
	}
	return victims
}

// selectOldestFirst sorts by creation timestamp ascending and takes a prefix,
// ties break by instance id so the result stays deterministic
func selectOldestFirst(instances []types.Instance, count int) []types.Instance {
	ordered := make([]types.Instance, len(instances))
	copy(ordered, instances)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered[:count]
}

// selectLabelWeighted samples proportionally to label-match weight without
// replacement. Every instance carries a base weight of 1 so unmatched
// instances stay selectable, each matching `key=value` weight is added on
// top.
func selectLabelWeighted(instances []types.Instance, count int, weights map[string]float64, seed int64) []types.Instance {
	pool := make([]types.Instance, len(instances))
	copy(pool, instances)
	poolWeights := make([]float64, len(pool))
	for i, instance := range pool {
		poolWeights[i] = instanceWeight(instance, weights)
	}

	rng := rand.New(rand.NewSource(seed))
	victims := make([]types.Instance, 0, count)
	for len(victims) < count {
		total := 0.0
		for _, w := range poolWeights {
			total += w
		}
		pick := rng.Float64() * total
		chosen := len(pool) - 1
		for i, w := range poolWeights {
			pick -= w
			if pick < 0 {
				chosen = i
				break
			}
		}
		victims = append(victims, pool[chosen])
		pool = append(pool[:chosen], pool[chosen+1:]...)
		poolWeights = append(poolWeights[:chosen], poolWeights[chosen+1:]...)
	}
	return victims
}

func instanceWeight(instance types.Instance, weights map[string]float64) float64 {
	weight := 1.0
	for key, value := range instance.Labels {
		if w, ok := weights[key+"="+value]; ok {
			weight += w
		}
	}
	return weight
}
