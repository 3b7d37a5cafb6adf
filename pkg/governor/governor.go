// Package governor enforces the blast-radius invariants, it is the engine's
// core safety contract.
package governor

import (
	"fmt"

	"github.com/saiprakashgorti/KubeLoom/pkg/cerrors"
	"github.com/saiprakashgorti/KubeLoom/pkg/math"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
)

// Authorize evaluates the snapshot and requested fault magnitude against the
// safety policy and returns the approved victim count. It is pure and
// deterministic for a given snapshot, identical inputs always yield the
// identical decision.
func Authorize(snapshot types.InstanceSnapshot, spec types.FaultSpec, policy types.SafetyPolicy) (int, error) {
	healthy := snapshot.HealthyCount()
	requested := ResolveRequested(spec, len(snapshot.Instances))
	if requested == 0 {
		return 0, nil
	}

	maxRemovable := removableHeadroom(healthy, policy.MinHealthyFraction)
	authorized := math.Minimum(math.Minimum(requested, maxRemovable), policy.MaxConcurrentVictims)
	if authorized <= 0 {
		return 0, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeInsufficientHeadroom,
			Reason:    fmt.Sprintf("%d healthy instances with minHealthyFraction %.2f leave no removable headroom", healthy, policy.MinHealthyFraction),
		}
	}
	return authorized, nil
}

// ResolveRequested converts the fault magnitude into an instance count,
// percentage magnitudes round down with a minimum of 1 when the magnitude is
// non-zero
func ResolveRequested(spec types.FaultSpec, total int) int {
	if spec.Percent > 0 {
		if total == 0 {
			return 1
		}
		return math.Maximum(1, math.Adjustment(spec.Percent, total))
	}
	return spec.Count
}

// removableHeadroom is floor(healthy * (1 - minHealthyFraction)), the small
// epsilon guards against float representation error flipping the floor
func removableHeadroom(healthy int, minHealthyFraction float64) int {
	return int(float64(healthy)*(1-minHealthyFraction) + 1e-9)
}
