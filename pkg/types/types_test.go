package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiprakashgorti/KubeLoom/pkg/cerrors"
)

func TestParseWorkloadRef(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantKind  string
		wantName  string
		expectErr bool
	}{
		{name: "deployment target", target: "deployment/web", wantKind: KindDeployment, wantName: "web"},
		{name: "statefulset target", target: "statefulset/db", wantKind: KindStatefulSet, wantName: "db"},
		{name: "kind is case insensitive", target: "Deployment/web", wantKind: KindDeployment, wantName: "web"},
		{name: "missing separator", target: "web", expectErr: true},
		{name: "missing name", target: "deployment/", expectErr: true},
		{name: "missing kind", target: "/web", expectErr: true},
		{name: "unsupported kind", target: "cronjob/tick", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseWorkloadRef(tt.target, "default")
			if tt.expectErr {
				require.Error(t, err)
				assert.Equal(t, cerrors.ErrorTypeConfiguration, cerrors.GetErrorType(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, ref.Kind)
			assert.Equal(t, tt.wantName, ref.Name)
			assert.Equal(t, "default", ref.Namespace)
		})
	}
}

func TestWorkloadRefKeyIncludesAllIdentity(t *testing.T) {
	a := WorkloadRef{Namespace: "default", Kind: KindDeployment, Name: "web"}
	b := WorkloadRef{Namespace: "staging", Kind: KindDeployment, Name: "web"}
	c := WorkloadRef{Namespace: "default", Kind: KindStatefulSet, Name: "web"}

	assert.NotEqual(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, a.Key(), WorkloadRef{Namespace: "default", Kind: KindDeployment, Name: "web"}.Key())
}

func TestFaultSpecValidate(t *testing.T) {
	tests := []struct {
		name      string
		spec      FaultSpec
		expectErr bool
	}{
		{
			name: "terminate with count",
			spec: FaultSpec{Kind: FaultTerminate, Count: 2, Policy: PolicyUniform},
		},
		{
			name: "terminate with percent",
			spec: FaultSpec{Kind: FaultTerminate, Percent: 50, Policy: PolicyOldestFirst},
		},
		{
			name:      "both count and percent",
			spec:      FaultSpec{Kind: FaultTerminate, Count: 2, Percent: 50, Policy: PolicyUniform},
			expectErr: true,
		},
		{
			name:      "neither count nor percent",
			spec:      FaultSpec{Kind: FaultTerminate, Policy: PolicyUniform},
			expectErr: true,
		},
		{
			name:      "percent above 100",
			spec:      FaultSpec{Kind: FaultTerminate, Percent: 150, Policy: PolicyUniform},
			expectErr: true,
		},
		{
			name:      "negative count",
			spec:      FaultSpec{Kind: FaultTerminate, Count: -1, Policy: PolicyUniform},
			expectErr: true,
		},
		{
			name: "network delay with latency and duration",
			spec: FaultSpec{Kind: FaultNetworkDelay, Count: 1, Latency: 100 * time.Millisecond, Duration: time.Minute, Policy: PolicyUniform},
		},
		{
			name:      "network delay without latency",
			spec:      FaultSpec{Kind: FaultNetworkDelay, Count: 1, Duration: time.Minute, Policy: PolicyUniform},
			expectErr: true,
		},
		{
			name:      "network delay without duration",
			spec:      FaultSpec{Kind: FaultNetworkDelay, Count: 1, Latency: 100 * time.Millisecond, Policy: PolicyUniform},
			expectErr: true,
		},
		{
			name: "resource stress with duration",
			spec: FaultSpec{Kind: FaultResourceStress, Count: 1, Duration: time.Minute, Policy: PolicyUniform},
		},
		{
			name:      "resource stress without duration",
			spec:      FaultSpec{Kind: FaultResourceStress, Count: 1, Policy: PolicyUniform},
			expectErr: true,
		},
		{
			name:      "unknown fault kind",
			spec:      FaultSpec{Kind: FaultKind("power-cycle"), Count: 1, Policy: PolicyUniform},
			expectErr: true,
		},
		{
			name: "label weighted with weights",
			spec: FaultSpec{Kind: FaultTerminate, Count: 1, Policy: PolicyLabelWeighted, LabelWeights: map[string]float64{"tier=canary": 2}},
		},
		{
			name:      "label weighted without weights",
			spec:      FaultSpec{Kind: FaultTerminate, Count: 1, Policy: PolicyLabelWeighted},
			expectErr: true,
		},
		{
			name:      "unknown policy",
			spec:      FaultSpec{Kind: FaultTerminate, Count: 1, Policy: SelectionPolicy("round-robin")},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.expectErr {
				require.Error(t, err)
				assert.Equal(t, cerrors.ErrorTypeConfiguration, cerrors.GetErrorType(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSafetyPolicyValidate(t *testing.T) {
	valid := SafetyPolicy{MinHealthyFraction: 0.5, MaxConcurrentVictims: 2, Cooldown: time.Minute}
	require.NoError(t, valid.Validate())

	assert.Error(t, SafetyPolicy{MinHealthyFraction: 0, MaxConcurrentVictims: 2}.Validate())
	assert.Error(t, SafetyPolicy{MinHealthyFraction: 1.1, MaxConcurrentVictims: 2}.Validate())
	assert.Error(t, SafetyPolicy{MinHealthyFraction: 0.5, MaxConcurrentVictims: 0}.Validate())
	assert.Error(t, SafetyPolicy{MinHealthyFraction: 0.5, MaxConcurrentVictims: 2, Cooldown: -time.Second}.Validate())

	// fully healthy is a legal floor
	assert.NoError(t, SafetyPolicy{MinHealthyFraction: 1, MaxConcurrentVictims: 1}.Validate())
}

func TestSnapshotHealthyCount(t *testing.T) {
	snapshot := InstanceSnapshot{Instances: []Instance{
		{ID: "a", Ready: true},
		{ID: "b"},
		{ID: "c", Ready: true},
	}}

	assert.Equal(t, 2, snapshot.HealthyCount())
	assert.True(t, snapshot.Contains("b"))
	assert.False(t, snapshot.Contains("d"))
}

func TestSortOutcomes(t *testing.T) {
	outcomes := []ActionOutcome{
		{VictimID: "pod-c"},
		{VictimID: "pod-a"},
		{VictimID: "pod-b"},
	}
	SortOutcomes(outcomes)

	assert.Equal(t, "pod-a", outcomes[0].VictimID)
	assert.Equal(t, "pod-b", outcomes[1].VictimID)
	assert.Equal(t, "pod-c", outcomes[2].VictimID)
}
