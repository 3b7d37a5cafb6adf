package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiprakashgorti/KubeLoom/pkg/cerrors"
	"github.com/saiprakashgorti/KubeLoom/pkg/cluster"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
)

type scriptedClient struct {
	errs      []error
	instances []types.Instance
	calls     int
}

func (c *scriptedClient) ListInstances(ctx context.Context, ref types.WorkloadRef) ([]types.Instance, error) {
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return c.instances, nil
}

func (c *scriptedClient) DeleteInstance(ctx context.Context, ref types.WorkloadRef, id string, force bool) error {
	return nil
}

func (c *scriptedClient) ExecInjection(ctx context.Context, ref types.WorkloadRef, id string, kind types.FaultKind, params cluster.InjectionParams) (*cluster.InjectionHandle, error) {
	return nil, nil
}

func (c *scriptedClient) RevertInjection(ctx context.Context, handle *cluster.InjectionHandle) error {
	return nil
}

func webRef() types.WorkloadRef {
	return types.WorkloadRef{Namespace: "default", Kind: types.KindDeployment, Name: "web"}
}

func TestSnapshotSortsInstancesByID(t *testing.T) {
	client := &scriptedClient{instances: []types.Instance{
		{ID: "pod-c", Ready: true},
		{ID: "pod-a", Ready: true},
		{ID: "pod-b"},
	}}

	snapshot, err := Snapshot(context.Background(), client, webRef())

	require.NoError(t, err)
	require.Len(t, snapshot.Instances, 3)
	assert.Equal(t, "pod-a", snapshot.Instances[0].ID)
	assert.Equal(t, "pod-b", snapshot.Instances[1].ID)
	assert.Equal(t, "pod-c", snapshot.Instances[2].ID)
	assert.Equal(t, 2, snapshot.HealthyCount())
	assert.False(t, snapshot.Taken.IsZero())
}

func TestSnapshotRetriesTransientErrors(t *testing.T) {
	client := &scriptedClient{
		errs: []error{
			cerrors.Error{ErrorCode: cerrors.ErrorTypeTransientAPI, Reason: "throttled"},
		},
		instances: []types.Instance{{ID: "pod-a", Ready: true}},
	}

	snapshot, err := Snapshot(context.Background(), client, webRef())

	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
	assert.Len(t, snapshot.Instances, 1)
}

func TestSnapshotGivesUpOnPermanentError(t *testing.T) {
	client := &scriptedClient{
		errs: []error{
			cerrors.Error{ErrorCode: cerrors.ErrorTypeResourceNotFound, Reason: "deployment not found"},
		},
	}

	_, err := Snapshot(context.Background(), client, webRef())

	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
	// the root cause survives the propagation wrapper
	_, code := cerrors.GetRootCauseAndErrorCode(err)
	assert.Equal(t, cerrors.ErrorTypeResourceNotFound, code)
	assert.True(t, cerrors.IsRejection(err))
}
