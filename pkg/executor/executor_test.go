package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiprakashgorti/KubeLoom/pkg/cerrors"
	"github.com/saiprakashgorti/KubeLoom/pkg/cluster"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
)

// fakeClient scripts the cluster collaborator per operation, errors are
// consumed in order and the zero value succeeds everything
type fakeClient struct {
	mu           sync.Mutex
	deleteErrs   []error
	injectErrs   []error
	revertErr    error
	deleteCalls  int
	injectCalls  int
	revertCalls  int
	revertedByID map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{revertedByID: make(map[string]int)}
}

func (f *fakeClient) ListInstances(ctx context.Context, ref types.WorkloadRef) ([]types.Instance, error) {
	return nil, nil
}

func (f *fakeClient) DeleteInstance(ctx context.Context, ref types.WorkloadRef, id string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if len(f.deleteErrs) > 0 {
		err := f.deleteErrs[0]
		f.deleteErrs = f.deleteErrs[1:]
		return err
	}
	return nil
}

func (f *fakeClient) ExecInjection(ctx context.Context, ref types.WorkloadRef, id string, kind types.FaultKind, params cluster.InjectionParams) (*cluster.InjectionHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injectCalls++
	if len(f.injectErrs) > 0 {
		err := f.injectErrs[0]
		f.injectErrs = f.injectErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &cluster.InjectionHandle{Victim: id, Namespace: ref.Namespace, Kind: kind, RevertCmd: "revert"}, nil
}

func (f *fakeClient) RevertInjection(ctx context.Context, handle *cluster.InjectionHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revertCalls++
	f.revertedByID[handle.Victim]++
	return f.revertErr
}

func fastConfig() Config {
	config := DefaultConfig()
	config.InitialBackoff = time.Millisecond
	config.AttemptTimeout = time.Second
	config.RevertGrace = time.Second
	return config
}

func target(id string) types.Instance {
	return types.Instance{
		ID:       id,
		Ready:    true,
		Workload: types.WorkloadRef{Namespace: "default", Kind: types.KindDeployment, Name: "web"},
	}
}

func transientErr() error {
	return cerrors.Error{ErrorCode: cerrors.ErrorTypeTransientAPI, Reason: "the server is currently unable to handle the request"}
}

func TestExecuteTerminateSuccess(t *testing.T) {
	client := newFakeClient()
	e := New(client, fastConfig())

	outcome := e.Execute(context.Background(), target("pod-a"), types.FaultSpec{Kind: types.FaultTerminate, Count: 1})

	assert.Equal(t, types.OutcomeSuccess, outcome.Result)
	assert.Equal(t, "pod-a", outcome.VictimID)
	assert.Equal(t, 1, client.deleteCalls)
	assert.False(t, outcome.RollbackFailed)
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	client := newFakeClient()
	client.deleteErrs = []error{transientErr(), transientErr()}
	e := New(client, fastConfig())

	outcome := e.Execute(context.Background(), target("pod-a"), types.FaultSpec{Kind: types.FaultTerminate, Count: 1})

	assert.Equal(t, types.OutcomeSuccess, outcome.Result)
	assert.Equal(t, 3, client.deleteCalls)
}

func TestExecuteExhaustsRetryAttempts(t *testing.T) {
	client := newFakeClient()
	client.deleteErrs = []error{transientErr(), transientErr(), transientErr(), transientErr()}
	e := New(client, fastConfig())

	outcome := e.Execute(context.Background(), target("pod-a"), types.FaultSpec{Kind: types.FaultTerminate, Count: 1})

	assert.Equal(t, types.OutcomeFailed, outcome.Result)
	assert.Equal(t, 3, client.deleteCalls)
	assert.NotEmpty(t, outcome.Reason)
}

func TestExecuteDoesNotRetryPermanentErrors(t *testing.T) {
	client := newFakeClient()
	client.deleteErrs = []error{cerrors.Error{ErrorCode: cerrors.ErrorTypeResourceNotFound, Reason: "pod not found"}}
	e := New(client, fastConfig())

	outcome := e.Execute(context.Background(), target("pod-a"), types.FaultSpec{Kind: types.FaultTerminate, Count: 1})

	assert.Equal(t, types.OutcomeFailed, outcome.Result)
	assert.Equal(t, 1, client.deleteCalls)
}

func TestExecuteUnknownFaultKind(t *testing.T) {
	client := newFakeClient()
	e := New(client, fastConfig())

	outcome := e.Execute(context.Background(), target("pod-a"), types.FaultSpec{Kind: types.FaultKind("power-cycle")})

	assert.Equal(t, types.OutcomeFailed, outcome.Result)
	assert.Zero(t, client.deleteCalls)
}

func TestExecuteSkipsWhenAlreadyCancelled(t *testing.T) {
	client := newFakeClient()
	e := New(client, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := e.Execute(ctx, target("pod-a"), types.FaultSpec{Kind: types.FaultTerminate, Count: 1})

	assert.Equal(t, types.OutcomeSkipped, outcome.Result)
	assert.Zero(t, client.deleteCalls)
}

func TestExecuteNetworkDelayInjectsAndReverts(t *testing.T) {
	client := newFakeClient()
	e := New(client, fastConfig())

	spec := types.FaultSpec{
		Kind:     types.FaultNetworkDelay,
		Count:    1,
		Latency:  100 * time.Millisecond,
		Duration: 20 * time.Millisecond,
	}
	outcome := e.Execute(context.Background(), target("pod-a"), spec)

	assert.Equal(t, types.OutcomeSuccess, outcome.Result)
	assert.Equal(t, 1, client.injectCalls)
	assert.Equal(t, 1, client.revertCalls)
}

func TestExecuteRevertsOnCancellation(t *testing.T) {
	client := newFakeClient()
	e := New(client, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	spec := types.FaultSpec{
		Kind:     types.FaultResourceStress,
		Count:    1,
		Duration: time.Hour,
	}
	outcome := e.Execute(ctx, target("pod-a"), spec)

	// the injected fault was reverted even though the run was cancelled
	assert.Equal(t, 1, client.revertedByID["pod-a"])
	assert.Equal(t, types.OutcomeSkipped, outcome.Result)
	assert.False(t, outcome.RollbackFailed)
}

func TestExecuteSurfacesRollbackFailure(t *testing.T) {
	client := newFakeClient()
	client.revertErr = cerrors.Error{ErrorCode: cerrors.ErrorTypeRollbackFailure, Target: "pod-a", Reason: "failed to revert network-delay injection"}
	e := New(client, fastConfig())

	spec := types.FaultSpec{
		Kind:     types.FaultNetworkDelay,
		Count:    1,
		Latency:  100 * time.Millisecond,
		Duration: 20 * time.Millisecond,
	}
	outcome := e.Execute(context.Background(), target("pod-a"), spec)

	assert.Equal(t, types.OutcomeFailed, outcome.Result)
	assert.True(t, outcome.RollbackFailed)
	assert.NotEmpty(t, outcome.Reason)
}

func TestExecuteRollbackFailureDominatesCancellation(t *testing.T) {
	client := newFakeClient()
	client.revertErr = cerrors.Error{ErrorCode: cerrors.ErrorTypeRollbackFailure, Target: "pod-a", Reason: "failed to revert resource-stress injection"}
	e := New(client, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	spec := types.FaultSpec{
		Kind:     types.FaultResourceStress,
		Count:    1,
		Duration: time.Hour,
	}
	outcome := e.Execute(ctx, target("pod-a"), spec)

	// residual impact is never reported as a plain skip
	assert.Equal(t, types.OutcomeFailed, outcome.Result)
	assert.True(t, outcome.RollbackFailed)
}

// stuckHandler blocks until the attempt deadline fires
type stuckHandler struct{}

func (h *stuckHandler) Kind() types.FaultKind {
	return types.FaultTerminate
}

func (h *stuckHandler) Apply(ctx context.Context, target types.Instance, spec types.FaultSpec) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestExecuteConvertsAttemptDeadlineToTimedOut(t *testing.T) {
	config := fastConfig()
	config.AttemptTimeout = 10 * time.Millisecond
	e := New(newFakeClient(), config)
	e.Register(&stuckHandler{})

	outcome := e.Execute(context.Background(), target("pod-a"), types.FaultSpec{Kind: types.FaultTerminate, Count: 1})

	assert.Equal(t, types.OutcomeTimedOut, outcome.Result)
}

func TestExecuteOutcomeTimestampsAreOrdered(t *testing.T) {
	client := newFakeClient()
	e := New(client, fastConfig())

	outcome := e.Execute(context.Background(), target("pod-a"), types.FaultSpec{Kind: types.FaultTerminate, Count: 1})

	require.False(t, outcome.StartedAt.IsZero())
	require.False(t, outcome.FinishedAt.IsZero())
	assert.False(t, outcome.FinishedAt.Before(outcome.StartedAt))
}
