package executor

import (
	"context"
	"time"

	"github.com/saiprakashgorti/KubeLoom/pkg/cluster"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
)

// terminateFault issues a deletion request for the victim, success means the
// api acknowledged the request, replacement is the cluster's job
type terminateFault struct {
	client cluster.Client
}

func (f *terminateFault) Kind() types.FaultKind {
	return types.FaultTerminate
}

func (f *terminateFault) Apply(ctx context.Context, target types.Instance, spec types.FaultSpec) error {
	return f.client.DeleteInstance(ctx, target.Workload, target.ID, spec.Force)
}

// injectedFault covers the side-effecting kinds (network-delay and
// resource-stress): inject, hold for the configured duration, then revert.
// The revert runs on every exit path, a detached context keeps it alive when
// the run itself has been cancelled.
type injectedFault struct {
	client      cluster.Client
	kind        types.FaultKind
	params      cluster.InjectionParams
	revertGrace time.Duration
}

func (f *injectedFault) Kind() types.FaultKind {
	return f.kind
}

func (f *injectedFault) Apply(ctx context.Context, target types.Instance, spec types.FaultSpec) (err error) {
	params := f.params
	params.Latency = spec.Latency

	handle, err := f.client.ExecInjection(ctx, target.Workload, target.ID, f.kind, params)
	if err != nil {
		return err
	}

	defer func() {
		revertCtx, cancel := context.WithTimeout(context.Background(), f.revertGrace)
		defer cancel()
		if revertErr := f.client.RevertInjection(revertCtx, handle); revertErr != nil {
			// residual impact dominates whatever happened before
			err = revertErr
		}
	}()

	select {
	case <-time.After(spec.Duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
