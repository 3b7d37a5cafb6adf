// Package cluster defines the narrow orchestration-api surface the engine
// depends on. Credential handling, connection setup and api version
// negotiation stay outside of it.
package cluster

import (
	"context"
	"time"

	"github.com/saiprakashgorti/KubeLoom/pkg/types"
)

// InjectionParams carries the kind-specific knobs for an injected fault
type InjectionParams struct {
	Latency          time.Duration
	NetworkInterface string
	StressCommand    string
	KillCommand      string
}

// InjectionHandle identifies one injected fault so it can be reverted later.
// It is produced by ExecInjection and consumed exactly once by
// RevertInjection.
type InjectionHandle struct {
	Victim    string
	Namespace string
	Kind      types.FaultKind
	RevertCmd string
}

// Client is the orchestration api collaborator, the engine depends only on
// these four operations
type Client interface {
	// ListInstances returns the current member instances of the workload,
	// merged across api pages so the caller never observes a partial page
	ListInstances(ctx context.Context, ref types.WorkloadRef) ([]types.Instance, error)

	// DeleteInstance issues a deletion request for the instance, success
	// means the api acknowledged the request, not that a replacement exists
	DeleteInstance(ctx context.Context, ref types.WorkloadRef, id string, force bool) error

	// ExecInjection applies an in-place fault to the instance and returns a
	// handle for reverting it
	ExecInjection(ctx context.Context, ref types.WorkloadRef, id string, kind types.FaultKind, params InjectionParams) (*InjectionHandle, error)

	// RevertInjection removes a previously injected fault
	RevertInjection(ctx context.Context, handle *InjectionHandle) error
}
