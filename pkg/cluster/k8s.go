package cluster

import (
	"context"
	"fmt"

	"github.com/saiprakashgorti/KubeLoom/pkg/cerrors"
	"github.com/saiprakashgorti/KubeLoom/pkg/clients"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const defaultPageSize = 200

// K8sClient implements Client on top of the kubernetes api
type K8sClient struct {
	clients  clients.ClientSets
	pageSize int64
}

// NewK8sClient returns a cluster client backed by the given clientsets
func NewK8sClient(clientSets clients.ClientSets) *K8sClient {
	return &K8sClient{clients: clientSets, pageSize: defaultPageSize}
}

// ListInstances resolves the workload's label selector and lists its pods.
// The listing is paginated with continue tokens and merged before returning,
// the caller never observes a partial page.
func (c *K8sClient) ListInstances(ctx context.Context, ref types.WorkloadRef) ([]types.Instance, error) {
	selector, err := c.workloadSelector(ctx, ref)
	if err != nil {
		return nil, err
	}

	var instances []types.Instance
	opts := metav1.ListOptions{LabelSelector: selector, Limit: c.pageSize}
	for {
		podList, err := c.clients.KubeClient.CoreV1().Pods(ref.Namespace).List(ctx, opts)
		if err != nil {
			return nil, classifyAPIError(err, ref.String(), "list pods")
		}
		for _, pod := range podList.Items {
			instances = append(instances, toInstance(pod, ref))
		}
		if podList.Continue == "" {
			break
		}
		opts.Continue = podList.Continue
	}
	return instances, nil
}

// DeleteInstance issues the pod deletion request, a zero grace period is used
// when force is set
func (c *K8sClient) DeleteInstance(ctx context.Context, ref types.WorkloadRef, id string, force bool) error {
	opts := metav1.DeleteOptions{}
	if force {
		gracePeriod := int64(0)
		opts.GracePeriodSeconds = &gracePeriod
	}
	if err := c.clients.KubeClient.CoreV1().Pods(ref.Namespace).Delete(ctx, id, opts); err != nil {
		return classifyAPIError(err, id, "delete pod")
	}
	return nil
}

// ExecInjection applies an in-place fault by exec-ing the matching command
// inside the target container and returns the handle needed to revert it
func (c *K8sClient) ExecInjection(ctx context.Context, ref types.WorkloadRef, id string, kind types.FaultKind, params InjectionParams) (*InjectionHandle, error) {
	var injectCmd, revertCmd string
	switch kind {
	case types.FaultNetworkDelay:
		injectCmd = fmt.Sprintf("tc qdisc add dev %s root netem delay %dms", params.NetworkInterface, params.Latency.Milliseconds())
		revertCmd = fmt.Sprintf("tc qdisc del dev %s root netem", params.NetworkInterface)
	case types.FaultResourceStress:
		// the stress process must outlive the exec session, revert kills it
		injectCmd = fmt.Sprintf("nohup %s > /dev/null 2>&1 & echo started", params.StressCommand)
		revertCmd = params.KillCommand
	default:
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Target: id, Reason: fmt.Sprintf("fault kind '%s' is not injectable", kind)}
	}

	if _, err := execInPod(ctx, c.clients, ref.Namespace, id, []string{"/bin/sh", "-c", injectCmd}); err != nil {
		return nil, classifyAPIError(err, id, fmt.Sprintf("inject %s", kind))
	}
	return &InjectionHandle{Victim: id, Namespace: ref.Namespace, Kind: kind, RevertCmd: revertCmd}, nil
}

// RevertInjection removes the injected fault, a failure here means residual
// impact on the victim and surfaces as a rollback failure
func (c *K8sClient) RevertInjection(ctx context.Context, handle *InjectionHandle) error {
	if _, err := execInPod(ctx, c.clients, handle.Namespace, handle.Victim, []string{"/bin/sh", "-c", handle.RevertCmd}); err != nil {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeRollbackFailure, Target: handle.Victim, Reason: fmt.Sprintf("failed to revert %s injection, %v", handle.Kind, err)}
	}
	return nil
}

// workloadSelector derives the pod label selector from the parent workload
func (c *K8sClient) workloadSelector(ctx context.Context, ref types.WorkloadRef) (string, error) {
	var (
		selector *metav1.LabelSelector
		err      error
	)
	switch ref.Kind {
	case types.KindDeployment:
		workload, getErr := c.clients.KubeClient.AppsV1().Deployments(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		if getErr != nil {
			err = getErr
		} else {
			selector = workload.Spec.Selector
		}
	case types.KindStatefulSet:
		workload, getErr := c.clients.KubeClient.AppsV1().StatefulSets(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		if getErr != nil {
			err = getErr
		} else {
			selector = workload.Spec.Selector
		}
	case types.KindDaemonSet:
		workload, getErr := c.clients.KubeClient.AppsV1().DaemonSets(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		if getErr != nil {
			err = getErr
		} else {
			selector = workload.Spec.Selector
		}
	default:
		return "", cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Target: ref.String(), Reason: fmt.Sprintf("unsupported workload kind '%s'", ref.Kind)}
	}
	if err != nil {
		return "", classifyAPIError(err, ref.String(), "get workload")
	}

	labelSelector, err := metav1.LabelSelectorAsSelector(selector)
	if err != nil {
		return "", cerrors.Error{ErrorCode: cerrors.ErrorTypeGeneric, Target: ref.String(), Reason: fmt.Sprintf("invalid workload selector, %v", err)}
	}
	return labelSelector.String(), nil
}

func toInstance(pod corev1.Pod, ref types.WorkloadRef) types.Instance {
	return types.Instance{
		ID:        pod.Name,
		CreatedAt: pod.CreationTimestamp.Time,
		Ready:     isPodReady(pod),
		Labels:    pod.Labels,
		Workload:  ref,
	}
}

func isPodReady(pod corev1.Pod) bool {
	if pod.DeletionTimestamp != nil || pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady {
			return condition.Status == corev1.ConditionTrue
		}
	}
	return false
}

// classifyAPIError maps a kubernetes api error onto the engine taxonomy,
// throttling and server-side hiccups are transient and retried by the caller
func classifyAPIError(err error, target, operation string) error {
	switch {
	case err == nil:
		return nil
	case k8serrors.IsNotFound(err):
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeResourceNotFound, Target: target, Reason: fmt.Sprintf("failed to %s, %v", operation, err)}
	case k8serrors.IsTooManyRequests(err), k8serrors.IsServerTimeout(err), k8serrors.IsTimeout(err),
		k8serrors.IsServiceUnavailable(err), k8serrors.IsInternalError(err), k8serrors.IsConflict(err):
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeTransientAPI, Target: target, Reason: fmt.Sprintf("failed to %s, %v", operation, err)}
	default:
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeGeneric, Target: target, Reason: fmt.Sprintf("failed to %s, %v", operation, err)}
	}
}
