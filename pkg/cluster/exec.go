package cluster

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/saiprakashgorti/KubeLoom/pkg/clients"
	apiv1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/remotecommand"
)

// execInPod runs the provided command inside the first container of the
// target pod over an SPDY stream
func execInPod(ctx context.Context, clientSets clients.ClientSets, namespace, podName string, command []string) (string, error) {

	pod, err := clientSets.KubeClient.CoreV1().Pods(namespace).Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		return "", err
	}
	if pod.Status.Phase != apiv1.PodRunning {
		return "", errors.Errorf("%v pod is not in running state, phase: %v", podName, pod.Status.Phase)
	}
	containerName := pod.Spec.Containers[0].Name

	kubeClient, ok := clientSets.KubeClient.(*kubernetes.Clientset)
	if !ok {
		return "", errors.Errorf("exec requires a real kubernetes clientset")
	}

	req := kubeClient.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(podName).
		Namespace(namespace).
		SubResource("exec")
	scheme := runtime.NewScheme()
	if err := apiv1.AddToScheme(scheme); err != nil {
		return "", fmt.Errorf("error adding to scheme: %v", err)
	}
	parameterCodec := runtime.NewParameterCodec(scheme)

	req.VersionedParams(&apiv1.PodExecOptions{
		Command:   command,
		Container: containerName,
		Stdin:     false,
		Stdout:    true,
		Stderr:    true,
		TTY:       false,
	}, parameterCodec)

	exec, err := remotecommand.NewSPDYExecutor(clientSets.KubeConfig, "POST", req.URL())
	if err != nil {
		return "", fmt.Errorf("error while creating Executor: %v", err)
	}

	var out bytes.Buffer
	err = exec.Stream(remotecommand.StreamOptions{
		Stdin:  nil,
		Stdout: &out,
		Stderr: os.Stderr,
		Tty:    false,
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}
