package main

import (
	"context"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/saiprakashgorti/KubeLoom/pkg/clients"
	"github.com/saiprakashgorti/KubeLoom/pkg/log"
)

func newListDeploymentsCmd() *cobra.Command {
	var (
		namespace  string
		kubeconfig string
	)

	cmd := &cobra.Command{
		Use:   "list-deployments",
		Short: "List all deployments in the specified namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			clientSets := clients.ClientSets{}
			if err := clientSets.GenerateClientSetFromKubeConfig(kubeconfig); err != nil {
				log.Errorf("Unable to get the kubeconfig, err: %v", err)
				return err
			}

			deployments, err := clientSets.KubeClient.AppsV1().Deployments(namespace).List(context.Background(), metav1.ListOptions{})
			if err != nil {
				log.Errorf("Unable to list deployments in %v namespace, err: %v", namespace, err)
				return err
			}

			log.Infof("[List]: %v deployments in '%v' namespace", len(deployments.Items), namespace)
			for _, deployment := range deployments.Items {
				replicas := int32(0)
				if deployment.Spec.Replicas != nil {
					replicas = *deployment.Spec.Replicas
				}
				log.InfoWithValues(deployment.Name, map[string]interface{}{
					"Replicas":  replicas,
					"Available": deployment.Status.AvailableReplicas,
					"Ready":     deployment.Status.ReadyReplicas,
				})
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "Kubernetes namespace to target")
	cmd.Flags().StringVarP(&kubeconfig, "kubeconfig", "k", "", "Path to the kubeconfig file, in-cluster config when empty")
	return cmd
}
