package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableSorting:         true,
		DisableLevelTruncation: true,
	})
}

func main() {
	root := &cobra.Command{
		Use:           "kubeloom",
		Short:         "KubeLoom - Kubernetes chaos engineering experiment engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newListDeploymentsCmd())
	root.AddCommand(newRunExperimentCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
