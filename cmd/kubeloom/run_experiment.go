package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v2"

	"github.com/saiprakashgorti/KubeLoom/pkg/clients"
	"github.com/saiprakashgorti/KubeLoom/pkg/cluster"
	"github.com/saiprakashgorti/KubeLoom/pkg/environment"
	"github.com/saiprakashgorti/KubeLoom/pkg/executor"
	"github.com/saiprakashgorti/KubeLoom/pkg/governor"
	"github.com/saiprakashgorti/KubeLoom/pkg/log"
	"github.com/saiprakashgorti/KubeLoom/pkg/orchestrator"
	"github.com/saiprakashgorti/KubeLoom/pkg/reporter"
	"github.com/saiprakashgorti/KubeLoom/pkg/telemetry"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
)

// safetyConfig is the on-disk form of the safety policy, the cooldown is a
// duration string ("90s", "2m")
type safetyConfig struct {
	MinHealthyFraction   *float64 `yaml:"minHealthyFraction"`
	MaxConcurrentVictims *int     `yaml:"maxConcurrentVictims"`
	Cooldown             *string  `yaml:"cooldown"`
}

func newRunExperimentCmd() *cobra.Command {
	var (
		namespace    string
		kubeconfig   string
		fault        string
		pods         int
		percent      int
		policy       string
		seed         int64
		latency      time.Duration
		duration     time.Duration
		force        bool
		labelWeights string
		safetyFile   string
	)

	cmd := &cobra.Command{
		Use:   "run-experiment <kind/name>",
		Short: "Run a chaos experiment against the target workload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ref, err := types.ParseWorkloadRef(args[0], namespace)
			if err != nil {
				log.Errorf("Invalid target, err: %v", err)
				return err
			}

			weights, err := parseLabelWeights(labelWeights)
			if err != nil {
				log.Errorf("Invalid label weights, err: %v", err)
				return err
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			spec := types.FaultSpec{
				Kind:         types.FaultKind(fault),
				Count:        pods,
				Percent:      percent,
				Latency:      latency,
				Duration:     duration,
				Policy:       types.SelectionPolicy(policy),
				LabelWeights: weights,
				Seed:         seed,
				Force:        force,
			}

			settings := environment.GetSettings()
			if safetyFile != "" {
				if err := loadSafetyPolicy(safetyFile, &settings.SafetyPolicy); err != nil {
					log.Errorf("Unable to load the safety policy file, err: %v", err)
					return err
				}
			}

			clientSets := clients.ClientSets{}
			if err := clientSets.GenerateClientSetFromKubeConfig(kubeconfig); err != nil {
				log.Errorf("Unable to get the kubeconfig, err: %v", err)
				return err
			}

			otelShutdown, err := telemetry.InitOTelSDK(ctx, settings.OTELEndpoint)
			if err != nil {
				log.Errorf("Unable to initialize the otel sdk, err: %v", err)
				return err
			}
			defer func() {
				if err := otelShutdown(context.Background()); err != nil {
					log.Errorf("Unable to shutdown the otel sdk, err: %v", err)
				}
			}()

			client := cluster.NewK8sClient(clientSets)
			engine := orchestrator.New(
				client,
				governor.NewRegistry(),
				executor.New(client, settings.Executor),
				reporter.Multi(&reporter.LogReporter{}, reporter.NewMetricsReporter(nil)),
				settings.SafetyPolicy,
				rate.NewLimiter(rate.Limit(settings.RatePerSecond), settings.RateBurst),
			)

			result, err := engine.Run(ctx, ref, spec)
			if err != nil {
				log.Errorf("Experiment rejected, err: %v", err)
			}
			switch result.Verdict {
			case types.VerdictCompleted, types.VerdictPartiallyCompleted:
				return nil
			default:
				return fmt.Errorf("experiment run %s finished with verdict %s", result.RunID, result.Verdict)
			}
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "Kubernetes namespace of the target workload")
	cmd.Flags().StringVarP(&kubeconfig, "kubeconfig", "k", "", "Path to the kubeconfig file, in-cluster config when empty")
	cmd.Flags().StringVar(&fault, "fault", string(types.FaultTerminate), "Fault kind to inject (terminate, network-delay, resource-stress)")
	cmd.Flags().IntVar(&pods, "pods", 0, "Absolute number of victims, mutually exclusive with --percent")
	cmd.Flags().IntVar(&percent, "percent", 0, "Victims as a percentage of the snapshot, mutually exclusive with --pods")
	cmd.Flags().StringVar(&policy, "policy", string(types.PolicyUniform), "Victim selection policy (uniform, oldest-first, label-weighted)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Selection seed for reproducible victim sets, time-based when unset")
	cmd.Flags().DurationVar(&latency, "latency", 0, "Netem delay for the network-delay fault")
	cmd.Flags().DurationVar(&duration, "duration", 0, "How long an injected fault stays applied before revert")
	cmd.Flags().BoolVar(&force, "force", false, "Terminate victims with a zero grace period")
	cmd.Flags().StringVar(&labelWeights, "label-weights", "", "Comma-separated key=value:weight pairs for the label-weighted policy")
	cmd.Flags().StringVar(&safetyFile, "safety-config", "", "Path to a yaml file overriding the safety policy")
	return cmd
}

// parseLabelWeights parses the 'key=value:weight,...' flag notation
func parseLabelWeights(raw string) (map[string]float64, error) {
	if raw == "" {
		return nil, nil
	}
	weights := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		label, value, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found || !strings.Contains(label, "=") {
			return nil, fmt.Errorf("label weight '%s' must be in 'key=value:weight' format", pair)
		}
		weight, err := strconv.ParseFloat(value, 64)
		if err != nil || weight < 0 {
			return nil, fmt.Errorf("label weight '%s' must carry a non-negative number", pair)
		}
		weights[label] = weight
	}
	return weights, nil
}

// loadSafetyPolicy overlays the yaml file on top of the env-derived policy,
// fields left out of the file keep their current value
func loadSafetyPolicy(path string, policy *types.SafetyPolicy) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	config := safetyConfig{}
	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return err
	}
	if config.MinHealthyFraction != nil {
		policy.MinHealthyFraction = *config.MinHealthyFraction
	}
	if config.MaxConcurrentVictims != nil {
		policy.MaxConcurrentVictims = *config.MaxConcurrentVictims
	}
	if config.Cooldown != nil {
		cooldown, err := time.ParseDuration(*config.Cooldown)
		if err != nil {
			return fmt.Errorf("invalid cooldown '%s', %v", *config.Cooldown, err)
		}
		policy.Cooldown = cooldown
	}
	return policy.Validate()
}
