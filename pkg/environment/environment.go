// Package environment derives the engine defaults from the process
// environment, CLI flags override them per run.
package environment

import (
	"os"
	"strconv"
	"time"

	"github.com/saiprakashgorti/KubeLoom/pkg/executor"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
)

// Settings holds the process-wide engine tunables
type Settings struct {
	SafetyPolicy  types.SafetyPolicy
	Executor      executor.Config
	RatePerSecond float64
	RateBurst     int
	OTELEndpoint  string
}

//GetSettings fetches all the env variables consumed by the engine
func GetSettings() Settings {
	settings := Settings{}

	settings.SafetyPolicy.MinHealthyFraction = getenvFloat("KUBELOOM_MIN_HEALTHY_FRACTION", 0.5)
	settings.SafetyPolicy.MaxConcurrentVictims = getenvInt("KUBELOOM_MAX_CONCURRENT_VICTIMS", 2)
	settings.SafetyPolicy.Cooldown = getenvDuration("KUBELOOM_COOLDOWN", 60*time.Second)

	settings.Executor = executor.DefaultConfig()
	settings.Executor.Attempts = uint(getenvInt("KUBELOOM_RETRY_ATTEMPTS", 3))
	settings.Executor.InitialBackoff = getenvDuration("KUBELOOM_RETRY_BACKOFF", 2*time.Second)
	settings.Executor.AttemptTimeout = getenvDuration("KUBELOOM_ATTEMPT_TIMEOUT", 30*time.Second)
	settings.Executor.RevertGrace = getenvDuration("KUBELOOM_REVERT_GRACE", 30*time.Second)
	settings.Executor.Injection.NetworkInterface = Getenv("KUBELOOM_NETWORK_INTERFACE", settings.Executor.Injection.NetworkInterface)
	settings.Executor.Injection.StressCommand = Getenv("KUBELOOM_STRESS_CMD", settings.Executor.Injection.StressCommand)
	settings.Executor.Injection.KillCommand = Getenv("KUBELOOM_STRESS_KILL_CMD", settings.Executor.Injection.KillCommand)

	settings.RatePerSecond = getenvFloat("KUBELOOM_RATE_LIMIT", 1)
	settings.RateBurst = getenvInt("KUBELOOM_RATE_BURST", 1)
	settings.OTELEndpoint = Getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	return settings
}

// Getenv fetches the env with a fallback default
func Getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		value = fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getenvFloat(key string, fallback float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}
