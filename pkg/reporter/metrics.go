package reporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
)

// MetricsReporter exposes per-outcome and per-run counters to prometheus
type MetricsReporter struct {
	outcomes *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetricsReporter registers the engine metrics on the given registerer,
// nil falls back to the default registerer
func NewMetricsReporter(registerer prometheus.Registerer) *MetricsReporter {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &MetricsReporter{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kubeloom",
			Name:      "action_outcomes_total",
			Help:      "Per-victim fault action outcomes by fault kind and result.",
		}, []string{"fault_kind", "result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kubeloom",
			Name:      "experiment_runs_total",
			Help:      "Finished experiment runs by verdict.",
		}, []string{"verdict"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kubeloom",
			Name:      "experiment_run_duration_seconds",
			Help:      "Wall-clock duration of finished experiment runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	registerer.MustRegister(m.outcomes, m.runs, m.duration)
	return m
}

func (m *MetricsReporter) OnActionOutcome(outcome types.ActionOutcome) {
	m.outcomes.WithLabelValues(string(outcome.Kind), string(outcome.Result)).Inc()
}

func (m *MetricsReporter) OnRunFinished(result types.ExperimentResult) {
	m.runs.WithLabelValues(string(result.Verdict)).Inc()
	m.duration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
}
