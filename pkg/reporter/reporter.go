// Package reporter receives structured per-victim and per-run events from
// the orchestrator.
package reporter

import (
	"time"

	"github.com/kyokomi/emoji"
	"github.com/saiprakashgorti/KubeLoom/pkg/log"
	"github.com/saiprakashgorti/KubeLoom/pkg/types"
)

// Reporter is the result collaborator, OnActionOutcome streams as each
// victim action completes, OnRunFinished fires exactly once per run
type Reporter interface {
	OnActionOutcome(outcome types.ActionOutcome)
	OnRunFinished(result types.ExperimentResult)
}

// LogReporter writes outcomes and the final verdict to the structured log
type LogReporter struct{}

func (r *LogReporter) OnActionOutcome(outcome types.ActionOutcome) {
	fields := map[string]interface{}{
		"Victim":   outcome.VictimID,
		"Fault":    outcome.Kind,
		"Result":   outcome.Result,
		"Duration": outcome.FinishedAt.Sub(outcome.StartedAt).Round(time.Millisecond),
	}
	if outcome.Result == types.OutcomeSuccess {
		log.InfoWithValues("[Outcome]: Fault action completed", fields)
		return
	}
	fields["Reason"] = outcome.Reason
	if outcome.RollbackFailed {
		fields["RollbackFailed"] = true
	}
	log.ErrorWithValues("[Outcome]: Fault action did not complete", fields)
}

func (r *LogReporter) OnRunFinished(result types.ExperimentResult) {
	mark := emoji.Sprint(" :thumbsdown:")
	if result.Verdict == types.VerdictCompleted {
		mark = emoji.Sprint(" :thumbsup:")
	}
	log.InfoWithValues("[Summary]: Experiment run finished"+mark, map[string]interface{}{
		"RunID":    result.RunID,
		"Workload": result.Workload.String(),
		"Fault":    result.Fault.Kind,
		"Verdict":  result.Verdict,
		"Victims":  len(result.Outcomes),
	})
	for _, outcome := range result.Outcomes {
		if outcome.Result == types.OutcomeSuccess {
			continue
		}
		log.ErrorWithValues("[Summary]: Victim left non-successful", map[string]interface{}{
			"Victim": outcome.VictimID,
			"Result": outcome.Result,
			"Reason": outcome.Reason,
		})
	}
}

type multi []Reporter

// Multi fans every event out to all given reporters in order
func Multi(reporters ...Reporter) Reporter {
	return multi(reporters)
}

func (m multi) OnActionOutcome(outcome types.ActionOutcome) {
	for _, r := range m {
		r.OnActionOutcome(outcome)
	}
}

func (m multi) OnRunFinished(result types.ExperimentResult) {
	for _, r := range m {
		r.OnRunFinished(result)
	}
}
