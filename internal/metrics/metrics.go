// Package metrics aggregates trial outcomes into per-mode counters.
package metrics

import (
	"github.com/montanaflynn/stats"

	"github.com/verte-zerg/tuimind/internal/model"
)

// Aggregator accumulates outcomes for one session. Counters only grow.
type Aggregator struct {
	mode model.Mode

	goNoGo     model.GoNoGoMetrics
	nBack      model.DetectionMetrics
	taskSwitch model.TaskSwitchMetrics
	dualTask   model.DualTaskMetrics

	total   int
	correct int

	reactionTimes []float64
	switchRTs     []float64
	nonSwitchRTs  []float64
}

// New returns an empty aggregator for mode.
func New(mode model.Mode) *Aggregator {
	return &Aggregator{mode: mode}
}

// Mode returns the aggregated mode.
func (a *Aggregator) Mode() model.Mode {
	return a.mode
}

// Add folds one outcome into the counters. Unsolicited outcomes are ignored.
func (a *Aggregator) Add(trial model.Trial, o model.TrialOutcome) {
	if !o.Solicited {
		return
	}
	a.total++
	if o.Correct {
		a.correct++
	}
	responded := o.Response != model.ResponseNone
	switch t := trial.(type) {
	case model.GoNoGoTrial:
		switch {
		case t.IsGo && responded:
			a.goNoGo.CorrectGo++
			a.addRT(&a.reactionTimes, o)
		case t.IsGo:
			a.goNoGo.OmissionError++
		case responded:
			a.goNoGo.CommissionError++
		default:
			a.goNoGo.CorrectNoGo++
		}
	case model.NBackTrial:
		if a.detect(&a.nBack, t.IsTarget, responded) {
			a.addRT(&a.reactionTimes, o)
		}
	case model.TaskSwitchTrial:
		if t.IsSwitch {
			a.taskSwitch.SwitchTrials++
			if o.Correct {
				a.taskSwitch.CorrectSwitch++
			}
			a.addRT(&a.switchRTs, o)
		} else {
			a.taskSwitch.NonSwitchTrials++
			if o.Correct {
				a.taskSwitch.CorrectNonSwitch++
			}
			a.addRT(&a.nonSwitchRTs, o)
		}
		a.addRT(&a.reactionTimes, o)
	case model.DualTaskTrial:
		if t.IsSecondaryCountItem {
			a.dualTask.CountItems++
		}
		if a.detect(&a.dualTask.DetectionMetrics, t.IsPrimaryTarget, responded) {
			a.addRT(&a.reactionTimes, o)
		}
	}
}

// detect updates signal-detection counters and reports a hit.
func (a *Aggregator) detect(m *model.DetectionMetrics, target, responded bool) bool {
	switch {
	case target && responded:
		m.Hits++
		return true
	case target:
		m.Misses++
	case responded:
		m.FalseAlarms++
	default:
		m.CorrectRejections++
	}
	return false
}

func (a *Aggregator) addRT(list *[]float64, o model.TrialOutcome) {
	if o.ReactionTimeMs == nil {
		return
	}
	*list = append(*list, float64(*o.ReactionTimeMs))
}

// Total returns the number of scored outcomes.
func (a *Aggregator) Total() int {
	return a.total
}

// Correct returns the number of correct scored outcomes.
func (a *Aggregator) Correct() int {
	return a.correct
}

// Accuracy returns correct/total, or 0 when nothing was scored.
func (a *Aggregator) Accuracy() float64 {
	return Accuracy(a.correct, a.total)
}

// ReactionTimes returns a copy of the recorded reaction times in ms.
func (a *Aggregator) ReactionTimes() []float64 {
	out := make([]float64, len(a.reactionTimes))
	copy(out, a.reactionTimes)
	return out
}

// MeanReactionTimeMs returns the mean recorded reaction time, or 0.
func (a *Aggregator) MeanReactionTimeMs() float64 {
	return Mean(a.reactionTimes)
}

// SwitchCostMs returns mean switch RT minus mean non-switch RT. It is 0
// unless both kinds of trials have a recorded reaction time.
func (a *Aggregator) SwitchCostMs() float64 {
	if len(a.switchRTs) == 0 || len(a.nonSwitchRTs) == 0 {
		return 0
	}
	return Mean(a.switchRTs) - Mean(a.nonSwitchRTs)
}

// SetRecall records the Dual-Task recall answer.
func (a *Aggregator) SetRecall(answer int, correct bool) {
	a.dualTask.RecallAnswer = &answer
	a.dualTask.RecallCorrect = &correct
}

// Snapshot returns the counters of the aggregated mode.
func (a *Aggregator) Snapshot() model.ModeMetrics {
	switch a.mode {
	case model.ModeGoNoGo:
		m := a.goNoGo
		return model.ModeMetrics{GoNoGo: &m}
	case model.ModeNBack:
		m := a.nBack
		return model.ModeMetrics{NBack: &m}
	case model.ModeTaskSwitch:
		m := a.taskSwitch
		m.SwitchCostMs = a.SwitchCostMs()
		return model.ModeMetrics{TaskSwitch: &m}
	case model.ModeDualTask:
		m := a.dualTask
		return model.ModeMetrics{DualTask: &m}
	default:
		return model.ModeMetrics{}
	}
}

// Accuracy returns correct/total, or 0 when total is 0.
func Accuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return mean
}

// Median returns the median, or 0 for no values.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	median, err := stats.Median(values)
	if err != nil {
		return 0
	}
	return median
}
