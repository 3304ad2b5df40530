package session

import (
	"time"

	"github.com/verte-zerg/tuimind/internal/model"
)

// Action is a user response, or a response-window timeout.
type Action struct {
	Response model.Response
	At       time.Time
	TimedOut bool
}

// Expected returns the correct response for a trial.
func Expected(trial model.Trial) model.Response {
	switch t := trial.(type) {
	case model.GoNoGoTrial:
		if t.IsGo {
			return model.ResponseTap
		}
	case model.NBackTrial:
		if t.Solicited && t.IsTarget {
			return model.ResponseMatch
		}
	case model.TaskSwitchTrial:
		return model.SideResponse(t.CorrectSide)
	case model.DualTaskTrial:
		if t.IsPrimaryTarget {
			return model.ResponseTap
		}
	}
	return model.ResponseNone
}

// Solicited reports whether a trial asks for a response at all.
func Solicited(trial model.Trial) bool {
	if t, ok := trial.(model.NBackTrial); ok {
		return t.Solicited
	}
	return true
}

// Accepts reports whether resp is a qualifying action for the trial's mode.
func Accepts(trial model.Trial, resp model.Response) bool {
	if !Solicited(trial) {
		return false
	}
	switch trial.Mode() {
	case model.ModeGoNoGo, model.ModeDualTask:
		return resp == model.ResponseTap
	case model.ModeNBack:
		return resp == model.ResponseMatch
	case model.ModeTaskSwitch:
		return resp == model.ResponseLeft || resp == model.ResponseRight
	default:
		return false
	}
}

// Evaluate classifies an action against the trial. A timeout is recorded as
// no response with no reaction time.
func Evaluate(index int, trial model.Trial, presentedAt time.Time, act Action) model.TrialOutcome {
	o := model.TrialOutcome{
		TrialIndex:  index,
		PresentedAt: presentedAt,
		Response:    model.ResponseNone,
		Expected:    Expected(trial),
		Solicited:   Solicited(trial),
	}
	if !act.TimedOut && act.Response != model.ResponseNone {
		at := act.At
		rt := at.Sub(presentedAt).Milliseconds()
		if rt < 0 {
			rt = 0
		}
		o.RespondedAt = &at
		o.ReactionTimeMs = &rt
		o.Response = act.Response
	}
	o.Correct = o.Response == o.Expected
	return o
}
