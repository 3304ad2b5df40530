package model

import "time"

// Stimulus is a visual token shown during a trial.
type Stimulus struct {
	ID        string
	Glyph     string
	ColorWarm bool
	SizeBig   bool
}

// Rule is the active classification rule in Task-Switch.
type Rule int

// Classification rules.
const (
	RuleColor Rule = iota
	RuleSize
)

func (r Rule) String() string {
	switch r {
	case RuleColor:
		return "color"
	case RuleSize:
		return "size"
	default:
		return "unknown"
	}
}

// Other returns the opposite rule.
func (r Rule) Other() Rule {
	if r == RuleColor {
		return RuleSize
	}
	return RuleColor
}

// Side is the answer side for Task-Switch trials.
type Side int

// Answer sides.
const (
	SideNone Side = iota
	SideLeft
	SideRight
)

// Response is a user action, or the absence of one.
type Response string

// Responses understood by the engine.
const (
	ResponseNone  Response = "none"
	ResponseTap   Response = "tap"
	ResponseMatch Response = "match"
	ResponseLeft  Response = "left"
	ResponseRight Response = "right"
)

// SideResponse maps a side to its response.
func SideResponse(s Side) Response {
	switch s {
	case SideLeft:
		return ResponseLeft
	case SideRight:
		return ResponseRight
	default:
		return ResponseNone
	}
}

// Trial is one presented stimulus. The concrete type carries the
// mode-specific fields.
type Trial interface {
	Mode() Mode
	Stimulus() Stimulus
	trial()
}

// GoNoGoTrial requires a tap on the target and withholding otherwise.
type GoNoGoTrial struct {
	Item                Stimulus
	IsGo                bool
	ScheduledDurationMs int
}

// NBackTrial is a target when its stimulus equals the one N positions back.
// Trials before index N are shown but never scored.
type NBackTrial struct {
	Item      Stimulus
	IsTarget  bool
	Solicited bool
}

// TaskSwitchTrial asks for a side under the active rule.
type TaskSwitchTrial struct {
	Item        Stimulus
	Rule        Rule
	CorrectSide Side
	IsSwitch    bool
}

// DualTaskTrial taps the primary target while counting the secondary one.
type DualTaskTrial struct {
	Item                 Stimulus
	IsPrimaryTarget      bool
	IsSecondaryCountItem bool
}

func (GoNoGoTrial) Mode() Mode     { return ModeGoNoGo }
func (NBackTrial) Mode() Mode      { return ModeNBack }
func (TaskSwitchTrial) Mode() Mode { return ModeTaskSwitch }
func (DualTaskTrial) Mode() Mode   { return ModeDualTask }

func (t GoNoGoTrial) Stimulus() Stimulus     { return t.Item }
func (t NBackTrial) Stimulus() Stimulus      { return t.Item }
func (t TaskSwitchTrial) Stimulus() Stimulus { return t.Item }
func (t DualTaskTrial) Stimulus() Stimulus   { return t.Item }

func (GoNoGoTrial) trial()     {}
func (NBackTrial) trial()      {}
func (TaskSwitchTrial) trial() {}
func (DualTaskTrial) trial()   {}

// TrialOutcome is the immutable result of one trial.
type TrialOutcome struct {
	TrialIndex     int
	PresentedAt    time.Time
	RespondedAt    *time.Time
	ReactionTimeMs *int64
	Response       Response
	Expected       Response
	Correct        bool
	Solicited      bool
}

// GoNoGoMetrics counts Go/No-Go outcomes.
type GoNoGoMetrics struct {
	CorrectGo       int `json:"correctGo"`
	CorrectNoGo     int `json:"correctNoGo"`
	CommissionError int `json:"commissionError"`
	OmissionError   int `json:"omissionError"`
}

// DetectionMetrics counts signal-detection outcomes.
type DetectionMetrics struct {
	Hits              int `json:"hits"`
	Misses            int `json:"misses"`
	FalseAlarms       int `json:"falseAlarms"`
	CorrectRejections int `json:"correctRejections"`
}

// TaskSwitchMetrics counts Task-Switch outcomes.
type TaskSwitchMetrics struct {
	CorrectSwitch    int     `json:"correctSwitch"`
	CorrectNonSwitch int     `json:"correctNonSwitch"`
	SwitchTrials     int     `json:"switchTrials"`
	NonSwitchTrials  int     `json:"nonSwitchTrials"`
	SwitchCostMs     float64 `json:"switchCostMs"`
}

// DualTaskMetrics counts Dual-Task outcomes and the recall answer.
type DualTaskMetrics struct {
	DetectionMetrics
	CountItems    int   `json:"countItems"`
	RecallAnswer  *int  `json:"recallAnswer,omitempty"`
	RecallCorrect *bool `json:"recallCorrect,omitempty"`
}

// ModeMetrics holds the counters of exactly one mode.
type ModeMetrics struct {
	GoNoGo     *GoNoGoMetrics     `json:"goNoGo,omitempty"`
	NBack      *DetectionMetrics  `json:"nBack,omitempty"`
	TaskSwitch *TaskSwitchMetrics `json:"taskSwitch,omitempty"`
	DualTask   *DualTaskMetrics   `json:"dualTask,omitempty"`
}
