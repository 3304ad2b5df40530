// Package model defines shared data structures.
package model

import (
	"strings"
	"time"
)

// Mode identifies a mini-game.
type Mode string

// Supported game modes.
const (
	ModeGoNoGo     Mode = "gonogo"
	ModeNBack      Mode = "nback"
	ModeTaskSwitch Mode = "taskswitch"
	ModeDualTask   Mode = "dualtask"
)

// Modes returns all game modes in menu order.
func Modes() []Mode {
	return []Mode{ModeGoNoGo, ModeNBack, ModeTaskSwitch, ModeDualTask}
}

// ParseMode resolves a mode name. Dashes and case are ignored.
func ParseMode(s string) (Mode, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	for _, m := range Modes() {
		if string(m) == key {
			return m, true
		}
	}
	return "", false
}

// Title returns a human readable mode name.
func (m Mode) Title() string {
	switch m {
	case ModeGoNoGo:
		return "Go/No-Go"
	case ModeNBack:
		return "N-Back"
	case ModeTaskSwitch:
		return "Task Switch"
	case ModeDualTask:
		return "Dual Task"
	default:
		return string(m)
	}
}

// HasRecall reports whether the mode ends with a count question.
func (m Mode) HasRecall() bool {
	return m == ModeDualTask
}

// LevelConfig holds the tuning for one difficulty level of a mode.
type LevelConfig struct {
	TrialCount         int     `toml:"trials" validate:"gt=0,lte=500"`
	StimulusDurationMs int     `toml:"stimulus-ms" validate:"gt=0"`
	ISIMs              int     `toml:"isi-ms" validate:"gte=0"`
	GoRatio            float64 `toml:"go-ratio" validate:"gte=0,lte=1"`
	MatchRatio         float64 `toml:"match-ratio" validate:"gte=0,lte=1"`
	SwitchProbability  float64 `toml:"switch-probability" validate:"gte=0,lte=1"`
	TargetRatio        float64 `toml:"target-ratio" validate:"gte=0,lte=1"`
	CountFruitRatio    float64 `toml:"count-ratio" validate:"gte=0,lte=1"`
	NLevel             int     `toml:"n" validate:"gte=0,lte=9"`
}

// StimulusDuration returns the visibility and response window.
func (l LevelConfig) StimulusDuration() time.Duration {
	return time.Duration(l.StimulusDurationMs) * time.Millisecond
}

// ISI returns the inter-stimulus interval.
func (l LevelConfig) ISI() time.Duration {
	return time.Duration(l.ISIMs) * time.Millisecond
}

// AdaptiveConfig tunes the difficulty controller.
type AdaptiveConfig struct {
	Window        int     `validate:"gt=0"`
	ThresholdUp   float64 `validate:"gte=0,lte=1"`
	ThresholdDown float64 `validate:"gte=0,lte=1,ltefield=ThresholdUp"`
	MinLevel      int     `validate:"gt=0"`
	MaxLevel      int     `validate:"gtefield=MinLevel"`
}

// PlayConfig defines play settings resolved from flags and the config file.
type PlayConfig struct {
	Mode     Mode
	Level    int
	Seed     int64
	PoolPath string
	LogLevel string
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Mode        Mode
	Since       *time.Time
	Last        int
	CurveWindow int
}

// SessionRecord is the persisted summary of one completed session.
type SessionRecord struct {
	ID                 string
	StartedAt          time.Time
	EndedAt            time.Time
	GameType           Mode
	DifficultyLevel    int
	NextLevel          int
	Seed               int64
	TotalTrials        int
	CorrectResponses   int
	IncorrectResponses int
	AvgReactionTimeMs  float64
	Points             int
	FruitsEarned       int
	RewardStimulus     string
	Metrics            ModeMetrics
	Outcomes           []TrialOutcome
}

// SessionAggregate summarizes a stored session for reporting.
type SessionAggregate struct {
	SessionID         int64
	UUID              string
	EndedAt           time.Time
	Mode              Mode
	Level             int
	NextLevel         int
	Total             int
	Correct           int
	Incorrect         int
	AvgReactionTimeMs float64
	Points            int
	Fruits            int
	Metrics           ModeMetrics
}

// InventoryItem is a collected reward count for one stimulus.
type InventoryItem struct {
	StimulusID string
	Count      int
}
