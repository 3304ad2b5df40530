// Package scoring converts session outcomes into points and fruit rewards.
package scoring

import (
	"math"

	"github.com/verte-zerg/tuimind/internal/model"
)

// Rule is the per-mode scoring table.
type Rule struct {
	PointsPerCorrect float64
	// StreakStep is the bonus per streak length on a correct outcome.
	StreakStep float64
	// StreakCap caps the bonus of a single outcome.
	StreakCap float64
	// LevelStep scales base points by 1 + LevelStep*(level-1).
	LevelStep    float64
	FruitDivisor int
	RecallBonus  int
}

var rules = map[model.Mode]Rule{
	model.ModeGoNoGo:     {PointsPerCorrect: 10, StreakStep: 1, StreakCap: 5, LevelStep: 0.25, FruitDivisor: 3},
	model.ModeNBack:      {PointsPerCorrect: 15, StreakStep: 1.5, StreakCap: 7.5, LevelStep: 0.25, FruitDivisor: 2},
	model.ModeTaskSwitch: {PointsPerCorrect: 12, StreakStep: 1, StreakCap: 6, LevelStep: 0.25, FruitDivisor: 3},
	model.ModeDualTask:   {PointsPerCorrect: 12, StreakStep: 1, StreakCap: 6, LevelStep: 0.25, FruitDivisor: 3, RecallBonus: 2},
}

// RuleFor returns the scoring table of mode.
func RuleFor(mode model.Mode) Rule {
	if r, ok := rules[mode]; ok {
		return r
	}
	return rules[model.ModeGoNoGo]
}

// Score is the result of a session.
type Score struct {
	RawPoints    float64
	Points       int
	FruitsEarned int
	Correct      int
	BestStreak   int
}

// Streaks returns the running streak after each outcome. Correct scored
// outcomes extend the streak, incorrect ones reset it, unscored ones carry it.
func Streaks(outcomes []model.TrialOutcome) []int {
	series := make([]int, len(outcomes))
	streak := 0
	for i, o := range outcomes {
		if o.Solicited {
			if o.Correct {
				streak++
			} else {
				streak = 0
			}
		}
		series[i] = streak
	}
	return series
}

// Score totals points and fruits. streaks must align with outcomes; a
// shorter series is recomputed. recallCorrect is nil for modes without a
// recall question.
func (r Rule) Score(outcomes []model.TrialOutcome, recallCorrect *bool, streaks []int, level int) Score {
	if len(streaks) < len(outcomes) {
		streaks = Streaks(outcomes)
	}
	if level < 1 {
		level = 1
	}
	multiplier := 1 + r.LevelStep*float64(level-1)
	var s Score
	for i, o := range outcomes {
		if !o.Solicited || !o.Correct {
			continue
		}
		s.Correct++
		streak := streaks[i]
		if streak > s.BestStreak {
			s.BestStreak = streak
		}
		bonus := math.Min(float64(streak)*r.StreakStep, r.StreakCap)
		s.RawPoints += r.PointsPerCorrect*multiplier + bonus
	}
	s.Points = int(math.Trunc(s.RawPoints))
	if r.FruitDivisor > 0 {
		s.FruitsEarned = s.Correct / r.FruitDivisor
	}
	if recallCorrect != nil && *recallCorrect {
		s.FruitsEarned += r.RecallBonus
	}
	return s
}
