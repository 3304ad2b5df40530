package scoring

import (
	"testing"

	"github.com/verte-zerg/tuimind/internal/model"
)

func scored(correct ...bool) []model.TrialOutcome {
	out := make([]model.TrialOutcome, len(correct))
	for i, c := range correct {
		out[i] = model.TrialOutcome{TrialIndex: i, Solicited: true, Correct: c}
	}
	return out
}

func TestStreaks(t *testing.T) {
	outcomes := scored(true, true, false, true)
	outcomes = append(outcomes, model.TrialOutcome{Solicited: false})
	outcomes = append(outcomes, scored(true)...)
	got := Streaks(outcomes)
	want := []int{1, 2, 0, 1, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("streaks = %v, want %v", got, want)
		}
	}
}

func TestScoreStreakBonusAndTruncation(t *testing.T) {
	r := Rule{PointsPerCorrect: 10, StreakStep: 1.5, StreakCap: 4, LevelStep: 0.25, FruitDivisor: 2}
	outcomes := scored(true, true, true, false, true)
	s := r.Score(outcomes, nil, Streaks(outcomes), 1)
	// Bonuses: 1.5, 3, 4 (capped), 1.5.
	wantRaw := 40.0 + 1.5 + 3 + 4 + 1.5
	if s.RawPoints != wantRaw {
		t.Fatalf("raw points %.2f, want %.2f", s.RawPoints, wantRaw)
	}
	if s.Points != 50 {
		t.Fatalf("points %d, want 50", s.Points)
	}
	if s.Correct != 4 || s.FruitsEarned != 2 || s.BestStreak != 3 {
		t.Fatalf("unexpected score: %+v", s)
	}

	lvl3 := r.Score(outcomes, nil, nil, 3)
	if lvl3.RawPoints != 4*15+10 {
		t.Fatalf("unexpected level 3 raw points %.2f", lvl3.RawPoints)
	}
}

func TestScoreTruncatesFractionalPoints(t *testing.T) {
	r := Rule{PointsPerCorrect: 1, StreakStep: 0.4, StreakCap: 10, FruitDivisor: 5}
	outcomes := scored(true, true)
	s := r.Score(outcomes, nil, nil, 1)
	if s.RawPoints < 3.19 || s.RawPoints > 3.21 {
		t.Fatalf("unexpected raw points %.3f", s.RawPoints)
	}
	if s.Points != 3 || s.FruitsEarned != 0 {
		t.Fatalf("unexpected truncation: %+v", s)
	}
}

func TestRecallBonus(t *testing.T) {
	r := RuleFor(model.ModeDualTask)
	outcomes := scored(true, true, true, true, true, true)
	yes, no := true, false
	withRecall := r.Score(outcomes, &yes, nil, 1)
	without := r.Score(outcomes, &no, nil, 1)
	if withRecall.FruitsEarned != without.FruitsEarned+r.RecallBonus {
		t.Fatalf("expected recall bonus of %d, got %d vs %d", r.RecallBonus, withRecall.FruitsEarned, without.FruitsEarned)
	}
	if withRecall.Points != without.Points {
		t.Fatalf("recall should not change points")
	}
}

func TestScoreIgnoresUnsolicited(t *testing.T) {
	r := RuleFor(model.ModeNBack)
	outcomes := []model.TrialOutcome{{Solicited: false, Correct: true}}
	if s := r.Score(outcomes, nil, nil, 1); s.Correct != 0 || s.Points != 0 {
		t.Fatalf("unsolicited outcomes must not score: %+v", s)
	}
}
