package generator

import (
	"math"
	"sort"
	"testing"

	"github.com/verte-zerg/tuimind/internal/config"
	"github.com/verte-zerg/tuimind/internal/model"
	"github.com/verte-zerg/tuimind/internal/stimulus"
)

func testTables(mode model.Mode, cfg model.LevelConfig) config.Tables {
	return config.Tables{mode: {1: cfg}}
}

func TestGenerateLengthMatchesConfig(t *testing.T) {
	tables := config.Levels()
	for _, mode := range model.Modes() {
		for _, level := range tables.LevelNumbers(mode) {
			g := New(stimulus.Default(), tables, int64(level), nil)
			plan := g.Generate(mode, level, 0)
			cfg, _ := tables.LevelFor(mode, level)
			if len(plan.Trials) != cfg.TrialCount {
				t.Fatalf("%s level %d: expected %d trials, got %d", mode, level, cfg.TrialCount, len(plan.Trials))
			}
			for i, trial := range plan.Trials {
				if trial.Mode() != mode {
					t.Fatalf("%s trial %d has mode %s", mode, i, trial.Mode())
				}
			}
		}
	}
}

func TestNBackTargetsMatchHistory(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		cfg := model.LevelConfig{TrialCount: 40, StimulusDurationMs: 1000, MatchRatio: 0.4, NLevel: n}
		for seed := int64(0); seed < 50; seed++ {
			g := New(stimulus.Default(), testTables(model.ModeNBack, cfg), seed, nil)
			plan := g.Generate(model.ModeNBack, 1, 0)
			if plan.N != n {
				t.Fatalf("expected N=%d, got %d", n, plan.N)
			}
			for i, raw := range plan.Trials {
				trial := raw.(model.NBackTrial)
				if i < n {
					if trial.IsTarget || trial.Solicited {
						t.Fatalf("n=%d seed=%d: trial %d before n is scored", n, seed, i)
					}
					continue
				}
				back := plan.Trials[i-n].(model.NBackTrial)
				want := trial.Item.ID == back.Item.ID
				if trial.IsTarget != want {
					t.Fatalf("n=%d seed=%d: trial %d target=%v, want %v", n, seed, i, trial.IsTarget, want)
				}
				if !trial.Solicited {
					t.Fatalf("n=%d seed=%d: trial %d should be solicited", n, seed, i)
				}
			}
		}
	}
}

func TestNBackMatchRatioZeroHasNoTargets(t *testing.T) {
	cfg := model.LevelConfig{TrialCount: 30, StimulusDurationMs: 1000, MatchRatio: 0, NLevel: 2}
	g := New(stimulus.Default(), testTables(model.ModeNBack, cfg), 7, nil)
	for _, raw := range g.Generate(model.ModeNBack, 1, 0).Trials {
		if raw.(model.NBackTrial).IsTarget {
			t.Fatalf("unexpected target with match ratio 0")
		}
	}
}

func TestGoNoGoRatio(t *testing.T) {
	for _, tc := range []struct {
		trials int
		ratio  float64
	}{{6, 0.8}, {12, 0.75}, {30, 0.6}, {7, 0.5}} {
		cfg := model.LevelConfig{TrialCount: tc.trials, StimulusDurationMs: 1000, GoRatio: tc.ratio}
		for seed := int64(0); seed < 20; seed++ {
			g := New(stimulus.Default(), testTables(model.ModeGoNoGo, cfg), seed, nil)
			plan := g.Generate(model.ModeGoNoGo, 1, 0)
			if plan.Target == nil {
				t.Fatalf("expected a go target")
			}
			goCount := 0
			for _, raw := range plan.Trials {
				trial := raw.(model.GoNoGoTrial)
				if trial.IsGo {
					goCount++
					if trial.Item.ID != plan.Target.ID {
						t.Fatalf("go trial shows %s, want target %s", trial.Item.ID, plan.Target.ID)
					}
				} else if trial.Item.ID == plan.Target.ID {
					t.Fatalf("no-go trial shows the target")
				}
				if trial.ScheduledDurationMs != 1000 {
					t.Fatalf("unexpected scheduled duration %d", trial.ScheduledDurationMs)
				}
			}
			want := int(math.Round(float64(tc.trials) * tc.ratio))
			if goCount != want {
				t.Fatalf("trials=%d ratio=%.2f: go count %d, want %d", tc.trials, tc.ratio, goCount, want)
			}
		}
	}
}

func TestTaskSwitchAlwaysSwitches(t *testing.T) {
	cfg := model.LevelConfig{TrialCount: 15, StimulusDurationMs: 1000, SwitchProbability: 1}
	g := New(stimulus.Default(), testTables(model.ModeTaskSwitch, cfg), 3, nil)
	plan := g.Generate(model.ModeTaskSwitch, 1, 0)
	switches := 0
	for i, raw := range plan.Trials {
		trial := raw.(model.TaskSwitchTrial)
		if i == 0 && trial.Rule != plan.StartRule {
			t.Fatalf("first trial should use the start rule")
		}
		if trial.IsSwitch {
			switches++
		}
		if trial.CorrectSide != stimulus.Classify(trial.Rule, trial.Item) {
			t.Fatalf("trial %d has wrong correct side", i)
		}
	}
	if switches != cfg.TrialCount-1 {
		t.Fatalf("expected %d switch trials, got %d", cfg.TrialCount-1, switches)
	}
}

func TestTaskSwitchNeverSwitches(t *testing.T) {
	cfg := model.LevelConfig{TrialCount: 15, StimulusDurationMs: 1000, SwitchProbability: 0}
	g := New(stimulus.Default(), testTables(model.ModeTaskSwitch, cfg), 3, nil)
	for _, raw := range g.Generate(model.ModeTaskSwitch, 1, 0).Trials {
		trial := raw.(model.TaskSwitchTrial)
		if trial.IsSwitch || trial.Rule != model.RuleColor {
			t.Fatalf("unexpected switch with probability 0")
		}
	}
}

func TestDualTaskTargets(t *testing.T) {
	cfg := model.LevelConfig{TrialCount: 20, StimulusDurationMs: 1000, TargetRatio: 0.3, CountFruitRatio: 0.25}
	for seed := int64(0); seed < 20; seed++ {
		g := New(stimulus.Default(), testTables(model.ModeDualTask, cfg), seed, nil)
		plan := g.Generate(model.ModeDualTask, 1, 0)
		if plan.Target == nil || plan.Secondary == nil || plan.Target.ID == plan.Secondary.ID {
			t.Fatalf("expected two distinct targets")
		}
		primary, counted := 0, 0
		for _, raw := range plan.Trials {
			trial := raw.(model.DualTaskTrial)
			if trial.IsPrimaryTarget {
				primary++
				if trial.Item.ID != plan.Target.ID {
					t.Fatalf("primary trial shows %s", trial.Item.ID)
				}
			}
			if trial.IsSecondaryCountItem {
				counted++
				if trial.Item.ID != plan.Secondary.ID {
					t.Fatalf("count trial shows %s", trial.Item.ID)
				}
			}
		}
		if primary != 6 || counted != 5 {
			t.Fatalf("expected 6 primary and 5 count trials, got %d and %d", primary, counted)
		}
		if plan.CountTotal != counted {
			t.Fatalf("count total %d, want %d", plan.CountTotal, counted)
		}
		if len(plan.RecallOptions) != 4 || !containsInt(plan.RecallOptions, counted) {
			t.Fatalf("unexpected recall options %v", plan.RecallOptions)
		}
		if plan.Reward.ID != plan.Target.ID {
			t.Fatalf("expected reward to be the primary target")
		}
	}
}

func TestDegeneratePoolFallsBack(t *testing.T) {
	single := stimulus.New([]model.Stimulus{{ID: "only", Glyph: "o"}})
	cfg := model.LevelConfig{TrialCount: 10, StimulusDurationMs: 1000, GoRatio: 0.5, MatchRatio: 0.2, NLevel: 1}
	for _, mode := range model.Modes() {
		g := New(single, testTables(mode, cfg), 1, nil)
		plan := g.Generate(mode, 1, 0)
		if len(plan.Trials) != 10 {
			t.Fatalf("%s: expected 10 trials with degenerate pool, got %d", mode, len(plan.Trials))
		}
	}
}

func TestGenerateFallsBackForMissingLevel(t *testing.T) {
	g := New(stimulus.Default(), config.Levels(), 1, nil)
	plan := g.Generate(model.ModeGoNoGo, 99, 0)
	levelOne, _ := config.Levels().LevelFor(model.ModeGoNoGo, 1)
	if plan.Config != levelOne || len(plan.Trials) != levelOne.TrialCount {
		t.Fatalf("expected level 1 configuration for missing level")
	}
}

func TestSeededGenerationIsReproducible(t *testing.T) {
	a := New(stimulus.Default(), config.Levels(), 42, nil).Generate(model.ModeNBack, 3, 0)
	b := New(stimulus.Default(), config.Levels(), 42, nil).Generate(model.ModeNBack, 3, 0)
	for i := range a.Trials {
		if a.Trials[i] != b.Trials[i] {
			t.Fatalf("trial %d differs between identical seeds", i)
		}
	}
}

func TestRecallOptions(t *testing.T) {
	g := New(stimulus.Default(), config.Levels(), 5, nil)
	for count := 0; count < 12; count++ {
		for i := 0; i < 20; i++ {
			opts := g.RecallOptions(count)
			if len(opts) != 4 {
				t.Fatalf("count=%d: expected 4 options, got %v", count, opts)
			}
			if !sort.IntsAreSorted(opts) {
				t.Fatalf("count=%d: options not sorted: %v", count, opts)
			}
			if !containsInt(opts, count) {
				t.Fatalf("count=%d: true count missing from %v", count, opts)
			}
			seen := map[int]bool{}
			for _, v := range opts {
				if v < 0 || seen[v] {
					t.Fatalf("count=%d: invalid or duplicate option in %v", count, opts)
				}
				seen[v] = true
			}
		}
	}
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
