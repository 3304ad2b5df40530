// Package adaptive recommends the next difficulty level from recent accuracy.
package adaptive

import (
	"github.com/verte-zerg/tuimind/internal/config"
	"github.com/verte-zerg/tuimind/internal/metrics"
	"github.com/verte-zerg/tuimind/internal/model"
)

// Controller is a pure threshold controller over a rolling window.
type Controller struct {
	cfg model.AdaptiveConfig
}

// New returns a controller. A zero config takes the defaults. Otherwise the
// thresholds are kept as given; only the window and level range are filled.
func New(cfg model.AdaptiveConfig) Controller {
	def := config.DefaultAdaptive()
	if cfg == (model.AdaptiveConfig{}) {
		return Controller{cfg: def}
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MinLevel <= 0 {
		cfg.MinLevel = def.MinLevel
	}
	if cfg.MaxLevel < cfg.MinLevel {
		cfg.MaxLevel = def.MaxLevel
		if cfg.MaxLevel < cfg.MinLevel {
			cfg.MaxLevel = cfg.MinLevel
		}
	}
	return Controller{cfg: cfg}
}

// Config returns the effective settings.
func (c Controller) Config() model.AdaptiveConfig {
	return c.cfg
}

// Clamp limits level to the configured range.
func (c Controller) Clamp(level int) int {
	if level < c.cfg.MinLevel {
		return c.cfg.MinLevel
	}
	if level > c.cfg.MaxLevel {
		return c.cfg.MaxLevel
	}
	return level
}

// Recommend returns the level for the next session. Only scored outcomes
// count; with fewer than a full window the level is held.
func (c Controller) Recommend(currentLevel int, recentOutcomes []model.TrialOutcome) int {
	currentLevel = c.Clamp(currentLevel)
	window := Window(recentOutcomes, c.cfg.Window)
	if len(window) < c.cfg.Window {
		return currentLevel
	}
	correct := 0
	for _, o := range window {
		if o.Correct {
			correct++
		}
	}
	acc := metrics.Accuracy(correct, len(window))
	switch {
	case acc >= c.cfg.ThresholdUp && currentLevel < c.cfg.MaxLevel:
		return currentLevel + 1
	case acc <= c.cfg.ThresholdDown && currentLevel > c.cfg.MinLevel:
		return currentLevel - 1
	default:
		return currentLevel
	}
}

// Window returns the last size scored outcomes, oldest first.
func Window(outcomes []model.TrialOutcome, size int) []model.TrialOutcome {
	scored := make([]model.TrialOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Solicited {
			scored = append(scored, o)
		}
	}
	if size > 0 && len(scored) > size {
		scored = scored[len(scored)-size:]
	}
	return scored
}
