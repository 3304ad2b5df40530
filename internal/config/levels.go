package config

import (
	_ "embed" // Embedded level tables.
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/verte-zerg/tuimind/internal/model"
)

//go:embed levels.toml
var levelsTOML []byte

// ErrUnknownMode is returned for a table key that names no game mode.
var ErrUnknownMode = errors.New("unknown game mode")

var validate = validator.New()

// Tables maps mode and level to the level tuning. Tables are immutable once built.
type Tables map[model.Mode]map[int]model.LevelConfig

var (
	levelsOnce sync.Once
	levels     Tables
)

// Levels returns the built-in tables, parsed once per process.
func Levels() Tables {
	levelsOnce.Do(func() {
		t, err := ParseLevels(levelsTOML)
		if err != nil {
			slog.Error("built-in level tables are invalid, using fallback entries", "err", err)
			t = Tables{}
		}
		levels = t
	})
	return levels
}

// DefaultAdaptive returns the default controller settings.
func DefaultAdaptive() model.AdaptiveConfig {
	return model.AdaptiveConfig{
		Window:        10,
		ThresholdUp:   0.85,
		ThresholdDown: 0.60,
		MinLevel:      1,
		MaxLevel:      5,
	}
}

// ParseLevels decodes and validates level tables from TOML.
func ParseLevels(data []byte) (Tables, error) {
	var raw map[string]map[string]model.LevelConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode level tables: %w", err)
	}
	t := Tables{}
	for modeKey, entries := range raw {
		mode, ok := model.ParseMode(modeKey)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMode, modeKey)
		}
		for levelKey, entry := range entries {
			level, err := parseLevelKey(modeKey, levelKey)
			if err != nil {
				return nil, err
			}
			if err := checkLevel(mode, entry); err != nil {
				return nil, fmt.Errorf("%s level %d: %w", mode, level, err)
			}
			t.set(mode, level, entry)
		}
	}
	return t, nil
}

// WithOverrides returns a copy of t with the user overrides merged in.
// An override for a missing level starts from that mode's level 1.
func (t Tables) WithOverrides(overrides map[string]map[string]LevelOverride) (Tables, error) {
	out := Tables{}
	for mode, entries := range t {
		for level, entry := range entries {
			out.set(mode, level, entry)
		}
	}
	for modeKey, entries := range overrides {
		mode, ok := model.ParseMode(modeKey)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMode, modeKey)
		}
		for levelKey, override := range entries {
			level, err := parseLevelKey(modeKey, levelKey)
			if err != nil {
				return nil, err
			}
			base, _ := out.LevelFor(mode, level)
			entry := override.Apply(base)
			if err := checkLevel(mode, entry); err != nil {
				return nil, fmt.Errorf("%s level %d: %w", mode, level, err)
			}
			out.set(mode, level, entry)
		}
	}
	return out, nil
}

// LevelFor returns the entry for mode and level. A missing level falls back
// to level 1, then to a built-in entry; ok is false when a fallback was used.
func (t Tables) LevelFor(mode model.Mode, level int) (cfg model.LevelConfig, ok bool) {
	if entries, found := t[mode]; found {
		if entry, found := entries[level]; found {
			return entry, true
		}
		if entry, found := entries[1]; found {
			return entry, false
		}
	}
	return fallbackLevel(mode), false
}

// LevelNumbers returns the configured levels of a mode in ascending order.
func (t Tables) LevelNumbers(mode model.Mode) []int {
	nums := make([]int, 0, len(t[mode]))
	for n := range t[mode] {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

func (t Tables) set(mode model.Mode, level int, entry model.LevelConfig) {
	if t[mode] == nil {
		t[mode] = map[int]model.LevelConfig{}
	}
	t[mode][level] = entry
}

func parseLevelKey(modeKey, levelKey string) (int, error) {
	level, err := strconv.Atoi(levelKey)
	if err != nil || level <= 0 {
		return 0, fmt.Errorf("%s: level key %q must be a positive integer", modeKey, levelKey)
	}
	return level, nil
}

func checkLevel(mode model.Mode, entry model.LevelConfig) error {
	if err := validate.Struct(entry); err != nil {
		return err
	}
	switch mode {
	case model.ModeNBack:
		if entry.NLevel < 1 {
			return fmt.Errorf("n must be at least 1")
		}
		if entry.TrialCount <= entry.NLevel {
			return fmt.Errorf("trials must exceed n")
		}
	case model.ModeDualTask:
		if entry.TargetRatio+entry.CountFruitRatio > 1 {
			return fmt.Errorf("target-ratio + count-ratio must not exceed 1")
		}
	}
	return nil
}

func fallbackLevel(mode model.Mode) model.LevelConfig {
	cfg := model.LevelConfig{
		TrialCount:         10,
		StimulusDurationMs: 2000,
		ISIMs:              700,
	}
	switch mode {
	case model.ModeGoNoGo:
		cfg.GoRatio = 0.8
	case model.ModeNBack:
		cfg.MatchRatio = 0.3
		cfg.NLevel = 1
	case model.ModeTaskSwitch:
		cfg.SwitchProbability = 0.2
	case model.ModeDualTask:
		cfg.TargetRatio = 0.3
		cfg.CountFruitRatio = 0.2
	}
	return cfg
}
