// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/tuimind/internal/model"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Play     PlayConfig                          `toml:"play"`
	Adaptive AdaptiveConfig                      `toml:"adaptive"`
	Levels   map[string]map[string]LevelOverride `toml:"levels"`
}

// PlayConfig maps play-related settings.
type PlayConfig struct {
	Mode     *string `toml:"mode"`
	Level    *int    `toml:"level"`
	Seed     *int64  `toml:"seed"`
	Pool     *string `toml:"pool"`
	LogLevel *string `toml:"log-level"`
}

// AdaptiveConfig maps difficulty controller settings.
type AdaptiveConfig struct {
	Window        *int     `toml:"window"`
	ThresholdUp   *float64 `toml:"threshold-up"`
	ThresholdDown *float64 `toml:"threshold-down"`
	MinLevel      *int     `toml:"min-level"`
	MaxLevel      *int     `toml:"max-level"`
}

// LevelOverride replaces individual fields of one level entry.
type LevelOverride struct {
	TrialCount         *int     `toml:"trials"`
	StimulusDurationMs *int     `toml:"stimulus-ms"`
	ISIMs              *int     `toml:"isi-ms"`
	GoRatio            *float64 `toml:"go-ratio"`
	MatchRatio         *float64 `toml:"match-ratio"`
	SwitchProbability  *float64 `toml:"switch-probability"`
	TargetRatio        *float64 `toml:"target-ratio"`
	CountFruitRatio    *float64 `toml:"count-ratio"`
	NLevel             *int     `toml:"n"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Apply returns base with the set fields of the override replaced.
func (o LevelOverride) Apply(base model.LevelConfig) model.LevelConfig {
	setInt(&base.TrialCount, o.TrialCount)
	setInt(&base.StimulusDurationMs, o.StimulusDurationMs)
	setInt(&base.ISIMs, o.ISIMs)
	setFloat(&base.GoRatio, o.GoRatio)
	setFloat(&base.MatchRatio, o.MatchRatio)
	setFloat(&base.SwitchProbability, o.SwitchProbability)
	setFloat(&base.TargetRatio, o.TargetRatio)
	setFloat(&base.CountFruitRatio, o.CountFruitRatio)
	setInt(&base.NLevel, o.NLevel)
	return base
}

// Resolve merges the file values over the defaults and validates the result.
func (a AdaptiveConfig) Resolve(base model.AdaptiveConfig) (model.AdaptiveConfig, error) {
	setInt(&base.Window, a.Window)
	setFloat(&base.ThresholdUp, a.ThresholdUp)
	setFloat(&base.ThresholdDown, a.ThresholdDown)
	setInt(&base.MinLevel, a.MinLevel)
	setInt(&base.MaxLevel, a.MaxLevel)
	if err := validate.Struct(base); err != nil {
		return model.AdaptiveConfig{}, fmt.Errorf("invalid adaptive config: %w", err)
	}
	return base, nil
}

func setInt(target, value *int) {
	if value != nil {
		*target = *value
	}
}

func setFloat(target, value *float64) {
	if value != nil {
		*target = *value
	}
}
