// Package main provides the CLI entrypoint for tuimind.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/tuimind/internal/adaptive"
	"github.com/verte-zerg/tuimind/internal/config"
	"github.com/verte-zerg/tuimind/internal/generator"
	"github.com/verte-zerg/tuimind/internal/logging"
	"github.com/verte-zerg/tuimind/internal/model"
	"github.com/verte-zerg/tuimind/internal/stats"
	"github.com/verte-zerg/tuimind/internal/statsui"
	"github.com/verte-zerg/tuimind/internal/stimulus"
	"github.com/verte-zerg/tuimind/internal/store"
	"github.com/verte-zerg/tuimind/internal/tui"
)

const (
	defaultMode        = string(model.ModeGoNoGo)
	defaultLogLevel    = "info"
	defaultCurveWindow = 5
)

var (
	playMode     string
	playLevel    int
	playSeed     int64
	playPool     string
	playLogLevel string

	statsMode        string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool

	levelsMode string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tuimind",
		Short:         "TUI brain training with fruit",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.Flags().StringVar(&playMode, "mode", defaultMode, "game mode (gonogo, nback, taskswitch, dualtask)")
	rootCmd.Flags().IntVar(&playLevel, "level", 0, "difficulty level (default: stored level)")
	rootCmd.Flags().Int64Var(&playSeed, "seed", 0, "seed for the trial generator (default: random)")
	rootCmd.Flags().StringVar(&playPool, "pool", "", "custom stimulus pool file")
	rootCmd.Flags().StringVar(&playLogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newModesCmd())
	rootCmd.AddCommand(newLevelsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newFruitsCmd())

	return rootCmd
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "mode", &playMode, fileCfg.Play.Mode)
	applyIntConfig(cmd, "level", &playLevel, fileCfg.Play.Level)
	applyInt64Config(cmd, "seed", &playSeed, fileCfg.Play.Seed)
	applyStringConfig(cmd, "pool", &playPool, fileCfg.Play.Pool)
	applyStringConfig(cmd, "log-level", &playLogLevel, fileCfg.Play.LogLevel)

	mode, ok := model.ParseMode(playMode)
	if !ok {
		return fmt.Errorf("unknown --mode %q (available: %s)", playMode, modeNames())
	}
	cfg := model.PlayConfig{
		Mode:     mode,
		Level:    playLevel,
		Seed:     playSeed,
		PoolPath: playPool,
		LogLevel: playLogLevel,
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	// Records must not reach the terminal while the play screen owns it.
	logger, closeLog, err := logging.Setup(cfg.LogLevel, config.DefaultLogPath(), io.Discard)
	if err != nil {
		logErrf("logging disabled: %v\n", err)
	}
	defer func() {
		if cerr := closeLog(); cerr != nil {
			_ = cerr
		}
	}()

	pool, err := loadPool(cfg.PoolPath, cmd.Flags().Changed("pool") || fileCfg.Play.Pool != nil)
	if err != nil {
		return err
	}
	tables, err := config.Levels().WithOverrides(fileCfg.Levels)
	if err != nil {
		return fmt.Errorf("invalid level overrides: %w", err)
	}
	adaptiveCfg, err := fileCfg.Adaptive.Resolve(config.DefaultAdaptive())
	if err != nil {
		return err
	}
	controller := adaptive.New(adaptiveCfg)

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	level, err := startLevel(context.Background(), st, controller, cfg)
	if err != nil {
		return err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed, err = generator.NewSeed()
		if err != nil {
			return fmt.Errorf("failed to seed generator: %w", err)
		}
	}
	logger.Info("starting play", "mode", mode, "level", level, "seed", seed, "pool_size", pool.Len())

	m := tui.NewModel(tui.Options{
		Mode:       mode,
		Level:      level,
		Generator:  generator.New(pool, tables, seed, logger),
		Recorder:   st,
		History:    st,
		Controller: controller,
		Logger:     logger,
	})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// startLevel returns the explicit level, or the stored one clamped to the
// controller range.
func startLevel(ctx context.Context, st *store.Store, controller adaptive.Controller, cfg model.PlayConfig) (int, error) {
	if cfg.Level > 0 {
		return controller.Clamp(cfg.Level), nil
	}
	level, err := st.GetLevel(ctx, cfg.Mode)
	if errors.Is(err, store.ErrNoLevel) {
		return controller.Config().MinLevel, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load level: %w", err)
	}
	return controller.Clamp(level), nil
}

// loadPool reads the custom pool. A missing default pool file means the
// built-in fruit; a missing explicit one is an error.
func loadPool(path string, explicit bool) (*stimulus.Pool, error) {
	if path == "" {
		path = config.DefaultPoolPath()
	}
	pool, err := stimulus.LoadPool(path)
	if err == nil {
		return pool, nil
	}
	if os.IsNotExist(err) && !explicit {
		return stimulus.Default(), nil
	}
	return nil, fmt.Errorf("failed to load pool %s: %w", path, err)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newModesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List game modes and their current level",
		Args:  cobra.NoArgs,
		RunE:  runModesCmd,
	}
}

func runModesCmd(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	return writeModes(cmd.Context(), cmd.OutOrStdout(), st)
}

func writeModes(ctx context.Context, w io.Writer, src stats.Source) error {
	for _, mode := range model.Modes() {
		level := "-"
		stored, err := src.GetLevel(ctx, mode)
		switch {
		case err == nil:
			level = fmt.Sprintf("%d", stored)
		case !errors.Is(err, store.ErrNoLevel):
			return fmt.Errorf("failed to load level: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%-12s %-12s level %s\n", mode, mode.Title(), level); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newLevelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Print the effective level tables",
		Args:  cobra.NoArgs,
		RunE:  runLevelsCmd,
	}
	cmd.Flags().StringVar(&levelsMode, "mode", "", "mode filter")
	return cmd
}

func runLevelsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	tables, err := config.Levels().WithOverrides(fileCfg.Levels)
	if err != nil {
		return fmt.Errorf("invalid level overrides: %w", err)
	}
	modes := model.Modes()
	if levelsMode != "" {
		mode, ok := model.ParseMode(levelsMode)
		if !ok {
			return fmt.Errorf("unknown --mode %q (available: %s)", levelsMode, modeNames())
		}
		modes = []model.Mode{mode}
	}
	return writeLevels(cmd.OutOrStdout(), tables, modes)
}

func writeLevels(w io.Writer, tables config.Tables, modes []model.Mode) error {
	for i, mode := range modes {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		if _, err := fmt.Fprintln(w, mode.Title()); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		for _, n := range tables.LevelNumbers(mode) {
			entry, _ := tables.LevelFor(mode, n)
			if _, err := fmt.Fprintf(w, "  L%d  %s\n", n, describeLevel(mode, entry)); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
	}
	return nil
}

func describeLevel(mode model.Mode, l model.LevelConfig) string {
	base := fmt.Sprintf("%3d trials  show %4dms  gap %4dms", l.TrialCount, l.StimulusDurationMs, l.ISIMs)
	switch mode {
	case model.ModeGoNoGo:
		return fmt.Sprintf("%s  go %.0f%%", base, l.GoRatio*100)
	case model.ModeNBack:
		return fmt.Sprintf("%s  n=%d  match %.0f%%", base, l.NLevel, l.MatchRatio*100)
	case model.ModeTaskSwitch:
		return fmt.Sprintf("%s  switch %.0f%%", base, l.SwitchProbability*100)
	case model.ModeDualTask:
		return fmt.Sprintf("%s  target %.0f%%  count %.0f%%", base, l.TargetRatio*100, l.CountFruitRatio*100)
	default:
		return base
	}
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsMode, "mode", "", "mode filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the TUI")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := parseStatsFlags(statsMode, statsSince, statsLast, statsCurveWindow)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	pool, err := loadPool("", false)
	if err != nil {
		pool = stimulus.Default()
	}

	if statsPlain {
		report, err := stats.BuildReport(cmd.Context(), st, cfg)
		if err != nil {
			return err
		}
		return writePlainReport(cmd.OutOrStdout(), report)
	}

	m := statsui.NewModel(st, pool, cfg)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func parseStatsFlags(modeName, since string, last, window int) (model.StatsConfig, error) {
	cfg := model.StatsConfig{Last: last, CurveWindow: window}
	if modeName != "" {
		mode, ok := model.ParseMode(modeName)
		if !ok {
			return model.StatsConfig{}, fmt.Errorf("unknown --mode %q (available: %s)", modeName, modeNames())
		}
		cfg.Mode = mode
	}
	if since != "" {
		parsed, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return model.StatsConfig{}, fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = &parsed
	}
	if last < 0 {
		return model.StatsConfig{}, fmt.Errorf("--last must be >= 0")
	}
	if window <= 0 {
		return model.StatsConfig{}, fmt.Errorf("--curve-window must be > 0")
	}
	return cfg, nil
}

func writePlainReport(w io.Writer, report stats.Report) error {
	if len(report.Sessions) == 0 {
		if _, err := fmt.Fprintln(w, "No sessions yet. Run: tuimind --mode gonogo"); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	steps := []func() error{
		func() error { return stats.RenderSummary(w, report.Sessions) },
		func() error { return stats.RenderModeTable(w, report.Sessions) },
		func() error { return stats.RenderSparklines(w, report.Sessions, report.CurveWindow) },
		func() error { return stats.RenderCurves(w, report.Sessions, report.CurveWindow) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func newFruitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fruits",
		Short: "Show the fruit basket",
		Args:  cobra.NoArgs,
		RunE:  runFruitsCmd,
	}
}

func runFruitsCmd(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	items, err := st.ListInventory(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load inventory: %w", err)
	}
	pool, err := loadPool("", false)
	if err != nil {
		pool = stimulus.Default()
	}
	return stats.RenderInventory(cmd.OutOrStdout(), items, glyphLookup(pool))
}

func glyphLookup(pool *stimulus.Pool) func(id string) string {
	return func(id string) string {
		if s, ok := pool.Lookup(id); ok {
			return s.Glyph
		}
		if s, ok := stimulus.Default().Lookup(id); ok {
			return s.Glyph
		}
		return "?"
	}
}

func modeNames() string {
	names := make([]string, 0, len(model.Modes()))
	for _, m := range model.Modes() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	adaptiveCfg := config.DefaultAdaptive()
	return fmt.Sprintf(`# tuimind configuration
# Uncomment a value to enable it. CLI flags override config values.

[play]
# mode = %q            # gonogo, nback, taskswitch or dualtask
# level = 2                 # Start level (default: stored level)
# seed = 42                 # Fixed generator seed
# pool = "~/fruit.txt"      # Custom pool: one "id glyph warm|cool big|small" per line
# log-level = %q          # debug, info, warn or error

[adaptive]
# window = %d               # Scored trials used to pick the next level
# threshold-up = %.2f       # Accuracy needed to level up
# threshold-down = %.2f     # Accuracy below which the level drops
# min-level = %d
# max-level = %d

# Per-level overrides merge over the built-in tables (see: tuimind levels).
# [levels.gonogo.1]
# trials = 10
# stimulus-ms = 1400
`,
		defaultMode,
		defaultLogLevel,
		adaptiveCfg.Window,
		adaptiveCfg.ThresholdUp,
		adaptiveCfg.ThresholdDown,
		adaptiveCfg.MinLevel,
		adaptiveCfg.MaxLevel,
	)
}

func validateConfig(cfg model.PlayConfig) error {
	if cfg.Level < 0 {
		return fmt.Errorf("--level must be >= 0")
	}
	if cfg.Seed < 0 {
		return fmt.Errorf("--seed must be >= 0")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
