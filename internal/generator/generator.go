// Package generator builds trial sequences for game sessions.
package generator

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/verte-zerg/tuimind/internal/config"
	"github.com/verte-zerg/tuimind/internal/logging"
	"github.com/verte-zerg/tuimind/internal/model"
	"github.com/verte-zerg/tuimind/internal/stimulus"
)

const (
	recallChoices    = 4
	maxDecoyAttempts = 32
	maxDecoyOffset   = 3
)

// Plan is the generated content of one session.
type Plan struct {
	Mode   model.Mode
	Level  int
	Config model.LevelConfig
	Seed   int64
	Trials []model.Trial

	// Target is the Go/No-Go target or the Dual-Task tap target.
	Target *model.Stimulus
	// Secondary is the Dual-Task count target.
	Secondary *model.Stimulus
	StartRule model.Rule
	N         int
	// CountTotal is the number of Dual-Task count items shown.
	CountTotal    int
	RecallOptions []int
	Reward        model.Stimulus
}

// Generator produces randomized trial sequences.
type Generator struct {
	rnd    *rand.Rand
	seed   int64
	pool   *stimulus.Pool
	tables config.Tables
	logger *slog.Logger
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// New returns a Generator drawing from pool with the given seed.
// A nil or empty pool is replaced by the built-in pool.
func New(pool *stimulus.Pool, tables config.Tables, seed int64, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.Discard()
	}
	if pool == nil || pool.Len() == 0 {
		logger.Warn("empty stimulus pool, using built-in fruits")
		pool = stimulus.Default()
	}
	return &Generator{
		rnd:    rand.New(rand.NewSource(seed)),
		seed:   seed,
		pool:   pool,
		tables: tables,
		logger: logger,
	}
}

// Pool returns the stimulus pool the generator draws from.
func (g *Generator) Pool() *stimulus.Pool {
	return g.pool
}

// Generate builds the trials for one session of mode at the given level.
// A trialCount of zero or less uses the level's configured count.
func (g *Generator) Generate(mode model.Mode, level, trialCount int) Plan {
	cfg, ok := g.tables.LevelFor(mode, level)
	if !ok {
		g.logger.Warn("missing level configuration, using fallback", "mode", mode, "level", level)
	}
	if trialCount <= 0 {
		trialCount = cfg.TrialCount
	}
	plan := Plan{
		Mode:   mode,
		Level:  level,
		Config: cfg,
		Seed:   g.seed,
	}
	switch mode {
	case model.ModeGoNoGo:
		g.goNoGo(&plan, trialCount)
	case model.ModeNBack:
		g.nBack(&plan, trialCount)
	case model.ModeTaskSwitch:
		g.taskSwitch(&plan, trialCount)
	case model.ModeDualTask:
		g.dualTask(&plan, trialCount)
	default:
		g.logger.Warn("unknown mode, generating Go/No-Go", "mode", mode)
		plan.Mode = model.ModeGoNoGo
		g.goNoGo(&plan, trialCount)
	}
	switch {
	case plan.Target != nil:
		plan.Reward = *plan.Target
	default:
		plan.Reward = g.pool.At(g.rnd.Intn(g.pool.Len()))
	}
	return plan
}

func (g *Generator) goNoGo(plan *Plan, count int) {
	target := g.pick()
	plan.Target = &target
	goTrials := quota(count, plan.Config.GoRatio)
	isGo := g.spread(count, goTrials)
	plan.Trials = make([]model.Trial, 0, count)
	for i := 0; i < count; i++ {
		item := target
		if !isGo[i] {
			item = g.pick(target.ID)
		}
		plan.Trials = append(plan.Trials, model.GoNoGoTrial{
			Item:                item,
			IsGo:                isGo[i],
			ScheduledDurationMs: plan.Config.StimulusDurationMs,
		})
	}
}

func (g *Generator) nBack(plan *Plan, count int) {
	n := plan.Config.NLevel
	if n < 1 {
		n = 1
	}
	plan.N = n
	items := make([]model.Stimulus, 0, count)
	plan.Trials = make([]model.Trial, 0, count)
	for i := 0; i < count; i++ {
		var item model.Stimulus
		switch {
		case i < n:
			item = g.pick()
		case g.rnd.Float64() < plan.Config.MatchRatio:
			item = items[i-n]
		default:
			item = g.pick(items[i-n].ID)
		}
		items = append(items, item)
		plan.Trials = append(plan.Trials, model.NBackTrial{
			Item:      item,
			IsTarget:  i >= n && item.ID == items[i-n].ID,
			Solicited: i >= n,
		})
	}
}

func (g *Generator) taskSwitch(plan *Plan, count int) {
	rule := model.RuleColor
	plan.StartRule = rule
	plan.Trials = make([]model.Trial, 0, count)
	for i := 0; i < count; i++ {
		prev := rule
		if i > 0 && g.rnd.Float64() < plan.Config.SwitchProbability {
			rule = rule.Other()
		}
		item := g.pick()
		plan.Trials = append(plan.Trials, model.TaskSwitchTrial{
			Item:        item,
			Rule:        rule,
			CorrectSide: stimulus.Classify(rule, item),
			IsSwitch:    i > 0 && rule != prev,
		})
	}
}

func (g *Generator) dualTask(plan *Plan, count int) {
	primary := g.pick()
	secondary := g.pick(primary.ID)
	plan.Target = &primary
	plan.Secondary = &secondary

	primaryCount := quota(count, plan.Config.TargetRatio)
	secondaryCount := quota(count, plan.Config.CountFruitRatio)
	if primaryCount+secondaryCount > count {
		secondaryCount = count - primaryCount
	}
	kinds := make([]int, count)
	for i := range kinds {
		switch {
		case i < primaryCount:
			kinds[i] = 1
		case i < primaryCount+secondaryCount:
			kinds[i] = 2
		}
	}
	g.rnd.Shuffle(len(kinds), func(i, j int) { kinds[i], kinds[j] = kinds[j], kinds[i] })

	plan.Trials = make([]model.Trial, 0, count)
	for _, kind := range kinds {
		var trial model.DualTaskTrial
		switch kind {
		case 1:
			trial = model.DualTaskTrial{Item: primary, IsPrimaryTarget: true}
		case 2:
			trial = model.DualTaskTrial{Item: secondary, IsSecondaryCountItem: true}
		default:
			trial = model.DualTaskTrial{Item: g.pick(primary.ID, secondary.ID)}
		}
		if trial.Item.ID == secondary.ID {
			trial.IsSecondaryCountItem = true
		}
		if trial.Item.ID == primary.ID {
			trial.IsPrimaryTarget = true
		}
		if trial.IsSecondaryCountItem {
			plan.CountTotal++
		}
		plan.Trials = append(plan.Trials, trial)
	}
	plan.RecallOptions = g.RecallOptions(plan.CountTotal)
}

// RecallOptions returns the true count plus three decoys, sorted ascending.
// Decoys are random offsets of up to three; when collisions leave fewer than
// four values the set is padded with the nearest unused integers.
func (g *Generator) RecallOptions(count int) []int {
	if count < 0 {
		count = 0
	}
	seen := map[int]struct{}{}
	opts := make([]int, 0, recallChoices)
	add := func(v int) {
		if v < 0 {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		opts = append(opts, v)
	}
	add(count)
	for attempt := 0; len(opts) < recallChoices && attempt < maxDecoyAttempts; attempt++ {
		offset := g.rnd.Intn(maxDecoyOffset) + 1
		if g.rnd.Intn(2) == 0 {
			offset = -offset
		}
		v := count + offset
		if v < 0 {
			v = 0
		}
		add(v)
	}
	for k := 1; len(opts) < recallChoices; k++ {
		add(count + k)
		if len(opts) < recallChoices {
			add(count - k)
		}
	}
	sort.Ints(opts)
	return opts
}

// pick draws a stimulus uniformly, excluding the given IDs. When the
// exclusion leaves nothing it falls back to the whole pool.
func (g *Generator) pick(exclude ...string) model.Stimulus {
	if len(exclude) == 0 {
		return g.pool.At(g.rnd.Intn(g.pool.Len()))
	}
	candidates := g.pool.Except(exclude...)
	if len(candidates) == 0 {
		g.logger.Warn("stimulus pool too small for exclusion, allowing repeat",
			"pool", g.pool.Len(), "excluded", len(exclude))
		return g.pool.At(g.rnd.Intn(g.pool.Len()))
	}
	return candidates[g.rnd.Intn(len(candidates))]
}

// spread marks k of n positions true, uniformly at random.
func (g *Generator) spread(n, k int) []bool {
	marks := make([]bool, n)
	for _, idx := range g.rnd.Perm(n)[:k] {
		marks[idx] = true
	}
	return marks
}

func quota(n int, ratio float64) int {
	k := int(math.Round(float64(n) * ratio))
	if k < 0 {
		return 0
	}
	if k > n {
		return n
	}
	return k
}
