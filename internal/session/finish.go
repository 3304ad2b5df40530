package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/verte-zerg/tuimind/internal/adaptive"
	"github.com/verte-zerg/tuimind/internal/logging"
	"github.com/verte-zerg/tuimind/internal/model"
	"github.com/verte-zerg/tuimind/internal/scoring"
)

// ErrFinished is returned when a session is finalized a second time.
var ErrFinished = errors.New("session already finalized")

// Recorder persists completed sessions. Failures never reach the player.
type Recorder interface {
	SaveSession(ctx context.Context, rec model.SessionRecord) (int64, error)
	RecentOutcomes(ctx context.Context, mode model.Mode, level, limit int) ([]model.TrialOutcome, error)
	SetLevel(ctx context.Context, mode model.Mode, level int) error
	AddFruits(ctx context.Context, stimulusID string, count int) error
}

// FinishOptions wires the collaborators of Finish.
type FinishOptions struct {
	Controller adaptive.Controller
	// Recorder may be nil, in which case nothing is persisted.
	Recorder Recorder
	Logger   *slog.Logger
}

// Finish finalizes a session in the result phase exactly once: it scores
// the outcomes, recommends the next level and hands the record to the
// recorder.
func Finish(ctx context.Context, s *Session, opts FinishOptions) (model.SessionRecord, error) {
	if s.phase != PhaseResult {
		return model.SessionRecord{}, ErrNotRunning
	}
	if s.finished {
		return model.SessionRecord{}, ErrFinished
	}
	s.finished = true
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With("session", s.id, "mode", s.plan.Mode)

	outcomes := s.Outcomes()
	score := scoring.RuleFor(s.plan.Mode).Score(outcomes, s.recallCorrect, scoring.Streaks(outcomes), s.plan.Level)

	ctrl := opts.Controller
	if ctrl.Config().Window <= 0 {
		ctrl = adaptive.New(model.AdaptiveConfig{})
	}
	window := ctrl.Config().Window
	evidence := outcomes
	if opts.Recorder != nil {
		history, err := opts.Recorder.RecentOutcomes(ctx, s.plan.Mode, s.plan.Level, window)
		if err != nil {
			logger.Warn("failed to load recent outcomes", "err", err)
		} else {
			evidence = append(history, outcomes...)
		}
	}
	next := ctrl.Recommend(s.plan.Level, evidence)

	rec := model.SessionRecord{
		ID:                 s.id,
		StartedAt:          s.startedAt,
		EndedAt:            s.endedAt,
		GameType:           s.plan.Mode,
		DifficultyLevel:    s.plan.Level,
		NextLevel:          next,
		Seed:               s.plan.Seed,
		TotalTrials:        s.agg.Total(),
		CorrectResponses:   s.agg.Correct(),
		IncorrectResponses: s.agg.Total() - s.agg.Correct(),
		AvgReactionTimeMs:  s.agg.MeanReactionTimeMs(),
		Points:             score.Points,
		FruitsEarned:       score.FruitsEarned,
		RewardStimulus:     s.plan.Reward.ID,
		Metrics:            s.agg.Snapshot(),
		Outcomes:           outcomes,
	}

	if opts.Recorder == nil {
		return rec, nil
	}
	if _, err := opts.Recorder.SaveSession(ctx, rec); err != nil {
		logger.Error("failed to save session", "err", err)
	}
	if err := opts.Recorder.SetLevel(ctx, s.plan.Mode, next); err != nil {
		logger.Error("failed to save difficulty level", "level", next, "err", err)
	}
	if rec.FruitsEarned > 0 && rec.RewardStimulus != "" {
		if err := opts.Recorder.AddFruits(ctx, rec.RewardStimulus, rec.FruitsEarned); err != nil {
			logger.Error("failed to add fruits", "stimulus", rec.RewardStimulus, "err", err)
		}
	}
	if next != s.plan.Level {
		logger.Info("difficulty changed", "from", s.plan.Level, "to", next)
	}
	return rec, nil
}
