// Package session drives one game session through its phases.
//
// The state machine never starts goroutines or timers itself. Each
// transition that needs a delay returns a Timer request; the caller
// schedules it and hands it back through Fire. Only the most recently
// issued timer is live, so a late or cancelled timer is ignored and an
// outcome can never be recorded twice.
package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuimind/internal/generator"
	"github.com/verte-zerg/tuimind/internal/logging"
	"github.com/verte-zerg/tuimind/internal/metrics"
	"github.com/verte-zerg/tuimind/internal/model"
)

// CountdownFrom is the first countdown value.
const CountdownFrom = 3

// CountdownStep is the delay between countdown values.
const CountdownStep = time.Second

// ErrNotRunning is returned when an operation does not fit the current phase.
var ErrNotRunning = errors.New("session is not in a phase that accepts this action")

// Phase is a state of the session machine.
type Phase int

// Session phases.
const (
	PhaseIntro Phase = iota
	PhaseCountdown
	PhasePresenting
	PhaseInterval
	PhaseRecall
	PhaseResult
	PhaseAbandoned
)

func (p Phase) String() string {
	switch p {
	case PhaseIntro:
		return "intro"
	case PhaseCountdown:
		return "countdown"
	case PhasePresenting:
		return "presenting"
	case PhaseInterval:
		return "interval"
	case PhaseRecall:
		return "recall"
	case PhaseResult:
		return "result"
	case PhaseAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// TimerKind says what a timer drives.
type TimerKind int

// Timer kinds.
const (
	TimerCountdown TimerKind = iota
	TimerResponse
	TimerInterval
)

// Timer is a request to call Fire after Delay.
type Timer struct {
	Kind  TimerKind
	Delay time.Duration
	Seq   uint64
}

// Clock returns the current time.
type Clock func() time.Time

// Options configures a session.
type Options struct {
	Clock  Clock
	Logger *slog.Logger
}

// Session is the state of one play-through. It is not safe for concurrent
// use; all calls must come from the single owner of the session.
type Session struct {
	id     string
	plan   generator.Plan
	opts   Options
	now    Clock
	logger *slog.Logger

	phase     Phase
	countdown int
	index     int
	seq       uint64
	pending   uint64

	pendingKind TimerKind
	deadline    time.Time
	paused      bool
	pausedAt    time.Time
	remaining   time.Duration

	presentedAt time.Time
	responded   []bool
	outcomes    []model.TrialOutcome
	agg         *metrics.Aggregator

	recallAnswer  *int
	recallCorrect *bool

	startedAt time.Time
	endedAt   time.Time
	finished  bool
}

// New creates a session in the intro phase.
func New(plan generator.Plan, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Session{
		id:        uuid.NewString(),
		plan:      plan,
		opts:      opts,
		now:       opts.Clock,
		logger:    opts.Logger.With("mode", plan.Mode, "level", plan.Level),
		phase:     PhaseIntro,
		responded: make([]bool, len(plan.Trials)),
		outcomes:  make([]model.TrialOutcome, 0, len(plan.Trials)),
		agg:       metrics.New(plan.Mode),
	}
}

// Retry returns a brand-new session for plan with the same options. It is
// valid once the session has reached its result or was abandoned.
func (s *Session) Retry(plan generator.Plan) (*Session, error) {
	if s.phase != PhaseResult && s.phase != PhaseAbandoned {
		return nil, ErrNotRunning
	}
	return New(plan, s.opts), nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Plan returns the generated trials and targets.
func (s *Session) Plan() generator.Plan { return s.plan }

// Mode returns the game mode.
func (s *Session) Mode() model.Mode { return s.plan.Mode }

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phase }

// Countdown returns the remaining countdown value.
func (s *Session) Countdown() int { return s.countdown }

// Index returns the current trial index.
func (s *Session) Index() int { return s.index }

// TrialCount returns the number of trials.
func (s *Session) TrialCount() int { return len(s.plan.Trials) }

// StartedAt returns when the countdown began.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// EndedAt returns when the session reached its result.
func (s *Session) EndedAt() time.Time { return s.endedAt }

// Current returns the trial on screen, if any.
func (s *Session) Current() (model.Trial, bool) {
	if s.phase != PhasePresenting {
		return nil, false
	}
	return s.plan.Trials[s.index], true
}

// TargetsRevealed reports whether the fixed targets or rule may be shown.
func (s *Session) TargetsRevealed() bool {
	return s.phase != PhaseIntro && s.phase != PhaseCountdown
}

// Outcomes returns a copy of the recorded outcomes.
func (s *Session) Outcomes() []model.TrialOutcome {
	out := make([]model.TrialOutcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// Metrics returns the live aggregator. It is safe to read mid-session.
func (s *Session) Metrics() *metrics.Aggregator { return s.agg }

// RecallOptions returns the count choices while in the recall phase.
func (s *Session) RecallOptions() []int {
	if s.phase != PhaseRecall {
		return nil
	}
	out := make([]int, len(s.plan.RecallOptions))
	copy(out, s.plan.RecallOptions)
	return out
}

// RecallAnswer returns the chosen count, or nil when none was given.
func (s *Session) RecallAnswer() *int { return s.recallAnswer }

// RecallCorrect returns the recall result, or nil when none was asked.
func (s *Session) RecallCorrect() *bool { return s.recallCorrect }

// Start leaves the intro and begins the countdown.
func (s *Session) Start() (Timer, error) {
	if s.phase != PhaseIntro {
		return Timer{}, ErrNotRunning
	}
	s.phase = PhaseCountdown
	s.countdown = CountdownFrom
	s.startedAt = s.now()
	s.logger.Debug("session started", "trials", len(s.plan.Trials))
	return s.schedule(TimerCountdown, CountdownStep), nil
}

// Fire handles an elapsed timer. ok is false when the timer was stale and
// ignored; next is valid only when more is true.
func (s *Session) Fire(t Timer) (next Timer, more bool, ok bool) {
	if t.Seq == 0 || t.Seq != s.pending {
		s.logger.Debug("ignoring stale timer", "seq", t.Seq, "pending", s.pending)
		return Timer{}, false, false
	}
	s.pending = 0
	switch t.Kind {
	case TimerCountdown:
		if s.phase != PhaseCountdown {
			return Timer{}, false, false
		}
		s.countdown--
		if s.countdown > 0 {
			return s.schedule(TimerCountdown, CountdownStep), true, true
		}
		next, more = s.present(0)
		return next, more, true
	case TimerResponse:
		if s.phase != PhasePresenting {
			return Timer{}, false, false
		}
		s.record(Action{Response: model.ResponseNone, At: s.now(), TimedOut: true})
		next, more = s.advance()
		return next, more, true
	case TimerInterval:
		if s.phase != PhaseInterval {
			return Timer{}, false, false
		}
		next, more = s.present(s.index + 1)
		return next, more, true
	}
	return Timer{}, false, false
}

// Pause stops the clock of a running session. The pending timer becomes stale
// and actions are ignored until Resume. It reports false when nothing runs.
func (s *Session) Pause() bool {
	if s.paused || s.pending == 0 {
		return false
	}
	switch s.phase {
	case PhaseCountdown, PhasePresenting, PhaseInterval:
	default:
		return false
	}
	s.paused = true
	s.pausedAt = s.now()
	s.remaining = max(0, s.deadline.Sub(s.pausedAt))
	s.pending = 0
	s.logger.Debug("session paused", "phase", s.phase, "remaining", s.remaining)
	return true
}

// Resume restarts a paused session with the time that was left on its
// timer. The paused span is excluded from the current reaction time.
func (s *Session) Resume() (Timer, bool) {
	if !s.paused {
		return Timer{}, false
	}
	s.paused = false
	s.presentedAt = s.presentedAt.Add(s.now().Sub(s.pausedAt))
	return s.schedule(s.pendingKind, s.remaining), true
}

// Paused reports whether the session is paused.
func (s *Session) Paused() bool { return s.paused }

// Respond handles a user action on the current trial. The pending response
// timer is cancelled before the outcome is recorded. ok is false when the
// action was ignored: wrong phase, already answered, unsolicited trial or a
// response the mode does not use.
func (s *Session) Respond(resp model.Response) (next Timer, more bool, ok bool) {
	if s.phase != PhasePresenting || s.paused {
		return Timer{}, false, false
	}
	if s.responded[s.index] {
		return Timer{}, false, false
	}
	trial := s.plan.Trials[s.index]
	if !Accepts(trial, resp) {
		return Timer{}, false, false
	}
	s.pending = 0
	s.record(Action{Response: resp, At: s.now()})
	next, more = s.advance()
	return next, more, true
}

// AnswerRecall records the count answer and moves to the result.
func (s *Session) AnswerRecall(answer int) error {
	if s.phase != PhaseRecall {
		return ErrNotRunning
	}
	correct := answer == s.plan.CountTotal
	s.recallAnswer = &answer
	s.recallCorrect = &correct
	s.agg.SetRecall(answer, correct)
	s.finishTrials()
	return nil
}

// Abandon discards the session. No further timer or action has effect.
func (s *Session) Abandon() {
	if s.phase == PhaseResult {
		return
	}
	s.phase = PhaseAbandoned
	s.pending = 0
	s.paused = false
	s.logger.Debug("session abandoned", "recorded", len(s.outcomes))
}

func (s *Session) schedule(kind TimerKind, delay time.Duration) Timer {
	s.seq++
	s.pending = s.seq
	s.pendingKind = kind
	s.deadline = s.now().Add(delay)
	return Timer{Kind: kind, Delay: delay, Seq: s.seq}
}

func (s *Session) present(index int) (Timer, bool) {
	if index >= len(s.plan.Trials) {
		s.finishTrials()
		return Timer{}, false
	}
	s.phase = PhasePresenting
	s.index = index
	s.presentedAt = s.now()
	return s.schedule(TimerResponse, s.plan.Config.StimulusDuration()), true
}

func (s *Session) record(act Action) {
	if s.responded[s.index] {
		return
	}
	s.responded[s.index] = true
	trial := s.plan.Trials[s.index]
	o := Evaluate(s.index, trial, s.presentedAt, act)
	s.outcomes = append(s.outcomes, o)
	s.agg.Add(trial, o)
}

func (s *Session) advance() (Timer, bool) {
	if s.index+1 < len(s.plan.Trials) {
		if isi := s.plan.Config.ISI(); isi > 0 {
			s.phase = PhaseInterval
			return s.schedule(TimerInterval, isi), true
		}
		return s.present(s.index + 1)
	}
	if s.plan.Mode.HasRecall() {
		s.phase = PhaseRecall
		return Timer{}, false
	}
	s.finishTrials()
	return Timer{}, false
}

func (s *Session) finishTrials() {
	s.phase = PhaseResult
	s.endedAt = s.now()
	s.logger.Debug("session complete", "correct", s.agg.Correct(), "total", s.agg.Total())
}
