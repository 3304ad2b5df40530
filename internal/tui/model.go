// Package tui provides the Bubble Tea game interface.
package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/tuimind/internal/adaptive"
	"github.com/verte-zerg/tuimind/internal/generator"
	"github.com/verte-zerg/tuimind/internal/logging"
	"github.com/verte-zerg/tuimind/internal/metrics"
	"github.com/verte-zerg/tuimind/internal/model"
	"github.com/verte-zerg/tuimind/internal/session"
)

// SessionLister loads stored sessions for the footer.
type SessionLister interface {
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error)
}

// Options wires the play screen.
type Options struct {
	Mode      model.Mode
	Level     int
	Generator *generator.Generator
	// Recorder and History may be nil; nothing is persisted or shown then.
	Recorder   session.Recorder
	History    SessionLister
	Controller adaptive.Controller
	Logger     *slog.Logger
	Clock      session.Clock
}

// timerFiredMsg carries an elapsed session timer back into Update.
type timerFiredMsg struct {
	sessionID string
	timer     session.Timer
}

// Model implements the Bubble Tea game UI.
type Model struct {
	opts   Options
	logger *slog.Logger

	sess   *session.Session
	level  int
	record *model.SessionRecord

	// pending is the most recently scheduled timer.
	pending     session.Timer
	confirmQuit bool
	// lastCorrect is the outcome of the most recent trial, shown during the
	// interval that follows it.
	lastCorrect *bool

	width    int
	height   int
	progress progress.Model

	hasLast    bool
	lastAcc    float64
	allCorrect int
	allTotal   int
}

// NewModel constructs the play screen for one mode.
func NewModel(opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Level <= 0 {
		opts.Level = 1
	}
	m := &Model{
		opts:     opts,
		logger:   opts.Logger.With("component", "tui"),
		level:    opts.Level,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	m.sess = session.New(m.newPlan(), m.sessionOptions())
	m.loadFooterStats()
	return m
}

// Session returns the session currently on screen.
func (m *Model) Session() *session.Session {
	return m.sess
}

// Record returns the finalized record of the last completed session.
func (m *Model) Record() (model.SessionRecord, bool) {
	if m.record == nil {
		return model.SessionRecord{}, false
	}
	return *m.record, true
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, min(msg.Width/2, 60))
		return m, nil
	case timerFiredMsg:
		if msg.sessionID != m.sess.ID() {
			return m, nil
		}
		next, more, ok := m.sess.Fire(msg.timer)
		if !ok {
			return m, nil
		}
		m.afterTransition(msg.timer.Kind == session.TimerResponse)
		return m, m.follow(next, more)
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.abandon()
		return m, tea.Quit
	}
	key := msg.String()
	if m.confirmQuit {
		switch key {
		case "y", "Y":
			m.abandon()
			return m, tea.Quit
		case "n", "N", "esc":
			m.confirmQuit = false
			if timer, ok := m.sess.Resume(); ok {
				return m, m.schedule(timer)
			}
		}
		return m, nil
	}
	phase := m.sess.Phase()
	if key == "q" || key == "esc" {
		if phase == session.PhaseIntro || phase == session.PhaseResult {
			return m, tea.Quit
		}
		m.confirmQuit = true
		m.sess.Pause()
		return m, nil
	}

	switch phase {
	case session.PhaseIntro:
		if key == "enter" || key == " " {
			timer, err := m.sess.Start()
			if err != nil {
				m.logger.Warn("failed to start session", "err", err)
				return m, nil
			}
			return m, m.schedule(timer)
		}
	case session.PhasePresenting:
		resp, ok := responseForKey(m.sess.Mode(), key)
		if !ok {
			return m, nil
		}
		next, more, accepted := m.sess.Respond(resp)
		if !accepted {
			return m, nil
		}
		m.afterTransition(true)
		return m, m.follow(next, more)
	case session.PhaseRecall:
		idx, ok := digitIndex(key)
		options := m.sess.RecallOptions()
		if !ok || idx >= len(options) {
			return m, nil
		}
		if err := m.sess.AnswerRecall(options[idx]); err != nil {
			m.logger.Warn("failed to record recall answer", "err", err)
			return m, nil
		}
		m.afterTransition(false)
	case session.PhaseResult:
		if key == "r" || key == "enter" {
			m.retry()
		}
	}
	return m, nil
}

// responseForKey maps a key to the response the mode uses.
func responseForKey(mode model.Mode, key string) (model.Response, bool) {
	switch mode {
	case model.ModeGoNoGo, model.ModeDualTask:
		if key == " " || key == "enter" {
			return model.ResponseTap, true
		}
	case model.ModeNBack:
		if key == " " || key == "enter" || key == "m" {
			return model.ResponseMatch, true
		}
	case model.ModeTaskSwitch:
		switch key {
		case "left", "h", "a":
			return model.ResponseLeft, true
		case "right", "l", "d":
			return model.ResponseRight, true
		}
	}
	return model.ResponseNone, false
}

func digitIndex(key string) (int, bool) {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return 0, false
	}
	return int(key[0] - '1'), true
}

func (m *Model) schedule(t session.Timer) tea.Cmd {
	m.pending = t
	id := m.sess.ID()
	return tea.Tick(t.Delay, func(time.Time) tea.Msg {
		return timerFiredMsg{sessionID: id, timer: t}
	})
}

func (m *Model) follow(next session.Timer, more bool) tea.Cmd {
	if !more {
		return nil
	}
	return m.schedule(next)
}

// afterTransition updates trial feedback and finalizes the session once it
// reaches the result.
func (m *Model) afterTransition(recorded bool) {
	if recorded {
		outcomes := m.sess.Outcomes()
		if n := len(outcomes); n > 0 && outcomes[n-1].Solicited {
			correct := outcomes[n-1].Correct
			m.lastCorrect = &correct
		} else {
			m.lastCorrect = nil
		}
	} else if m.sess.Phase() == session.PhasePresenting {
		m.lastCorrect = nil
	}
	if m.sess.Phase() != session.PhaseResult || m.record != nil {
		return
	}
	rec, err := session.Finish(context.Background(), m.sess, session.FinishOptions{
		Controller: m.opts.Controller,
		Recorder:   m.opts.Recorder,
		Logger:     m.logger,
	})
	if err != nil {
		m.logger.Warn("failed to finalize session", "err", err)
		return
	}
	m.record = &rec
	m.level = rec.NextLevel
	m.hasLast = true
	m.lastAcc = metrics.Accuracy(rec.CorrectResponses, rec.TotalTrials)
	m.allCorrect += rec.CorrectResponses
	m.allTotal += rec.TotalTrials
}

func (m *Model) retry() {
	next, err := m.sess.Retry(m.newPlan())
	if err != nil {
		m.logger.Warn("failed to retry session", "err", err)
		return
	}
	m.sess = next
	m.record = nil
	m.lastCorrect = nil
}

func (m *Model) abandon() {
	switch m.sess.Phase() {
	case session.PhaseIntro, session.PhaseResult, session.PhaseAbandoned:
		return
	}
	m.logger.Info("session abandoned", "session", m.sess.ID(), "recorded", len(m.sess.Outcomes()))
	m.sess.Abandon()
}

func (m *Model) newPlan() generator.Plan {
	return m.opts.Generator.Generate(m.opts.Mode, m.level, 0)
}

func (m *Model) sessionOptions() session.Options {
	return session.Options{Clock: m.opts.Clock, Logger: m.logger}
}

func (m *Model) loadFooterStats() {
	if m.opts.History == nil {
		return
	}
	sessions, err := m.opts.History.ListSessions(context.Background(), model.StatsConfig{Mode: m.opts.Mode})
	if err != nil {
		m.logger.Warn("failed to load session stats", "err", err)
		return
	}
	if len(sessions) == 0 {
		return
	}
	last := sessions[len(sessions)-1]
	m.hasLast = true
	m.lastAcc = metrics.Accuracy(last.Correct, last.Total)
	for _, s := range sessions {
		m.allCorrect += s.Correct
		m.allTotal += s.Total
	}
}
