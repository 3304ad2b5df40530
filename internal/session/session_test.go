package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/tuimind/internal/adaptive"
	"github.com/verte-zerg/tuimind/internal/config"
	"github.com/verte-zerg/tuimind/internal/generator"
	"github.com/verte-zerg/tuimind/internal/model"
	"github.com/verte-zerg/tuimind/internal/stimulus"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)}
}

// startTrials runs the countdown and returns the first response timer.
func startTrials(t *testing.T, s *Session, clock *fakeClock) Timer {
	t.Helper()
	timer, err := s.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.TargetsRevealed() {
		t.Fatalf("targets must stay hidden during countdown")
	}
	for i := 0; i < CountdownFrom; i++ {
		if timer.Kind != TimerCountdown || timer.Delay != CountdownStep {
			t.Fatalf("expected countdown timer, got %+v", timer)
		}
		clock.Advance(timer.Delay)
		next, more, ok := s.Fire(timer)
		if !ok || !more {
			t.Fatalf("countdown tick %d not accepted", i)
		}
		timer = next
	}
	if s.Phase() != PhasePresenting || s.Index() != 0 {
		t.Fatalf("expected first trial after countdown, phase=%s", s.Phase())
	}
	if timer.Kind != TimerResponse {
		t.Fatalf("expected response timer, got %+v", timer)
	}
	return timer
}

// nextTrial fires interval timers until a response timer is pending.
func nextTrial(t *testing.T, s *Session, clock *fakeClock, timer Timer) Timer {
	t.Helper()
	for timer.Kind == TimerInterval {
		clock.Advance(timer.Delay)
		next, more, ok := s.Fire(timer)
		if !ok || !more {
			t.Fatalf("interval timer not accepted")
		}
		timer = next
	}
	return timer
}

func stim(id string) model.Stimulus {
	return model.Stimulus{ID: id, Glyph: id}
}

func nBackPlan(ids []string, n int) generator.Plan {
	plan := generator.Plan{
		Mode:   model.ModeNBack,
		Level:  1,
		Config: model.LevelConfig{TrialCount: len(ids), StimulusDurationMs: 2000, ISIMs: 500, NLevel: n},
		N:      n,
		Reward: stim(ids[0]),
	}
	for i, id := range ids {
		plan.Trials = append(plan.Trials, model.NBackTrial{
			Item:      stim(id),
			IsTarget:  i >= n && ids[i-n] == id,
			Solicited: i >= n,
		})
	}
	return plan
}

func TestGoNoGoTapEverything(t *testing.T) {
	tables := config.Levels()
	plan := generator.New(stimulus.Default(), tables, 11, nil).Generate(model.ModeGoNoGo, 1, 0)
	if len(plan.Trials) != 6 {
		t.Fatalf("expected 6 trials at level 1, got %d", len(plan.Trials))
	}
	clock := newClock()
	s := New(plan, Options{Clock: clock.Now})
	timer := startTrials(t, s, clock)
	for s.Phase() != PhaseResult {
		timer = nextTrial(t, s, clock, timer)
		clock.Advance(350 * time.Millisecond)
		next, more, ok := s.Respond(model.ResponseTap)
		if !ok {
			t.Fatalf("tap on trial %d ignored", s.Index())
		}
		if more {
			timer = next
		}
	}
	m := s.Metrics().Snapshot().GoNoGo
	if m.CorrectGo != 5 || m.CommissionError != 1 || m.OmissionError != 0 || m.CorrectNoGo != 0 {
		t.Fatalf("unexpected counters: %+v", *m)
	}
	if got, want := s.Metrics().Accuracy(), 5.0/6.0; got != want {
		t.Fatalf("accuracy %.3f, want %.3f", got, want)
	}
	for _, o := range s.Outcomes() {
		if o.ReactionTimeMs == nil || *o.ReactionTimeMs != 350 {
			t.Fatalf("expected 350ms reaction time, got %+v", o)
		}
	}
}

func TestNBackAlwaysMatch(t *testing.T) {
	clock := newClock()
	s := New(nBackPlan([]string{"A", "B", "B", "C", "C"}, 1), Options{Clock: clock.Now})
	timer := startTrials(t, s, clock)

	// Index 0 asks for nothing; the tap is ignored and the window times out.
	if _, _, ok := s.Respond(model.ResponseMatch); ok {
		t.Fatalf("response on unsolicited trial should be ignored")
	}
	clock.Advance(timer.Delay)
	timer, _, ok := s.Fire(timer)
	if !ok {
		t.Fatalf("response timeout not accepted")
	}
	for s.Phase() != PhaseResult {
		timer = nextTrial(t, s, clock, timer)
		clock.Advance(500 * time.Millisecond)
		next, more, ok := s.Respond(model.ResponseMatch)
		if !ok {
			t.Fatalf("match on trial %d ignored", s.Index())
		}
		if more {
			timer = next
		}
	}
	m := s.Metrics().Snapshot().NBack
	if m.Hits != 2 || m.FalseAlarms != 2 || m.Misses != 0 || m.CorrectRejections != 0 {
		t.Fatalf("unexpected counters: %+v", *m)
	}
	outcomes := s.Outcomes()
	if len(outcomes) != 5 {
		t.Fatalf("expected one outcome per trial, got %d", len(outcomes))
	}
	if outcomes[0].Solicited || outcomes[0].RespondedAt != nil {
		t.Fatalf("index 0 should be an unsolicited timeout: %+v", outcomes[0])
	}
	for _, idx := range []int{2, 4} {
		if !outcomes[idx].Correct || outcomes[idx].Expected != model.ResponseMatch {
			t.Fatalf("expected hit at %d: %+v", idx, outcomes[idx])
		}
	}
	for _, idx := range []int{1, 3} {
		if outcomes[idx].Correct {
			t.Fatalf("expected false alarm at %d", idx)
		}
	}
}

func TestLateTimerAfterResponseIgnored(t *testing.T) {
	clock := newClock()
	plan := nBackPlan([]string{"A", "A", "B"}, 1)
	plan.Config.ISIMs = 0
	s := New(plan, Options{Clock: clock.Now})
	first := startTrials(t, s, clock)
	clock.Advance(first.Delay)
	second, _, _ := s.Fire(first)

	clock.Advance(200 * time.Millisecond)
	third, more, ok := s.Respond(model.ResponseMatch)
	if !ok || !more {
		t.Fatalf("first response rejected")
	}
	if s.Index() != 2 {
		t.Fatalf("expected immediate advance without ISI, index=%d", s.Index())
	}
	// The cancelled timer of trial 1 fires late and must not record anything.
	if _, _, ok := s.Fire(second); ok {
		t.Fatalf("stale timer should be ignored")
	}
	if len(s.Outcomes()) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(s.Outcomes()))
	}
	clock.Advance(third.Delay)
	if _, _, ok := s.Fire(third); !ok {
		t.Fatalf("live timer should fire")
	}
	if _, _, ok := s.Respond(model.ResponseMatch); ok {
		t.Fatalf("response after timeout must be ignored")
	}
	if got := len(s.Outcomes()); got != 3 {
		t.Fatalf("expected 3 outcomes, got %d", got)
	}
	if s.Phase() != PhaseResult {
		t.Fatalf("expected result, got %s", s.Phase())
	}
}

func TestTimeoutOutcome(t *testing.T) {
	clock := newClock()
	plan := generator.Plan{
		Mode:   model.ModeTaskSwitch,
		Level:  1,
		Config: model.LevelConfig{TrialCount: 1, StimulusDurationMs: 3000},
		Trials: []model.Trial{model.TaskSwitchTrial{Item: stim("A"), CorrectSide: model.SideLeft}},
	}
	s := New(plan, Options{Clock: clock.Now})
	timer := startTrials(t, s, clock)
	if _, _, ok := s.Respond(model.ResponseTap); ok {
		t.Fatalf("tap is not a task-switch response")
	}
	clock.Advance(timer.Delay)
	if _, more, ok := s.Fire(timer); !ok || more {
		t.Fatalf("expected final timeout to end the session")
	}
	o := s.Outcomes()[0]
	if o.Response != model.ResponseNone || o.RespondedAt != nil || o.ReactionTimeMs != nil || o.Correct {
		t.Fatalf("unexpected timeout outcome: %+v", o)
	}
	if o.Expected != model.ResponseLeft {
		t.Fatalf("expected left, got %s", o.Expected)
	}
}

func TestGoNoGoWithholdIsCorrect(t *testing.T) {
	clock := newClock()
	plan := generator.Plan{
		Mode:   model.ModeGoNoGo,
		Level:  1,
		Config: model.LevelConfig{TrialCount: 1, StimulusDurationMs: 1000},
		Trials: []model.Trial{model.GoNoGoTrial{Item: stim("B"), IsGo: false}},
	}
	s := New(plan, Options{Clock: clock.Now})
	timer := startTrials(t, s, clock)
	clock.Advance(timer.Delay)
	s.Fire(timer)
	if o := s.Outcomes()[0]; !o.Correct {
		t.Fatalf("withholding on no-go should be correct: %+v", o)
	}
	if s.Metrics().Snapshot().GoNoGo.CorrectNoGo != 1 {
		t.Fatalf("expected a correct rejection")
	}
}

func TestDualTaskRecall(t *testing.T) {
	clock := newClock()
	cfg := model.LevelConfig{TrialCount: 12, StimulusDurationMs: 1000, ISIMs: 300, TargetRatio: 0.25, CountFruitRatio: 0.25}
	g := generator.New(stimulus.Default(), config.Tables{model.ModeDualTask: {1: cfg}}, 9, nil)
	plan := g.Generate(model.ModeDualTask, 1, 0)
	s := New(plan, Options{Clock: clock.Now})
	timer := startTrials(t, s, clock)
	if !s.TargetsRevealed() {
		t.Fatalf("targets should be revealed once trials start")
	}
	if s.RecallOptions() != nil {
		t.Fatalf("recall options must not be offered mid-session")
	}
	for s.Phase() != PhaseRecall {
		timer = nextTrial(t, s, clock, timer)
		trial, ok := s.Current()
		if !ok {
			t.Fatalf("expected a trial on screen")
		}
		if trial.(model.DualTaskTrial).IsPrimaryTarget {
			clock.Advance(100 * time.Millisecond)
			next, more, _ := s.Respond(model.ResponseTap)
			if more {
				timer = next
			}
			continue
		}
		clock.Advance(timer.Delay)
		next, more, _ := s.Fire(timer)
		if more {
			timer = next
		}
	}
	opts := s.RecallOptions()
	if len(opts) != 4 {
		t.Fatalf("expected 4 recall options, got %v", opts)
	}
	if err := s.AnswerRecall(plan.CountTotal); err != nil {
		t.Fatalf("AnswerRecall failed: %v", err)
	}
	if s.Phase() != PhaseResult || s.RecallCorrect() == nil || !*s.RecallCorrect() {
		t.Fatalf("expected correct recall and result phase")
	}
	if len(s.Outcomes()) != len(plan.Trials) {
		t.Fatalf("recall must not add a trial outcome")
	}
	if s.Metrics().Accuracy() != 1 {
		t.Fatalf("expected perfect accuracy, got %.2f", s.Metrics().Accuracy())
	}
	if err := s.AnswerRecall(0); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning on second answer, got %v", err)
	}
}

func TestAbandonDiscards(t *testing.T) {
	clock := newClock()
	s := New(nBackPlan([]string{"A", "B", "A"}, 1), Options{Clock: clock.Now})
	timer := startTrials(t, s, clock)
	s.Abandon()
	if _, _, ok := s.Fire(timer); ok {
		t.Fatalf("timers must be dead after abandon")
	}
	if _, _, ok := s.Respond(model.ResponseMatch); ok {
		t.Fatalf("responses must be ignored after abandon")
	}
	rec := &fakeRecorder{}
	if _, err := Finish(context.Background(), s, FinishOptions{Recorder: rec}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if rec.saved != 0 {
		t.Fatalf("abandoned session must not be persisted")
	}
	retry, err := s.Retry(nBackPlan([]string{"A", "B", "A"}, 1))
	if err != nil || retry.Phase() != PhaseIntro || retry.ID() == s.ID() {
		t.Fatalf("expected fresh session from retry, err=%v", err)
	}
}

func TestPauseHoldsRemainingTime(t *testing.T) {
	clock := newClock()
	s := New(nBackPlan([]string{"A", "B", "B"}, 1), Options{Clock: clock.Now})
	first := startTrials(t, s, clock)

	clock.Advance(300 * time.Millisecond)
	if !s.Pause() || s.Pause() {
		t.Fatalf("expected exactly one successful pause")
	}
	clock.Advance(5 * time.Second)
	if _, _, ok := s.Fire(first); ok {
		t.Fatalf("timer scheduled before the pause must be stale")
	}
	resumed, ok := s.Resume()
	if !ok || resumed.Kind != TimerResponse || resumed.Delay != 1700*time.Millisecond {
		t.Fatalf("unexpected resumed timer: %+v", resumed)
	}
	clock.Advance(resumed.Delay)
	interval, more, ok := s.Fire(resumed)
	if !ok || !more {
		t.Fatalf("resumed timer not accepted")
	}

	nextTrial(t, s, clock, interval)
	clock.Advance(200 * time.Millisecond)
	s.Pause()
	if _, _, ok := s.Respond(model.ResponseMatch); ok {
		t.Fatalf("responses must be ignored while paused")
	}
	clock.Advance(10 * time.Second)
	if _, ok := s.Resume(); !ok {
		t.Fatalf("resume failed")
	}
	clock.Advance(100 * time.Millisecond)
	if _, _, ok := s.Respond(model.ResponseMatch); !ok {
		t.Fatalf("response after resume not accepted")
	}
	got := s.Outcomes()[1]
	if got.ReactionTimeMs == nil || *got.ReactionTimeMs != 300 {
		t.Fatalf("paused span must not count toward reaction time: %+v", got)
	}
	if _, ok := s.Resume(); ok {
		t.Fatalf("resume without pause must fail")
	}
}

func TestStartTwiceFails(t *testing.T) {
	s := New(nBackPlan([]string{"A", "B"}, 1), Options{})
	if _, err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := s.Start(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if _, err := s.Retry(nBackPlan([]string{"A"}, 1)); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("retry mid-session should fail")
	}
}

type fakeRecorder struct {
	saved   int
	history []model.TrialOutcome
	levels  map[model.Mode]int
	fruits  map[string]int
	last    model.SessionRecord
	failing bool
}

func (f *fakeRecorder) SaveSession(_ context.Context, rec model.SessionRecord) (int64, error) {
	if f.failing {
		return 0, errors.New("disk full")
	}
	f.saved++
	f.last = rec
	return int64(f.saved), nil
}

func (f *fakeRecorder) RecentOutcomes(_ context.Context, _ model.Mode, _ int, limit int) ([]model.TrialOutcome, error) {
	if len(f.history) > limit {
		return f.history[len(f.history)-limit:], nil
	}
	return f.history, nil
}

func (f *fakeRecorder) SetLevel(_ context.Context, mode model.Mode, level int) error {
	if f.levels == nil {
		f.levels = map[model.Mode]int{}
	}
	f.levels[mode] = level
	return nil
}

func (f *fakeRecorder) AddFruits(_ context.Context, stimulusID string, count int) error {
	if f.fruits == nil {
		f.fruits = map[string]int{}
	}
	f.fruits[stimulusID] += count
	return nil
}

func playAllMatches(t *testing.T, ids []string, level int) *Session {
	t.Helper()
	clock := newClock()
	plan := nBackPlan(ids, 1)
	plan.Level = level
	s := New(plan, Options{Clock: clock.Now})
	timer := startTrials(t, s, clock)
	for s.Phase() != PhaseResult {
		timer = nextTrial(t, s, clock, timer)
		trial, _ := s.Current()
		nb := trial.(model.NBackTrial)
		if nb.IsTarget {
			clock.Advance(400 * time.Millisecond)
			next, more, _ := s.Respond(model.ResponseMatch)
			if more {
				timer = next
			}
			continue
		}
		clock.Advance(timer.Delay)
		next, more, _ := s.Fire(timer)
		if more {
			timer = next
		}
	}
	return s
}

func TestFinishPersistsOnce(t *testing.T) {
	ids := []string{"A", "A", "B", "B", "C", "C", "D", "D", "E", "E", "F", "F"}
	s := playAllMatches(t, ids, 2)
	rec := &fakeRecorder{}
	ctrl := adaptive.New(model.AdaptiveConfig{Window: 10, ThresholdUp: 0.85, ThresholdDown: 0.6, MinLevel: 1, MaxLevel: 5})
	got, err := Finish(context.Background(), s, FinishOptions{Controller: ctrl, Recorder: rec})
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if got.TotalTrials != 11 || got.CorrectResponses != 11 || got.IncorrectResponses != 0 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if got.NextLevel != 3 || rec.levels[model.ModeNBack] != 3 {
		t.Fatalf("expected level raise to 3, got %d", got.NextLevel)
	}
	if got.AvgReactionTimeMs != 400 {
		t.Fatalf("expected 400ms mean RT, got %.1f", got.AvgReactionTimeMs)
	}
	if got.FruitsEarned == 0 || rec.fruits["A"] != got.FruitsEarned {
		t.Fatalf("expected fruits credited to the reward stimulus: %+v", rec.fruits)
	}
	if got.Points <= 0 || got.Metrics.NBack == nil || len(got.Outcomes) != len(ids) {
		t.Fatalf("incomplete record: %+v", got)
	}
	if rec.saved != 1 {
		t.Fatalf("expected one save, got %d", rec.saved)
	}
	if _, err := Finish(context.Background(), s, FinishOptions{Controller: ctrl, Recorder: rec}); !errors.Is(err, ErrFinished) {
		t.Fatalf("expected ErrFinished, got %v", err)
	}
	if rec.saved != 1 {
		t.Fatalf("second finish must not persist")
	}
}

func TestFinishUsesHistoryForShortSessions(t *testing.T) {
	ids := []string{"A", "A", "B", "B"}
	ctrl := adaptive.New(model.AdaptiveConfig{Window: 10, ThresholdUp: 0.85, ThresholdDown: 0.6, MinLevel: 1, MaxLevel: 5})

	s := playAllMatches(t, ids, 2)
	got, err := Finish(context.Background(), s, FinishOptions{Controller: ctrl, Recorder: &fakeRecorder{}})
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if got.NextLevel != 2 {
		t.Fatalf("expected hold with only 3 scored trials, got %d", got.NextLevel)
	}

	history := make([]model.TrialOutcome, 10)
	for i := range history {
		history[i] = model.TrialOutcome{Solicited: true, Correct: true}
	}
	s = playAllMatches(t, ids, 2)
	got, err = Finish(context.Background(), s, FinishOptions{Controller: ctrl, Recorder: &fakeRecorder{history: history}})
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if got.NextLevel != 3 {
		t.Fatalf("expected raise from stored history, got %d", got.NextLevel)
	}
}

func TestFinishSurvivesRecorderFailure(t *testing.T) {
	s := playAllMatches(t, []string{"A", "A"}, 1)
	got, err := Finish(context.Background(), s, FinishOptions{Recorder: &fakeRecorder{failing: true}})
	if err != nil {
		t.Fatalf("persistence failure must not surface: %v", err)
	}
	if got.CorrectResponses != 1 {
		t.Fatalf("unexpected record: %+v", got)
	}
}
