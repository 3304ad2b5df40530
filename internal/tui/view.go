package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuimind/internal/model"
	"github.com/verte-zerg/tuimind/internal/session"
	"github.com/verte-zerg/tuimind/internal/stimulus"
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C0C0C0"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	accentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAF5F")).Bold(true)
	correctStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAF5F")).Bold(true)
	wrongStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	countStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	stimulusStyle = lipgloss.NewStyle().
			Padding(1, 4).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	promptStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#FF4D4F"))
)

// View implements tea.Model.
func (m *Model) View() string {
	content := m.renderContent()
	if m.confirmQuit {
		content += "\n\n" + promptStyle.Render("Quit and discard this session? (y/n)")
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) contentWidth() int {
	if m.width <= 0 {
		return 60
	}
	return max(20, int(float64(m.width)*0.70))
}

func (m *Model) renderContent() string {
	switch m.sess.Phase() {
	case session.PhaseIntro:
		return m.renderIntro()
	case session.PhaseCountdown:
		return lines(
			titleStyle.Render(m.sess.Mode().Title()),
			"",
			countStyle.Render(fmt.Sprintf("%d", m.sess.Countdown())),
			"",
			mutedStyle.Render("Get ready"),
		)
	case session.PhasePresenting, session.PhaseInterval:
		return m.renderTrial()
	case session.PhaseRecall:
		return m.renderRecall()
	case session.PhaseResult:
		return m.renderResult()
	default:
		return mutedStyle.Render("Session discarded.")
	}
}

func (m *Model) renderIntro() string {
	plan := m.sess.Plan()
	instructions := wrapWords(instructionsFor(plan.Mode, plan.N), m.contentWidth())
	return lines(
		titleStyle.Render(m.sess.Mode().Title()),
		mutedStyle.Render(fmt.Sprintf("Level %d · %d trials", plan.Level, len(plan.Trials))),
		"",
		textStyle.Render(strings.Join(instructions, "\n")),
		"",
		accentStyle.Render("Press enter to start"),
		mutedStyle.Render("q to quit"),
	)
}

func instructionsFor(mode model.Mode, n int) string {
	switch mode {
	case model.ModeGoNoGo:
		return "A target fruit is shown once the round begins. Press space when the target appears and hold back for every other fruit."
	case model.ModeNBack:
		steps := "the previous one"
		if n > 1 {
			steps = fmt.Sprintf("the one %d steps back", n)
		}
		return fmt.Sprintf("Fruits appear one at a time. Press space when a fruit matches %s.", steps)
	case model.ModeTaskSwitch:
		return "Sort each fruit left or right with the arrow keys. The rule on screen says whether to sort by color (warm or cool) or by size (big or small), and it can change between trials."
	case model.ModeDualTask:
		return "Press space whenever the target fruit appears, and silently count the second fruit. You will be asked for the count at the end."
	default:
		return ""
	}
}

func (m *Model) renderTrial() string {
	plan := m.sess.Plan()
	header := m.renderTargets()
	glyph := " "
	if trial, ok := m.sess.Current(); ok {
		glyph = trial.Stimulus().Glyph
		if ts, ok := trial.(model.TaskSwitchTrial); ok {
			header = m.renderRule(ts.Rule)
		}
	}
	feedback := " "
	if m.lastCorrect != nil {
		if *m.lastCorrect {
			feedback = correctStyle.Render("✓")
		} else {
			feedback = wrongStyle.Render("✗")
		}
	}
	shown := min(m.sess.Index()+1, len(plan.Trials))
	pct := 0.0
	if len(plan.Trials) > 0 {
		pct = float64(shown) / float64(len(plan.Trials))
	}
	return lines(
		header,
		"",
		stimulusStyle.Render(glyph),
		feedback,
		"",
		m.progress.ViewAs(pct),
		mutedStyle.Render(fmt.Sprintf("Trial %d/%d", shown, len(plan.Trials))),
		mutedStyle.Render(m.keyHint()),
	)
}

func (m *Model) renderTargets() string {
	if !m.sess.TargetsRevealed() {
		return ""
	}
	plan := m.sess.Plan()
	switch plan.Mode {
	case model.ModeGoNoGo:
		if plan.Target != nil {
			return textStyle.Render("Target: ") + plan.Target.Glyph
		}
	case model.ModeNBack:
		return textStyle.Render(fmt.Sprintf("%d-back", plan.N))
	case model.ModeDualTask:
		if plan.Target != nil && plan.Secondary != nil {
			return textStyle.Render("Tap: ") + plan.Target.Glyph + textStyle.Render("   Count: ") + plan.Secondary.Glyph
		}
	}
	return ""
}

func (m *Model) renderRule(rule model.Rule) string {
	left := stimulus.SideLabel(rule, model.SideLeft)
	right := stimulus.SideLabel(rule, model.SideRight)
	return lines(
		accentStyle.Render(strings.ToUpper(rule.String())),
		textStyle.Render(fmt.Sprintf("← %s     %s →", left, right)),
	)
}

func (m *Model) keyHint() string {
	switch m.sess.Mode() {
	case model.ModeTaskSwitch:
		return "left/right to sort · q to quit"
	case model.ModeNBack:
		return "space on match · q to quit"
	default:
		return "space to tap · q to quit"
	}
}

func (m *Model) renderRecall() string {
	plan := m.sess.Plan()
	glyph := "?"
	if plan.Secondary != nil {
		glyph = plan.Secondary.Glyph
	}
	options := m.sess.RecallOptions()
	choices := make([]string, len(options))
	for i, v := range options {
		choices[i] = fmt.Sprintf("%s %d", accentStyle.Render(fmt.Sprintf("[%d]", i+1)), v)
	}
	return lines(
		titleStyle.Render(fmt.Sprintf("How many %s did you see?", glyph)),
		"",
		strings.Join(choices, "   "),
		"",
		mutedStyle.Render(fmt.Sprintf("Press 1-%d", len(options))),
	)
}

func (m *Model) renderResult() string {
	if m.record == nil {
		return mutedStyle.Render("Saving results...")
	}
	rec := *m.record
	rows := []string{
		titleStyle.Render(fmt.Sprintf("%s complete", rec.GameType.Title())),
		"",
		fmt.Sprintf("Correct       %d / %d", rec.CorrectResponses, rec.TotalTrials),
	}
	if rec.AvgReactionTimeMs > 0 {
		rows = append(rows, fmt.Sprintf("Avg reaction  %.0f ms", rec.AvgReactionTimeMs))
	}
	if ts := rec.Metrics.TaskSwitch; ts != nil && ts.SwitchTrials > 0 && ts.NonSwitchTrials > 0 {
		rows = append(rows, fmt.Sprintf("Switch cost   %+.0f ms", ts.SwitchCostMs))
	}
	if answer := m.sess.RecallAnswer(); answer != nil {
		mark := wrongStyle.Render("✗")
		if c := m.sess.RecallCorrect(); c != nil && *c {
			mark = correctStyle.Render("✓")
		}
		rows = append(rows, fmt.Sprintf("Count         %d (was %d) %s", *answer, m.sess.Plan().CountTotal, mark))
	}
	rows = append(rows, fmt.Sprintf("Points        %d", rec.Points))
	reward := m.sess.Plan().Reward
	rows = append(rows, fmt.Sprintf("Fruits        %s", fruitRow(reward.Glyph, rec.FruitsEarned)))
	switch {
	case rec.NextLevel > rec.DifficultyLevel:
		rows = append(rows, "", accentStyle.Render(fmt.Sprintf("Level up! Next round is level %d.", rec.NextLevel)))
	case rec.NextLevel < rec.DifficultyLevel:
		rows = append(rows, "", textStyle.Render(fmt.Sprintf("Next round eases to level %d.", rec.NextLevel)))
	default:
		rows = append(rows, "", textStyle.Render(fmt.Sprintf("Staying at level %d.", rec.NextLevel)))
	}
	rows = append(rows, "", mutedStyle.Render("r to play again · q to quit"))
	return lines(rows...)
}

func fruitRow(glyph string, count int) string {
	if count <= 0 {
		return "none this time"
	}
	if count > 10 {
		return fmt.Sprintf("%s x%d", glyph, count)
	}
	return strings.Repeat(glyph, count)
}

func (m *Model) renderFooter() string {
	phase := m.sess.Phase()
	var segments []string
	if phase == session.PhasePresenting || phase == session.PhaseInterval {
		done := len(m.sess.Outcomes())
		progress := 0
		if n := m.sess.TrialCount(); n > 0 {
			progress = int(float64(done) / float64(n) * 100)
		}
		segments = append(segments, fmt.Sprintf("Progress %d%%", progress))
		segments = append(segments, fmt.Sprintf("Live %.1f%%", m.sess.Metrics().Accuracy()*100))
	}
	segments = append(segments, fmt.Sprintf("Level %d", m.footerLevel()))
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %.1f%%", m.lastAcc*100))
	}
	if m.allTotal > 0 {
		segments = append(segments, fmt.Sprintf("All-time %.1f%%", float64(m.allCorrect)/float64(m.allTotal)*100))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func (m *Model) footerLevel() int {
	if m.sess.Phase() == session.PhaseResult {
		return m.level
	}
	return m.sess.Plan().Level
}

func lines(parts ...string) string {
	return lipgloss.JoinVertical(lipgloss.Center, parts...)
}
