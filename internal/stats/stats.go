// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/tuimind/internal/metrics"
	"github.com/verte-zerg/tuimind/internal/model"
)

const sparkChars = " .:-=+*#%@"

// SessionAccuracy returns the fraction of correct scored trials.
func SessionAccuracy(s model.SessionAggregate) float64 {
	return metrics.Accuracy(s.Correct, s.Total)
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 || len(values) == 0 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		den := float64(i + 1)
		if i >= window {
			sum -= values[i-window]
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := minMax(values)
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// ModeSummary aggregates the sessions of one mode.
type ModeSummary struct {
	Mode         model.Mode
	Sessions     int
	Trials       int
	Correct      int
	MeanAccuracy float64
	BestAccuracy float64
	// MeanRTMs averages per-session reaction times, skipping sessions
	// without any timed response.
	MeanRTMs     float64
	MedianRTMs   float64
	Points       int
	Fruits       int
	LastLevel    int
	NextLevel    int
	SwitchCostMs float64
}

// Summarize groups sessions by mode in the canonical mode order. Modes with
// no sessions are omitted.
func Summarize(sessions []model.SessionAggregate) []ModeSummary {
	byMode := map[model.Mode][]model.SessionAggregate{}
	for _, s := range sessions {
		byMode[s.Mode] = append(byMode[s.Mode], s)
	}
	var out []ModeSummary
	for _, mode := range model.Modes() {
		list := byMode[mode]
		if len(list) == 0 {
			continue
		}
		out = append(out, summarizeMode(mode, list))
	}
	return out
}

func summarizeMode(mode model.Mode, sessions []model.SessionAggregate) ModeSummary {
	sum := ModeSummary{Mode: mode, Sessions: len(sessions)}
	accs := make([]float64, 0, len(sessions))
	var rts, costs []float64
	for _, s := range sessions {
		sum.Trials += s.Total
		sum.Correct += s.Correct
		sum.Points += s.Points
		sum.Fruits += s.Fruits
		acc := SessionAccuracy(s)
		accs = append(accs, acc)
		if acc > sum.BestAccuracy {
			sum.BestAccuracy = acc
		}
		if s.AvgReactionTimeMs > 0 {
			rts = append(rts, s.AvgReactionTimeMs)
		}
		if ts := s.Metrics.TaskSwitch; ts != nil && ts.SwitchTrials > 0 && ts.NonSwitchTrials > 0 {
			costs = append(costs, ts.SwitchCostMs)
		}
	}
	last := sessions[len(sessions)-1]
	sum.LastLevel = last.Level
	sum.NextLevel = last.NextLevel
	sum.MeanAccuracy = metrics.Mean(accs)
	sum.MeanRTMs = metrics.Mean(rts)
	sum.MedianRTMs = metrics.Median(rts)
	sum.SwitchCostMs = metrics.Mean(costs)
	return sum
}

// RenderSummary prints one summary block per mode.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Summary"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Sessions: %d\n\n", len(sessions)); err != nil {
		return err
	}
	headers := []string{"Mode", "Sessions", "Avg Acc", "Best Acc", "Avg RT (ms)", "Median RT", "Points", "Fruits", "Level"}
	var rows [][]string
	for _, s := range Summarize(sessions) {
		rows = append(rows, []string{
			s.Mode.Title(),
			fmt.Sprintf("%d", s.Sessions),
			formatPct(s.MeanAccuracy),
			formatPct(s.BestAccuracy),
			formatMs(s.MeanRTMs),
			formatMs(s.MedianRTMs),
			fmt.Sprintf("%d", s.Points),
			fmt.Sprintf("%d", s.Fruits),
			levelLabel(s.LastLevel, s.NextLevel),
		})
	}
	return writeTable(w, headers, rows, map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true})
}

// RenderCurves prints accuracy and reaction time curves for each mode.
func RenderCurves(w io.Writer, sessions []model.SessionAggregate, window int) error {
	return RenderCurvesWithSize(w, sessions, window, 0, 0, false)
}

// RenderCurvesWithSize prints curves sized to a given total width. A zero
// width uses the terminal width.
func RenderCurvesWithSize(w io.Writer, sessions []model.SessionAggregate, window, totalWidth, height int, useColor bool) error {
	if len(sessions) == 0 {
		return nil
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	for _, mode := range model.Modes() {
		acc, rt := ModeSeries(sessions, mode)
		if len(acc) == 0 {
			continue
		}
		acc = MovingAverage(acc, window)
		rt = MovingAverage(rt, window)
		title := fmt.Sprintf("%s (%d sessions)", mode.Title(), len(acc))
		if err := PlotSeriesWithColor(w, title, []Series{
			{Name: "Accuracy %", Values: acc},
			{Name: "RT ms", Values: rt},
		}, width, height, useColor); err != nil {
			return err
		}
	}
	return nil
}

// RenderSparklines prints one compact accuracy line per mode.
func RenderSparklines(w io.Writer, sessions []model.SessionAggregate, window int) error {
	var rows [][]string
	for _, mode := range model.Modes() {
		acc, _ := ModeSeries(sessions, mode)
		if len(acc) == 0 {
			continue
		}
		smoothed := MovingAverage(acc, window)
		rows = append(rows, []string{
			mode.Title(),
			Sparkline(smoothed),
			fmt.Sprintf("%.0f%%", smoothed[len(smoothed)-1]),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Accuracy Trend"); err != nil {
		return err
	}
	return writeTable(w, nil, rows, map[int]bool{2: true})
}

// ModeSeries returns per-session accuracy in percent and mean reaction time
// for mode, oldest first.
func ModeSeries(sessions []model.SessionAggregate, mode model.Mode) (acc, rt []float64) {
	for _, s := range sessions {
		if s.Mode != mode {
			continue
		}
		acc = append(acc, SessionAccuracy(s)*100)
		rt = append(rt, s.AvgReactionTimeMs)
	}
	return acc, rt
}

// RenderModeTable prints the response counters of every mode present.
func RenderModeTable(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		return nil
	}
	var (
		gng  model.GoNoGoMetrics
		nb   model.DetectionMetrics
		ts   model.TaskSwitchMetrics
		dual model.DetectionMetrics
		seen = map[model.Mode]bool{}

		recallAsked, recallRight int
	)
	for _, s := range sessions {
		m := s.Metrics
		if m.GoNoGo != nil {
			seen[model.ModeGoNoGo] = true
			gng.CorrectGo += m.GoNoGo.CorrectGo
			gng.CorrectNoGo += m.GoNoGo.CorrectNoGo
			gng.CommissionError += m.GoNoGo.CommissionError
			gng.OmissionError += m.GoNoGo.OmissionError
		}
		if m.NBack != nil {
			seen[model.ModeNBack] = true
			addDetection(&nb, *m.NBack)
		}
		if m.TaskSwitch != nil {
			seen[model.ModeTaskSwitch] = true
			ts.CorrectSwitch += m.TaskSwitch.CorrectSwitch
			ts.CorrectNonSwitch += m.TaskSwitch.CorrectNonSwitch
			ts.SwitchTrials += m.TaskSwitch.SwitchTrials
			ts.NonSwitchTrials += m.TaskSwitch.NonSwitchTrials
		}
		if m.DualTask != nil {
			seen[model.ModeDualTask] = true
			addDetection(&dual, m.DualTask.DetectionMetrics)
			if m.DualTask.RecallCorrect != nil {
				recallAsked++
				if *m.DualTask.RecallCorrect {
					recallRight++
				}
			}
		}
	}

	if _, err := fmt.Fprintln(w, "Response Counters"); err != nil {
		return err
	}
	headers := []string{"Mode", "Counter", "Value"}
	var rows [][]string
	add := func(mode model.Mode, label string, value string) {
		rows = append(rows, []string{mode.Title(), label, value})
	}
	if seen[model.ModeGoNoGo] {
		add(model.ModeGoNoGo, "Correct go", fmt.Sprintf("%d", gng.CorrectGo))
		add(model.ModeGoNoGo, "Correct no-go", fmt.Sprintf("%d", gng.CorrectNoGo))
		add(model.ModeGoNoGo, "Commission errors", fmt.Sprintf("%d", gng.CommissionError))
		add(model.ModeGoNoGo, "Omission errors", fmt.Sprintf("%d", gng.OmissionError))
	}
	if seen[model.ModeNBack] {
		rows = append(rows, detectionRows(model.ModeNBack, nb)...)
	}
	if seen[model.ModeTaskSwitch] {
		add(model.ModeTaskSwitch, "Switch accuracy", formatPct(metrics.Accuracy(ts.CorrectSwitch, ts.SwitchTrials)))
		add(model.ModeTaskSwitch, "Repeat accuracy", formatPct(metrics.Accuracy(ts.CorrectNonSwitch, ts.NonSwitchTrials)))
		add(model.ModeTaskSwitch, "Switch trials", fmt.Sprintf("%d", ts.SwitchTrials))
		for _, s := range Summarize(sessions) {
			if s.Mode == model.ModeTaskSwitch {
				add(model.ModeTaskSwitch, "Avg switch cost", formatMs(s.SwitchCostMs))
			}
		}
	}
	if seen[model.ModeDualTask] {
		rows = append(rows, detectionRows(model.ModeDualTask, dual)...)
		add(model.ModeDualTask, "Recall correct", fmt.Sprintf("%d/%d", recallRight, recallAsked))
	}
	return writeTable(w, headers, rows, map[int]bool{2: true})
}

// RenderInventory prints collected fruits. glyph maps a stimulus ID to its
// display glyph and may be nil.
func RenderInventory(w io.Writer, items []model.InventoryItem, glyph func(id string) string) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No fruits collected yet.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Fruit Basket"); err != nil {
		return err
	}
	headers := []string{"", "Fruit", "Count"}
	rows := make([][]string, 0, len(items))
	total := 0
	for _, item := range items {
		g := ""
		if glyph != nil {
			g = glyph(item.StimulusID)
		}
		rows = append(rows, []string{g, item.StimulusID, fmt.Sprintf("%d", item.Count)})
		total += item.Count
	}
	rows = append(rows, []string{"", "total", fmt.Sprintf("%d", total)})
	return writeTable(w, headers, rows, map[int]bool{2: true})
}

func addDetection(dst *model.DetectionMetrics, src model.DetectionMetrics) {
	dst.Hits += src.Hits
	dst.Misses += src.Misses
	dst.FalseAlarms += src.FalseAlarms
	dst.CorrectRejections += src.CorrectRejections
}

func detectionRows(mode model.Mode, d model.DetectionMetrics) [][]string {
	return [][]string{
		{mode.Title(), "Hits", fmt.Sprintf("%d", d.Hits)},
		{mode.Title(), "Misses", fmt.Sprintf("%d", d.Misses)},
		{mode.Title(), "False alarms", fmt.Sprintf("%d", d.FalseAlarms)},
		{mode.Title(), "Correct rejections", fmt.Sprintf("%d", d.CorrectRejections)},
	}
}

func writeTable(w io.Writer, headers []string, rows [][]string, rightAlign map[int]bool) error {
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func levelLabel(last, next int) string {
	if next == last || next == 0 {
		return fmt.Sprintf("%d", last)
	}
	return fmt.Sprintf("%d -> %d", last, next)
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func formatMs(v float64) string {
	if v <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f", v)
}

func minMax(values []float64) (float64, float64) {
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return minVal, maxVal
}
