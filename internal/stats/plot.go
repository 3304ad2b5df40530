package stats

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Series represents a named data series for plotting.
type Series struct {
	Name   string
	Values []float64
}

const (
	defaultPlotHeight   = 6
	minPlotWidth        = 10
	axisLabelWidth      = 7
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var blocks = []rune("▁▂▃▄▅▆▇█")

var colorPalette = []string{
	"\x1b[36m", // cyan
	"\x1b[35m", // magenta
	"\x1b[33m", // yellow
	"\x1b[32m", // green
}

// PlotSeries renders each series as a strip of block columns, scaled per
// series between its own minimum and maximum.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	return PlotSeriesWithColor(w, title, series, width, height, false)
}

// PlotSeriesWithColor renders a plot with optional forced color output.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	series = filterSeries(series)
	if len(series) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	width = max(width, minPlotWidth)
	useColor := shouldUseColor(w, forceColor)

	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	for i, s := range series {
		values := resampleSeries(s.Values, width)
		lo, hi := minMax(values)
		color := ""
		if useColor {
			color = colorPalette[i%len(colorPalette)]
		}
		if _, err := fmt.Fprintf(w, "%s (min %.1f, max %.1f)\n", s.Name, lo, hi); err != nil {
			return err
		}
		for _, line := range blockRows(values, lo, hi, height) {
			label := ""
			switch {
			case line.top:
				label = fmt.Sprintf("%.0f", hi)
			case line.bottom:
				label = fmt.Sprintf("%.0f", lo)
			}
			body := line.text
			if color != "" {
				body = color + body + colorReset
			}
			if _, err := fmt.Fprintf(w, "%*s%s%s\n", axisLabelWidth, label, axisSeparator, body); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	axisWidth := axisLabelWidth + utf8.RuneCountInString(axisSeparator)
	return max(totalWidth-axisWidth, minPlotWidth)
}

type plotRow struct {
	text   string
	top    bool
	bottom bool
}

func blockRows(values []float64, lo, hi float64, height int) []plotRow {
	eighths := make([]int, len(values))
	span := hi - lo
	for i, v := range values {
		pos := 0.5
		if span > 1e-9 {
			pos = (v - lo) / span
		}
		// Keep a sliver visible for the minimum.
		eighths[i] = max(1, int(pos*float64(height*8)+0.5))
	}
	rows := make([]plotRow, height)
	for r := 0; r < height; r++ {
		base := (height - 1 - r) * 8
		var b strings.Builder
		for _, e := range eighths {
			fill := min(max(e-base, 0), 8)
			if fill == 0 {
				b.WriteByte(' ')
				continue
			}
			b.WriteRune(blocks[fill-1])
		}
		rows[r] = plotRow{text: b.String(), top: r == 0, bottom: r == height-1}
	}
	return rows
}

func filterSeries(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// resampleSeries averages buckets when there are more values than columns
// and repeats values when there are fewer.
func resampleSeries(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	out := make([]float64, width)
	if len(values) >= width {
		for i := 0; i < width; i++ {
			start := i * len(values) / width
			end := max((i+1)*len(values)/width, start+1)
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
		return out
	}
	for i := range out {
		out[i] = values[i*len(values)/width]
	}
	return out
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
