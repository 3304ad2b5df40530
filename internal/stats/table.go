package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	columnGap  = "  "
	headerRule = "─"
)

// column describes one rendered column. Width is measured in terminal
// cells so fruit glyphs line up with ASCII text.
type column struct {
	width int
	right bool
}

// formatTable lays out rows under headers. Numeric columns listed in right
// are right-aligned. A rule line follows a non-empty header.
func formatTable(headers []string, rows [][]string, right map[int]bool) []string {
	cols := measureColumns(headers, rows, right)
	if len(cols) == 0 {
		return nil
	}

	out := make([]string, 0, len(rows)+2)
	if len(headers) > 0 {
		out = append(out, joinCells(headers, cols))
		out = append(out, ruleLine(cols))
	}
	for _, row := range rows {
		out = append(out, joinCells(row, cols))
	}
	return out
}

func measureColumns(headers []string, rows [][]string, right map[int]bool) []column {
	n := len(headers)
	for _, row := range rows {
		n = max(n, len(row))
	}
	cols := make([]column, n)
	for i := range cols {
		cols[i].right = right[i]
	}
	grow := func(cells []string) {
		for i, cell := range cells {
			cols[i].width = max(cols[i].width, runewidth.StringWidth(cell))
		}
	}
	grow(headers)
	for _, row := range rows {
		grow(row)
	}
	return cols
}

func joinCells(cells []string, cols []column) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = alignCell(cell, col)
	}
	return strings.TrimRight(strings.Join(parts, columnGap), " ")
}

func alignCell(cell string, col column) string {
	if col.right {
		return runewidth.FillLeft(cell, col.width)
	}
	return runewidth.FillRight(cell, col.width)
}

func ruleLine(cols []column) string {
	total := 0
	for i, col := range cols {
		if i > 0 {
			total += len(columnGap)
		}
		total += col.width
	}
	return strings.Repeat(headerRule, total)
}
