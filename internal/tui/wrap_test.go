package tui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestWrapWordsBreaksAtSpaces(t *testing.T) {
	got := wrapWords("press space   when the target appears", 12)
	want := []string{"press space", "when the", "target", "appears"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("wrapWords = %q, want %q", got, want)
	}
}

func TestWrapWordsSplitsLongWords(t *testing.T) {
	got := wrapWords("abcdefghij xy", 4)
	want := []string{"abcd", "efgh", "ij", "xy"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("wrapWords = %q, want %q", got, want)
	}
}

func TestWrapWordsCountsWideRunes(t *testing.T) {
	got := wrapWords("🍎🍎🍎 ok", 4)
	for _, line := range got {
		if runewidth.StringWidth(line) > 4 {
			t.Fatalf("line %q exceeds width", line)
		}
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %q", got)
	}
}

func TestWrapWordsEdgeCases(t *testing.T) {
	if got := wrapWords("   ", 10); got != nil {
		t.Fatalf("expected no lines for blank text, got %q", got)
	}
	if got := wrapWords("a b", 0); len(got) != 1 || got[0] != "a b" {
		t.Fatalf("expected unwrapped text for zero width, got %q", got)
	}
}
