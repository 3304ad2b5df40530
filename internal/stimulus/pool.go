// Package stimulus provides the fruit catalog and its classifiers.
package stimulus

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/verte-zerg/tuimind/internal/model"
)

// ErrEmptyPool is returned when a pool file defines no stimuli.
var ErrEmptyPool = errors.New("stimulus pool is empty")

// Pool is an immutable ordered set of stimuli.
type Pool struct {
	items []model.Stimulus
	byID  map[string]int
}

var builtin = []model.Stimulus{
	{ID: "apple", Glyph: "🍎", ColorWarm: true, SizeBig: false},
	{ID: "banana", Glyph: "🍌", ColorWarm: true, SizeBig: true},
	{ID: "cherry", Glyph: "🍒", ColorWarm: true, SizeBig: false},
	{ID: "grapes", Glyph: "🍇", ColorWarm: false, SizeBig: false},
	{ID: "kiwi", Glyph: "🥝", ColorWarm: false, SizeBig: false},
	{ID: "orange", Glyph: "🍊", ColorWarm: true, SizeBig: false},
	{ID: "pear", Glyph: "🍐", ColorWarm: false, SizeBig: false},
	{ID: "watermelon", Glyph: "🍉", ColorWarm: false, SizeBig: true},
	{ID: "pineapple", Glyph: "🍍", ColorWarm: true, SizeBig: true},
	{ID: "melon", Glyph: "🍈", ColorWarm: false, SizeBig: true},
}

// Default returns the built-in fruit pool.
func Default() *Pool {
	return New(builtin)
}

// New builds a pool. Later duplicates of an ID are dropped.
func New(items []model.Stimulus) *Pool {
	p := &Pool{byID: make(map[string]int, len(items))}
	for _, s := range items {
		if _, ok := p.byID[s.ID]; ok {
			continue
		}
		p.byID[s.ID] = len(p.items)
		p.items = append(p.items, s)
	}
	return p
}

// Len returns the number of stimuli.
func (p *Pool) Len() int {
	return len(p.items)
}

// At returns the stimulus at index i.
func (p *Pool) At(i int) model.Stimulus {
	return p.items[i]
}

// All returns a copy of the stimuli.
func (p *Pool) All() []model.Stimulus {
	out := make([]model.Stimulus, len(p.items))
	copy(out, p.items)
	return out
}

// Lookup finds a stimulus by ID.
func (p *Pool) Lookup(id string) (model.Stimulus, bool) {
	i, ok := p.byID[id]
	if !ok {
		return model.Stimulus{}, false
	}
	return p.items[i], true
}

// Except returns the stimuli whose IDs are not in exclude.
func (p *Pool) Except(exclude ...string) []model.Stimulus {
	out := make([]model.Stimulus, 0, len(p.items))
	for _, s := range p.items {
		skip := false
		for _, id := range exclude {
			if s.ID == id {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, s)
		}
	}
	return out
}

// ColorWarm classifies by color temperature.
func ColorWarm(s model.Stimulus) bool {
	return s.ColorWarm
}

// SizeBig classifies by size.
func SizeBig(s model.Stimulus) bool {
	return s.SizeBig
}

// Classify returns the correct side for s under rule.
// Warm and big map to the left, cool and small to the right.
func Classify(rule model.Rule, s model.Stimulus) model.Side {
	var left bool
	switch rule {
	case model.RuleSize:
		left = SizeBig(s)
	default:
		left = ColorWarm(s)
	}
	if left {
		return model.SideLeft
	}
	return model.SideRight
}

// SideLabel names the side choice for a rule, e.g. "warm" for color/left.
func SideLabel(rule model.Rule, side model.Side) string {
	switch {
	case rule == model.RuleColor && side == model.SideLeft:
		return "warm"
	case rule == model.RuleColor && side == model.SideRight:
		return "cool"
	case rule == model.RuleSize && side == model.SideLeft:
		return "big"
	case rule == model.RuleSize && side == model.SideRight:
		return "small"
	default:
		return ""
	}
}

// LoadPool reads a pool file with one stimulus per line:
//
//	id glyph warm|cool big|small
//
// Blank lines and lines starting with # are skipped.
func LoadPool(path string) (*Pool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only pool file.
			_ = cerr
		}
	}()

	var items []model.Stimulus
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		items = append(items, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyPool
	}
	return New(items), nil
}

func parseLine(line string) (model.Stimulus, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return model.Stimulus{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}
	s := model.Stimulus{ID: fields[0], Glyph: fields[1]}
	switch strings.ToLower(fields[2]) {
	case "warm":
		s.ColorWarm = true
	case "cool":
	default:
		return model.Stimulus{}, fmt.Errorf("color must be warm or cool, got %q", fields[2])
	}
	switch strings.ToLower(fields[3]) {
	case "big":
		s.SizeBig = true
	case "small":
	default:
		return model.Stimulus{}, fmt.Errorf("size must be big or small, got %q", fields[3])
	}
	return s, nil
}
