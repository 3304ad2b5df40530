package stimulus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/tuimind/internal/model"
)

func TestDefaultPoolHasBothClasses(t *testing.T) {
	p := Default()
	if p.Len() < 4 {
		t.Fatalf("expected at least 4 stimuli, got %d", p.Len())
	}
	var warm, cool, big, small int
	for _, s := range p.All() {
		if s.ColorWarm {
			warm++
		} else {
			cool++
		}
		if s.SizeBig {
			big++
		} else {
			small++
		}
	}
	if warm == 0 || cool == 0 || big == 0 || small == 0 {
		t.Fatalf("unbalanced pool: warm=%d cool=%d big=%d small=%d", warm, cool, big, small)
	}
}

func TestClassify(t *testing.T) {
	banana := model.Stimulus{ID: "banana", ColorWarm: true, SizeBig: true}
	grapes := model.Stimulus{ID: "grapes", ColorWarm: false, SizeBig: false}
	cases := []struct {
		rule model.Rule
		s    model.Stimulus
		want model.Side
	}{
		{model.RuleColor, banana, model.SideLeft},
		{model.RuleColor, grapes, model.SideRight},
		{model.RuleSize, banana, model.SideLeft},
		{model.RuleSize, grapes, model.SideRight},
	}
	for _, tc := range cases {
		if got := Classify(tc.rule, tc.s); got != tc.want {
			t.Fatalf("Classify(%s, %s) = %v, want %v", tc.rule, tc.s.ID, got, tc.want)
		}
	}
	if SideLabel(model.RuleSize, model.SideRight) != "small" {
		t.Fatalf("unexpected side label")
	}
}

func TestExcept(t *testing.T) {
	p := New([]model.Stimulus{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "a"}})
	if p.Len() != 3 {
		t.Fatalf("expected duplicates to be dropped, got %d", p.Len())
	}
	rest := p.Except("a", "c")
	if len(rest) != 1 || rest[0].ID != "b" {
		t.Fatalf("unexpected remainder: %+v", rest)
	}
	if _, ok := p.Lookup("c"); !ok {
		t.Fatalf("expected lookup of c to succeed")
	}
}

func TestLoadPool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.txt")
	content := "# custom fruits\nplum 🟣 cool small\n\nmango 🥭 warm big\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write pool: %v", err)
	}
	p, err := LoadPool(path)
	if err != nil {
		t.Fatalf("LoadPool failed: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 stimuli, got %d", p.Len())
	}
	mango, _ := p.Lookup("mango")
	if !mango.ColorWarm || !mango.SizeBig {
		t.Fatalf("unexpected mango tags: %+v", mango)
	}
}

func TestLoadPoolErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("# nothing\n"), 0o644); err != nil {
		t.Fatalf("write pool: %v", err)
	}
	if _, err := LoadPool(empty); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
	bad := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(bad, []byte("plum 🟣 lukewarm small\n"), 0o644); err != nil {
		t.Fatalf("write pool: %v", err)
	}
	if _, err := LoadPool(bad); err == nil {
		t.Fatalf("expected parse error")
	}
}
