package msgcat

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbedded(t *testing.T) {
	c := Default()
	out, err := c.Render("match.engine_move", map[string]any{"Opponent": "The Iron Baron", "SAN": "Nf6"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "The Iron Baron plays Nf6" {
		t.Fatalf("unexpected text: %q", out)
	}
}

func TestRenderMissingField(t *testing.T) {
	c := Default()
	if _, err := c.Render("match.engine_move", map[string]any{"Opponent": "x"}); err == nil {
		t.Fatalf("expected missingkey error")
	}
	if got := c.RenderOr("match.engine_move", map[string]any{}, "fallback"); got != "fallback" {
		t.Fatalf("RenderOr = %q", got)
	}
	var nilCat *Catalog
	if got := nilCat.RenderOr("move.illegal", nil, "fb"); got != "fb" {
		t.Fatalf("nil catalog RenderOr = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("move:\n  illegal: \"Nope.\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := c.RenderOr("move.illegal", nil, ""); got != "Nope." {
		t.Fatalf("override not applied: %q", got)
	}
}

func TestOverrideDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("move:\n  illegal: dup\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestTipDeterministic(t *testing.T) {
	c := Default()
	a := c.Tip(rand.New(rand.NewSource(7)))
	b := c.Tip(rand.New(rand.NewSource(7)))
	if a == "" || a != b {
		t.Fatalf("tips differ or empty: %q vs %q", a, b)
	}
}
