package rules

import (
	"errors"
	"strings"
	"testing"
)

func mustMove(t *testing.T, s string) Move {
	t.Helper()
	mv, err := ParseMove(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return mv
}

func play(t *testing.T, o *Oracle, p *Position, moves ...string) *Position {
	t.Helper()
	for _, s := range moves {
		next, err := o.Apply(p, mustMove(t, s))
		if err != nil {
			t.Fatalf("apply %s: %v", s, err)
		}
		p = next
	}
	return p
}

func TestParseMove(t *testing.T) {
	mv := mustMove(t, "E7E8Q")
	if mv.From.String() != "e7" || mv.To.String() != "e8" || mv.Promotion != PromoteQueen {
		t.Fatalf("unexpected move %+v", mv)
	}
	if mv.String() != "e7e8q" {
		t.Fatalf("String() = %q", mv.String())
	}
	for _, bad := range []string{"", "e2", "e2e9", "i2e4", "e2e4x", "e2e2", "Nf3"} {
		if _, err := ParseMove(bad); !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("ParseMove(%q) err = %v, want ErrInvalidMove", bad, err)
		}
	}
}

func TestStartPositionLegalMoves(t *testing.T) {
	o := NewOracle()
	p := NewPosition()
	if got := len(o.LegalMoves(p)); got != 20 {
		t.Fatalf("legal moves = %d, want 20", got)
	}
	if p.Turn() != White {
		t.Fatalf("turn = %v", p.Turn())
	}
	if done, _ := o.IsTerminal(p); done {
		t.Fatalf("start position reported terminal")
	}
}

func TestApplyDoesNotMutate(t *testing.T) {
	o := NewOracle()
	p := NewPosition()
	before := p.FEN()
	next, err := o.Apply(p, mustMove(t, "e2e4"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.FEN() != before {
		t.Fatalf("original position mutated")
	}
	if next.Turn() != Black || next.MoveCount() != 1 {
		t.Fatalf("next turn=%v count=%d", next.Turn(), next.MoveCount())
	}
	if _, err := o.Apply(p, mustMove(t, "e2e5")); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
}

func TestCheckmateDetected(t *testing.T) {
	o := NewOracle()
	p := play(t, o, NewPosition(), "f2f3", "e7e5", "g2g4", "d8h4")
	done, reason := o.IsTerminal(p)
	if !done || reason != ReasonCheckmate {
		t.Fatalf("terminal=%v reason=%v", done, reason)
	}
	if p.Turn() != White {
		t.Fatalf("mated side should be to move")
	}
	if !strings.Contains(o.Display(p), "(check)") {
		t.Fatalf("display missing check marker")
	}
}

func TestStalemateDetected(t *testing.T) {
	o := NewOracle()
	p, err := PositionFromFEN("7k/8/6K1/8/8/8/8/5Q2 w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	p = play(t, o, p, "f1f7")
	done, reason := o.IsTerminal(p)
	if !done || reason != ReasonStalemate || !reason.IsDraw() {
		t.Fatalf("terminal=%v reason=%v", done, reason)
	}
}

func TestInsufficientMaterial(t *testing.T) {
	o := NewOracle()
	p, err := PositionFromFEN("8/8/8/4k3/8/8/3K4/8 w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	p = play(t, o, p, "d2d3")
	if done, reason := o.IsTerminal(p); !done || reason != ReasonInsufficientMaterial {
		t.Fatalf("terminal=%v reason=%v", done, reason)
	}
}

func TestThreefoldRepetitionIsTerminal(t *testing.T) {
	o := NewOracle()
	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	p := play(t, o, NewPosition(), shuffle...)
	p = play(t, o, p, shuffle...)
	if done, reason := o.IsTerminal(p); !done || reason != ReasonRepetition {
		t.Fatalf("terminal=%v reason=%v", done, reason)
	}
}

func TestPromotionMoves(t *testing.T) {
	o := NewOracle()
	p, err := PositionFromFEN("8/4P3/8/8/8/8/k7/4K3 w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	if o.IsLegal(p, mustMove(t, "e7e8")) {
		t.Fatalf("promotion without piece must be illegal")
	}
	for _, s := range []string{"e7e8q", "e7e8r", "e7e8b", "e7e8n"} {
		if !o.IsLegal(p, mustMove(t, s)) {
			t.Fatalf("%s should be legal", s)
		}
	}
	piece, ok := o.PieceAt(p, mustMove(t, "e7e8").From)
	if !ok || piece.Kind != Pawn || piece.Side != White {
		t.Fatalf("PieceAt(e7) = %+v, %v", piece, ok)
	}
}

func TestAlgebraicRoundTrip(t *testing.T) {
	o := NewOracle()
	p := NewPosition()
	if got := o.SAN(p, mustMove(t, "g1f3")); got != "Nf3" {
		t.Fatalf("SAN = %q, want Nf3", got)
	}
	mv, err := o.ParseAlgebraic(p, "e4")
	if err != nil || mv.String() != "e2e4" {
		t.Fatalf("ParseAlgebraic(e4) = %v, %v", mv, err)
	}
	if _, err := o.ParseAlgebraic(p, "Qh5"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("expected invalid for Qh5 at start, got %v", err)
	}

	castle, err := PositionFromFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	for _, text := range []string{"O-O", "0-0"} {
		mv, err := o.ParseAlgebraic(castle, text)
		if err != nil || mv.String() != "e1g1" {
			t.Fatalf("ParseAlgebraic(%s) = %v, %v", text, mv, err)
		}
	}
}

func TestDisplayStartPosition(t *testing.T) {
	out := NewOracle().Display(NewPosition())
	for _, want := range []string{"8 | r n b q k b n r |", "1 | R N B Q K B N R |", "    a b c d e f g h", "White to move"} {
		if !strings.Contains(out, want) {
			t.Fatalf("display missing %q:\n%s", want, out)
		}
	}
}

func TestPositionFromFENInvalid(t *testing.T) {
	if _, err := PositionFromFEN("not a fen"); !errors.Is(err, ErrInvalidFEN) {
		t.Fatalf("expected ErrInvalidFEN, got %v", err)
	}
}
