package board

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/park285/grand-chess-realms/internal/rules"
)

func sq(t *testing.T, s string) rules.Square {
	t.Helper()
	v, err := rules.ParseSquare(s)
	if err != nil {
		t.Fatalf("ParseSquare(%q): %v", s, err)
	}
	return v
}

func TestResolve(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		in   DeviceMove
		want MoveEvent
	}{
		{
			name: "plain pawn push",
			in:   DeviceMove{From: "e2", To: "e4", Piece: &DevicePiece{Type: "pawn", Color: "white"}},
			want: MoveEvent{
				Move:   rules.Move{From: sq(t, "e2"), To: sq(t, "e4")},
				Source: SourcePhysical,
				Piece:  rules.Piece{Kind: rules.Pawn, Side: rules.White},
				At:     at,
			},
		},
		{
			name: "black queenside castle",
			in:   DeviceMove{From: "e8", To: "c8", Piece: &DevicePiece{Type: "king", Color: "b"}},
			want: MoveEvent{
				Move:     rules.Move{From: sq(t, "e8"), To: sq(t, "c8")},
				Source:   SourcePhysical,
				Piece:    rules.Piece{Kind: rules.King, Side: rules.Black},
				Castling: QueenSide,
				At:       at,
			},
		},
		{
			name: "promotion without choice",
			in:   DeviceMove{From: "a7", To: "a8", Piece: &DevicePiece{Type: "pawn", Color: "white"}},
			want: MoveEvent{
				Move:           rules.Move{From: sq(t, "a7"), To: sq(t, "a8")},
				Source:         SourcePhysical,
				Piece:          rules.Piece{Kind: rules.Pawn, Side: rules.White},
				NeedsPromotion: true,
				At:             at,
			},
		},
		{
			name: "promotion chosen on the board",
			in:   DeviceMove{From: "h2", To: "h1", Piece: &DevicePiece{Type: "pawn", Color: "black"}, Promotion: "n"},
			want: MoveEvent{
				Move:   rules.Move{From: sq(t, "h2"), To: sq(t, "h1"), Promotion: rules.PromoteKnight},
				Source: SourcePhysical,
				Piece:  rules.Piece{Kind: rules.Pawn, Side: rules.Black},
				At:     at,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			got, err := Resolve(&in, at)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Resolve mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveMalformed(t *testing.T) {
	cases := map[string]*DeviceMove{
		"nil move":      nil,
		"bad from":      {From: "i2", To: "e4", Piece: &DevicePiece{Type: "pawn", Color: "white"}},
		"bad to":        {From: "e2", To: "e9", Piece: &DevicePiece{Type: "pawn", Color: "white"}},
		"same square":   {From: "e2", To: "e2", Piece: &DevicePiece{Type: "pawn", Color: "white"}},
		"no piece":      {From: "e2", To: "e4"},
		"unknown piece": {From: "e2", To: "e4", Piece: &DevicePiece{Type: "dragon", Color: "white"}},
		"unknown color": {From: "e2", To: "e4", Piece: &DevicePiece{Type: "pawn", Color: "green"}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Resolve(in, time.Now()); !errors.Is(err, ErrMalformedEvent) {
				t.Fatalf("err = %v, want ErrMalformedEvent", err)
			}
		})
	}
}
