package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/grand-chess-realms/internal/rules"
)

type Source int

const (
	SourcePhysical Source = iota + 1
	SourceManual
)

func (s Source) String() string {
	switch s {
	case SourcePhysical:
		return "physical"
	case SourceManual:
		return "manual"
	default:
		return "unknown"
	}
}

type Castling int

const (
	NoCastling Castling = iota
	KingSide
	QueenSide
)

// MoveEvent is the unit handed from the listener to the turn loop.
// NeedsPromotion means the consumer must pick the piece before the move is complete.
type MoveEvent struct {
	Move           rules.Move
	Source         Source
	Piece          rules.Piece
	Castling       Castling
	NeedsPromotion bool
	At             time.Time
}

// Resolve turns a device move into a MoveEvent. Missing squares or piece data
// yield ErrMalformedEvent.
func Resolve(dm *DeviceMove, at time.Time) (MoveEvent, error) {
	if dm == nil {
		return MoveEvent{}, fmt.Errorf("%w: missing move", ErrMalformedEvent)
	}
	from, err := rules.ParseSquare(dm.From)
	if err != nil {
		return MoveEvent{}, fmt.Errorf("%w: from square %q", ErrMalformedEvent, dm.From)
	}
	to, err := rules.ParseSquare(dm.To)
	if err != nil {
		return MoveEvent{}, fmt.Errorf("%w: to square %q", ErrMalformedEvent, dm.To)
	}
	if from == to {
		return MoveEvent{}, fmt.Errorf("%w: from equals to (%s)", ErrMalformedEvent, from)
	}
	if dm.Piece == nil {
		return MoveEvent{}, fmt.Errorf("%w: missing piece", ErrMalformedEvent)
	}
	kind, ok := rules.ParsePieceKind(dm.Piece.Type)
	if !ok {
		return MoveEvent{}, fmt.Errorf("%w: piece type %q", ErrMalformedEvent, dm.Piece.Type)
	}
	side, ok := parseColor(dm.Piece.Color)
	if !ok {
		return MoveEvent{}, fmt.Errorf("%w: piece color %q", ErrMalformedEvent, dm.Piece.Color)
	}

	ev := MoveEvent{
		Move:   rules.Move{From: from, To: to},
		Source: SourcePhysical,
		Piece:  rules.Piece{Kind: kind, Side: side},
		At:     at,
	}

	if kind == rules.King && from.Rank() == to.Rank() {
		switch to.File() - from.File() {
		case 2:
			ev.Castling = KingSide
		case -2:
			ev.Castling = QueenSide
		}
	}

	if kind == rules.Pawn && reachesLastRank(side, to) {
		if p, ok := rules.ParsePromotion(dm.Promotion); ok {
			ev.Move.Promotion = p
		} else {
			ev.NeedsPromotion = true
		}
	}
	return ev, nil
}

func reachesLastRank(side rules.Side, sq rules.Square) bool {
	if side == rules.White {
		return sq.Rank() == 7
	}
	return sq.Rank() == 0
}

func parseColor(s string) (rules.Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return rules.White, true
	case "black", "b":
		return rules.Black, true
	default:
		return rules.White, false
	}
}
