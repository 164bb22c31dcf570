package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrInvalidMove   = errors.New("invalid move notation")
	ErrInvalidSquare = errors.New("invalid square")
	ErrInvalidFEN    = errors.New("invalid fen")
)

type Side int

const (
	White Side = iota
	Black
)

func (s Side) String() string {
	if s == Black {
		return "black"
	}
	return "white"
}

func (s Side) Opponent() Side {
	if s == Black {
		return White
	}
	return Black
}

// Square indexes the board as rank*8 + file, a1 = 0.
type Square uint8

func ParseSquare(s string) (Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	return Square(int(s[1]-'1')*8 + int(s[0]-'a')), nil
}

func (s Square) File() int { return int(s) % 8 }
func (s Square) Rank() int { return int(s) / 8 }

func (s Square) String() string {
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

type Promotion byte

const (
	NoPromotion   Promotion = 0
	PromoteQueen  Promotion = 'q'
	PromoteRook   Promotion = 'r'
	PromoteBishop Promotion = 'b'
	PromoteKnight Promotion = 'n'
)

// ParsePromotion accepts a piece letter or name ("q", "Queen", "n", "knight").
func ParsePromotion(s string) (Promotion, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "q", "queen":
		return PromoteQueen, true
	case "r", "rook":
		return PromoteRook, true
	case "b", "bishop":
		return PromoteBishop, true
	case "n", "knight":
		return PromoteKnight, true
	default:
		return NoPromotion, false
	}
}

// Move is a from/to pair with an optional promotion piece.
type Move struct {
	From      Square
	To        Square
	Promotion Promotion
}

// ParseMove reads coordinate notation such as "e2e4" or "e7e8q".
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, s)
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, s)
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, s)
	}
	mv := Move{From: from, To: to}
	if len(s) == 5 {
		p, ok := ParsePromotion(s[4:])
		if !ok {
			return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, s)
		}
		mv.Promotion = p
	}
	if from == to {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, s)
	}
	return mv, nil
}

func (m Move) WithPromotion(p Promotion) Move {
	m.Promotion = p
	return m
}

func (m Move) String() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != NoPromotion {
		s += string(rune(m.Promotion))
	}
	return s
}

type PieceKind int

const (
	NoKind PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

func (k PieceKind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return ""
	}
}

// ParsePieceKind accepts names ("pawn") and letters ("p", "N").
func ParsePieceKind(s string) (PieceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p", "pawn":
		return Pawn, true
	case "n", "knight":
		return Knight, true
	case "b", "bishop":
		return Bishop, true
	case "r", "rook":
		return Rook, true
	case "q", "queen":
		return Queen, true
	case "k", "king":
		return King, true
	default:
		return NoKind, false
	}
}

type Piece struct {
	Kind PieceKind
	Side Side
}

type Reason int

const (
	ReasonNone Reason = iota
	ReasonCheckmate
	ReasonStalemate
	ReasonInsufficientMaterial
	ReasonFiftyMoveRule
	ReasonRepetition
)

func (r Reason) String() string {
	switch r {
	case ReasonCheckmate:
		return "checkmate"
	case ReasonStalemate:
		return "stalemate"
	case ReasonInsufficientMaterial:
		return "insufficient material"
	case ReasonFiftyMoveRule:
		return "fifty-move rule"
	case ReasonRepetition:
		return "repetition"
	default:
		return "none"
	}
}

// IsDraw reports whether the reason ends the game without a winner.
func (r Reason) IsDraw() bool {
	switch r {
	case ReasonStalemate, ReasonInsufficientMaterial, ReasonFiftyMoveRule, ReasonRepetition:
		return true
	default:
		return false
	}
}
