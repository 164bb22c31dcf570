package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Position is an immutable snapshot; Oracle.Apply returns a new one.
type Position struct {
	game *nchess.Game
}

func NewPosition() *Position {
	return &Position{game: nchess.NewGame()}
}

func PositionFromFEN(fen string) (*Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return NewPosition(), nil
	}
	option, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return &Position{game: nchess.NewGame(option)}, nil
}

func (p *Position) FEN() string { return p.game.FEN() }

func (p *Position) Turn() Side {
	if p.game.Position().Turn() == nchess.Black {
		return Black
	}
	return White
}

// MoveCount is the number of half-moves applied since the position was created.
func (p *Position) MoveCount() int { return len(p.game.Moves()) }

// History returns the applied moves in coordinate notation.
func (p *Position) History() []Move {
	moves := p.game.Moves()
	out := make([]Move, 0, len(moves))
	for _, mv := range moves {
		if m, err := ParseMove(mv.String()); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// PGN renders the move text of the game so far.
func (p *Position) PGN() string { return p.game.String() }

func (p *Position) inCheck() bool {
	moves := p.game.Moves()
	if len(moves) == 0 {
		return false
	}
	return moves[len(moves)-1].HasTag(nchess.Check)
}

// Oracle answers legality and terminal-state questions for positions.
type Oracle struct {
	uci nchess.UCINotation
	san nchess.AlgebraicNotation
}

func NewOracle() *Oracle { return &Oracle{} }

func (o *Oracle) LegalMoves(p *Position) []Move {
	valid := p.game.ValidMoves()
	out := make([]Move, 0, len(valid))
	for _, mv := range valid {
		if m, err := ParseMove(mv.String()); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (o *Oracle) IsLegal(p *Position, mv Move) bool {
	for _, legal := range o.LegalMoves(p) {
		if legal == mv {
			return true
		}
	}
	return false
}

// IsTerminal treats claimable draws (threefold, fifty-move) as terminal.
func (o *Oracle) IsTerminal(p *Position) (bool, Reason) {
	g := p.game
	if g.Outcome() != nchess.NoOutcome {
		return true, reasonFromMethod(g.Method())
	}
	for _, m := range g.EligibleDraws() {
		switch m {
		case nchess.ThreefoldRepetition:
			return true, ReasonRepetition
		case nchess.FiftyMoveRule:
			return true, ReasonFiftyMoveRule
		}
	}
	return false, ReasonNone
}

func reasonFromMethod(m nchess.Method) Reason {
	switch m {
	case nchess.Checkmate:
		return ReasonCheckmate
	case nchess.Stalemate:
		return ReasonStalemate
	case nchess.InsufficientMaterial:
		return ReasonInsufficientMaterial
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		return ReasonFiftyMoveRule
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return ReasonRepetition
	default:
		return ReasonNone
	}
}

// Apply returns the position after mv. p itself is left untouched.
func (o *Oracle) Apply(p *Position, mv Move) (*Position, error) {
	if !o.IsLegal(p, mv) {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, mv)
	}
	next := p.game.Clone()
	if err := next.PushNotationMove(mv.String(), o.uci, nil); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIllegalMove, mv, err)
	}
	return &Position{game: next}, nil
}

// SAN encodes a legal move in algebraic notation, falling back to coordinates.
func (o *Oracle) SAN(p *Position, mv Move) string {
	pos := p.game.Position()
	decoded, err := o.uci.Decode(pos, mv.String())
	if err != nil {
		return mv.String()
	}
	return o.san.Encode(pos, decoded)
}

// ParseAlgebraic decodes SAN ("Nf3", "exd5", "O-O", "e8=Q+") into a legal move.
func (o *Oracle) ParseAlgebraic(p *Position, text string) (Move, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Move{}, fmt.Errorf("%w: empty", ErrInvalidMove)
	}
	pos := p.game.Position()
	candidates := []string{text}
	normalized := strings.ReplaceAll(text, "0", "O")
	normalized = strings.TrimRight(normalized, "+#!?")
	if normalized != text {
		candidates = append(candidates, normalized)
	}
	for _, cand := range candidates {
		decoded, err := o.san.Decode(pos, cand)
		if err != nil || decoded == nil {
			continue
		}
		mv, err := ParseMove(decoded.String())
		if err != nil {
			continue
		}
		if o.IsLegal(p, mv) {
			return mv, nil
		}
	}
	return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, text)
}

func (o *Oracle) PieceAt(p *Position, sq Square) (Piece, bool) {
	piece := p.game.Position().Board().Piece(nchess.NewSquare(nchess.File(sq.File()), nchess.Rank(sq.Rank())))
	if piece == nchess.NoPiece {
		return Piece{}, false
	}
	kind := kindFromType(piece.Type())
	if kind == NoKind {
		return Piece{}, false
	}
	side := White
	if piece.Color() == nchess.Black {
		side = Black
	}
	return Piece{Kind: kind, Side: side}, true
}

func kindFromType(t nchess.PieceType) PieceKind {
	switch t {
	case nchess.Pawn:
		return Pawn
	case nchess.Knight:
		return Knight
	case nchess.Bishop:
		return Bishop
	case nchess.Rook:
		return Rook
	case nchess.Queen:
		return Queen
	case nchess.King:
		return King
	default:
		return NoKind
	}
}
