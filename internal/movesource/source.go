// Package movesource decides where the human's next move comes from: the
// physical board when it is connected, otherwise the keyboard.
package movesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/grand-chess-realms/internal/board"
	"github.com/park285/grand-chess-realms/internal/msgcat"
	"github.com/park285/grand-chess-realms/internal/rules"
)

var (
	ErrResigned            = errors.New("player resigned")
	ErrIllegalPhysicalMove = errors.New("illegal physical move")
)

// Physical is the slice of board.Bridge the source needs.
type Physical interface {
	Connected() bool
	EnsureConnection() bool
	GetMove(ctx context.Context, timeout time.Duration) (board.MoveEvent, bool)
}

type Rules interface {
	IsLegal(p *rules.Position, mv rules.Move) bool
	ParseAlgebraic(p *rules.Position, text string) (rules.Move, error)
	PieceAt(p *rules.Position, sq rules.Square) (rules.Piece, bool)
}

type Console interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
	Println(a ...any)
}

type Option func(*Source)

// WithBoard enables physical input. Pass an untyped nil to disable it.
func WithBoard(p Physical) Option {
	return func(s *Source) { s.board = p }
}

func WithCatalog(c *msgcat.Catalog) Option {
	return func(s *Source) {
		if c != nil {
			s.catalog = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		if now != nil {
			s.now = now
		}
	}
}

type Source struct {
	rules   Rules
	console Console
	board   Physical
	catalog *msgcat.Catalog
	logger  *zap.Logger
	now     func() time.Time
}

func New(r Rules, console Console, opts ...Option) *Source {
	s := &Source{
		rules:   r,
		console: console,
		catalog: msgcat.Default(),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextMove returns a legal move for pos. It waits at most physicalTimeout for
// the board before reading from the console. Resignation and end of input are
// reported as ErrResigned.
func (s *Source) NextMove(ctx context.Context, pos *rules.Position, physicalTimeout time.Duration) (board.MoveEvent, error) {
	if err := ctx.Err(); err != nil {
		return board.MoveEvent{}, err
	}

	if s.board != nil {
		if !s.board.Connected() {
			s.board.EnsureConnection()
		}
		if s.board.Connected() {
			s.say("physical.waiting", nil, "Make your move on the board, or type it below.")
			if ev, ok := s.board.GetMove(ctx, physicalTimeout); ok {
				done, err := s.completePhysical(ctx, pos, ev)
				if err == nil {
					return done, nil
				}
				if !errors.Is(err, ErrIllegalPhysicalMove) {
					return board.MoveEvent{}, err
				}
			}
			if err := ctx.Err(); err != nil {
				return board.MoveEvent{}, err
			}
		}
	}
	return s.manual(ctx, pos)
}

func (s *Source) completePhysical(ctx context.Context, pos *rules.Position, ev board.MoveEvent) (board.MoveEvent, error) {
	if ev.Castling != board.NoCastling {
		s.say("physical.castling", nil, "Castling detected on the board.")
	}
	s.say("physical.detected", map[string]any{"Move": ev.Move.String()}, "Board move detected: "+ev.Move.String())

	if ev.NeedsPromotion {
		p, err := s.askPromotion(ctx)
		if err != nil {
			return board.MoveEvent{}, err
		}
		ev.Move = ev.Move.WithPromotion(p)
		ev.NeedsPromotion = false
	}

	if !s.rules.IsLegal(pos, ev.Move) {
		err := fmt.Errorf("%w: %s", ErrIllegalPhysicalMove, ev.Move)
		s.logger.Warn("physical_move_rejected", zap.String("move", ev.Move.String()), zap.String("fen", pos.FEN()), zap.Error(err))
		s.say("physical.illegal", map[string]any{"Move": ev.Move.String()}, "Illegal move on the board: "+ev.Move.String())
		return board.MoveEvent{}, err
	}
	return ev, nil
}

func (s *Source) manual(ctx context.Context, pos *rules.Position) (board.MoveEvent, error) {
	prompt := s.text("prompt.move", nil, "Your move: ")
	for {
		line, err := s.read(ctx, prompt)
		if err != nil {
			return board.MoveEvent{}, err
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		switch strings.ToLower(text) {
		case "quit", "exit", "resign":
			yes, err := s.confirmResign(ctx)
			if err != nil {
				return board.MoveEvent{}, err
			}
			if yes {
				return board.MoveEvent{}, ErrResigned
			}
			continue
		}

		mv, ok, err := s.parse(ctx, pos, text)
		if err != nil {
			return board.MoveEvent{}, err
		}
		if !ok {
			continue
		}
		return board.MoveEvent{Move: mv, Source: board.SourceManual, At: s.now()}, nil
	}
}

// parse reports ok=false after telling the user what was wrong.
func (s *Source) parse(ctx context.Context, pos *rules.Position, text string) (rules.Move, bool, error) {
	if mv, err := rules.ParseMove(text); err == nil {
		if mv.Promotion == rules.NoPromotion && s.needsPromotion(pos, mv) {
			p, err := s.askPromotion(ctx)
			if err != nil {
				return rules.Move{}, false, err
			}
			mv = mv.WithPromotion(p)
		}
		if !s.rules.IsLegal(pos, mv) {
			s.say("move.illegal", nil, "Illegal move. Try again.")
			return rules.Move{}, false, nil
		}
		return mv, true, nil
	}

	mv, err := s.rules.ParseAlgebraic(pos, text)
	if err != nil {
		s.logger.Debug("manual_move_unparsed", zap.String("input", text), zap.Error(err))
		s.say("move.invalid_format", nil, "Invalid format. Use coordinate notation like 'e2e4' or algebraic notation like 'Nf3'.")
		return rules.Move{}, false, nil
	}
	return mv, true, nil
}

func (s *Source) needsPromotion(pos *rules.Position, mv rules.Move) bool {
	piece, ok := s.rules.PieceAt(pos, mv.From)
	if !ok || piece.Kind != rules.Pawn {
		return false
	}
	if piece.Side == rules.White {
		return mv.To.Rank() == 7
	}
	return mv.To.Rank() == 0
}

func (s *Source) askPromotion(ctx context.Context) (rules.Promotion, error) {
	prompt := s.text("prompt.promotion", nil, "Promote to (q/r/b/n): ")
	for {
		line, err := s.read(ctx, prompt)
		if err != nil {
			return rules.NoPromotion, err
		}
		if p, ok := rules.ParsePromotion(line); ok {
			return p, nil
		}
		s.say("move.invalid_promotion", nil, "Choose one of q, r, b or n.")
	}
}

func (s *Source) confirmResign(ctx context.Context) (bool, error) {
	line, err := s.read(ctx, s.text("prompt.confirm_resign", nil, "Are you sure you want to resign? (y/n): "))
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// read maps end of input to resignation and keeps ctx errors unwrapped.
func (s *Source) read(ctx context.Context, prompt string) (string, error) {
	line, err := s.console.ReadLine(ctx, prompt)
	if err == nil {
		return line, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: input closed", ErrResigned)
	}
	return "", fmt.Errorf("read input: %w", err)
}

func (s *Source) text(key string, data map[string]any, fallback string) string {
	return s.catalog.RenderOr(key, data, fallback)
}

func (s *Source) say(key string, data map[string]any, fallback string) {
	s.console.Println(s.text(key, data, fallback))
}
