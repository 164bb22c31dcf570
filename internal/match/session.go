// Package match runs one game between the human (White) and the engine.
package match

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/park285/grand-chess-realms/internal/board"
	"github.com/park285/grand-chess-realms/internal/chess"
	"github.com/park285/grand-chess-realms/internal/clock"
	"github.com/park285/grand-chess-realms/internal/movesource"
	"github.com/park285/grand-chess-realms/internal/msgcat"
	"github.com/park285/grand-chess-realms/internal/rules"
)

var ErrMissingDependency = errors.New("match: missing dependency")

type Rules interface {
	IsTerminal(p *rules.Position) (bool, rules.Reason)
	Apply(p *rules.Position, mv rules.Move) (*rules.Position, error)
	SAN(p *rules.Position, mv rules.Move) string
	Display(p *rules.Position) string
}

type MoveSource interface {
	NextMove(ctx context.Context, pos *rules.Position, physicalTimeout time.Duration) (board.MoveEvent, error)
}

type Opponent interface {
	ConfigureStrength(ctx context.Context, elo int) chess.StrengthLevel
	RequestMove(ctx context.Context, pos *rules.Position, budget time.Duration) (rules.Move, error)
}

// Board is the optional physical board. Leave it nil when there is none.
type Board interface {
	Connected() bool
	SyncPosition(ctx context.Context, pos *rules.Position) bool
	Flush() int
}

type Console interface {
	Println(a ...any)
	WaitAck(ctx context.Context, prompt string) error
}

type Deps struct {
	Rules    Rules
	Moves    MoveSource
	Opponent Opponent
	Board    Board
	Console  Console
	Logger   *zap.Logger
	Catalog  *msgcat.Catalog
}

type Option func(*Session)

func WithPhysicalTimeout(d time.Duration) Option {
	return func(s *Session) { s.physicalTimeout = d }
}

// WithFixedBudget sets the engine budget used when the clock is off.
func WithFixedBudget(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.fixedBudget = d
		}
	}
}

func WithBudgetCeiling(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.ceiling = d
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func WithStartPosition(p *rules.Position) Option {
	return func(s *Session) {
		if p != nil {
			s.start = p
		}
	}
}

type Session struct {
	rules    Rules
	moves    MoveSource
	opponent Opponent
	board    Board
	console  Console
	logger   *zap.Logger
	catalog  *msgcat.Catalog

	physicalTimeout time.Duration
	fixedBudget     time.Duration
	ceiling         time.Duration
	now             func() time.Time
	start           *rules.Position
}

const human = rules.White

func NewSession(d Deps, opts ...Option) (*Session, error) {
	switch {
	case d.Rules == nil:
		return nil, fmt.Errorf("%w: rules", ErrMissingDependency)
	case d.Moves == nil:
		return nil, fmt.Errorf("%w: move source", ErrMissingDependency)
	case d.Opponent == nil:
		return nil, fmt.Errorf("%w: opponent", ErrMissingDependency)
	case d.Console == nil:
		return nil, fmt.Errorf("%w: console", ErrMissingDependency)
	}
	s := &Session{
		rules:           d.Rules,
		moves:           d.Moves,
		opponent:        d.Opponent,
		board:           d.Board,
		console:         d.Console,
		logger:          d.Logger,
		catalog:         d.Catalog,
		physicalTimeout: 100 * time.Millisecond,
		fixedBudget:     time.Second,
		ceiling:         30 * time.Second,
		now:             time.Now,
		start:           rules.NewPosition(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.catalog == nil {
		s.catalog = msgcat.Default()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run plays until the position is terminal, the human resigns or a flag
// falls. Only cancellation and internal failures are returned as errors.
func (s *Session) Run(ctx context.Context, opponent string, elo int, tc clock.TimeControl) (Outcome, error) {
	engine := human.Opponent()
	clk := clock.New(tc)
	pos := s.start

	out := Outcome{
		Opponent:    opponent,
		Elo:         elo,
		TimeControl: tc,
		StartedAt:   s.now(),
	}
	out.Strength = s.opponent.ConfigureStrength(ctx, elo)
	s.logger.Info("match_start",
		zap.String("opponent", opponent),
		zap.Int("elo", elo),
		zap.Int("strength", int(out.Strength)),
		zap.String("time_control", tc.String()),
	)
	s.say("match.intro", map[string]any{
		"Opponent":    opponent,
		"Elo":         elo,
		"Strength":    int(out.Strength),
		"TimeControl": tc.Describe(),
	}, fmt.Sprintf("CHESS MATCH: %s (%d)", opponent, elo))

	if s.boardConnected() {
		if s.board.SyncPosition(ctx, pos) {
			s.say("match.board_synced", nil, "Physical board synchronized.")
		} else {
			s.say("match.board_sync_failed", nil, "Could not sync the physical board.")
		}
	}

	finish := func(p *rules.Position) Outcome {
		out.FinalFEN = p.FEN()
		out.PGN = p.PGN()
		out.HumanRemaining = clk.Remaining(human)
		out.EngineRemaining = clk.Remaining(engine)
		out.EndedAt = s.now()
		return out
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(pos), err
		}
		if done, reason := s.rules.IsTerminal(pos); done {
			out.Result = resultFor(reason, pos.Turn(), human)
			out.Reason = finishFromRules(reason)
			break
		}

		if pos.Turn() == human {
			s.console.Println(s.rules.Display(pos))
			if clk.Enabled() {
				s.say("match.clock", map[string]any{
					"Opponent": opponent,
					"Human":    clock.Format(clk.Remaining(human)),
					"Engine":   clock.Format(clk.Remaining(engine)),
				}, "")
			}

			started := s.now()
			ev, err := s.moves.NextMove(ctx, pos, s.physicalTimeout)
			elapsed := s.now().Sub(started)
			if err != nil {
				if errors.Is(err, movesource.ErrResigned) {
					out.Result, out.Reason = Loss, FinishResignation
					break
				}
				return finish(pos), err
			}
			if clk.Tick(human, elapsed) == clock.Forfeited {
				out.Result, out.Reason = Loss, FinishTimeForfeit
				break
			}

			san := s.rules.SAN(pos, ev.Move)
			next, err := s.rules.Apply(pos, ev.Move)
			if err != nil {
				return finish(pos), fmt.Errorf("apply human move %s: %w", ev.Move, err)
			}
			if ev.Source == board.SourcePhysical {
				out.Physical++
			}
			out.Moves = append(out.Moves, ev.Move)
			out.SAN = append(out.SAN, san)
			s.logger.Debug("human_move", zap.String("move", ev.Move.String()), zap.Stringer("source", ev.Source), zap.Duration("elapsed", elapsed))
			pos = next
			continue
		}

		budget := s.budget(clk, engine)
		s.say("match.thinking", map[string]any{"Opponent": opponent}, opponent+" is thinking...")
		started := s.now()
		mv, err := s.opponent.RequestMove(ctx, pos, budget)
		elapsed := s.now().Sub(started)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return finish(pos), ctxErr
			}
			return finish(pos), fmt.Errorf("opponent move: %w", err)
		}
		if clk.Tick(engine, elapsed) == clock.Forfeited {
			out.Result, out.Reason = Win, FinishTimeForfeit
			break
		}

		san := s.rules.SAN(pos, mv)
		next, err := s.rules.Apply(pos, mv)
		if err != nil {
			return finish(pos), fmt.Errorf("apply engine move %s: %w", mv, err)
		}
		out.Moves = append(out.Moves, mv)
		out.SAN = append(out.SAN, san)
		s.logger.Debug("engine_move", zap.String("move", mv.String()), zap.Duration("budget", budget), zap.Duration("elapsed", elapsed))
		s.say("match.engine_move", map[string]any{"Opponent": opponent, "SAN": san}, opponent+" plays "+san)
		pos = next

		resigned, err := s.mirror(ctx, pos, mv)
		if err != nil {
			return finish(pos), err
		}
		if resigned {
			out.Result, out.Reason = Loss, FinishResignation
			break
		}
	}

	final := finish(pos)
	s.announce(final)
	s.logger.Info("match_end",
		zap.Stringer("result", final.Result),
		zap.Stringer("reason", final.Reason),
		zap.Int("plies", len(final.Moves)),
		zap.Int("physical_moves", final.Physical),
		zap.Duration("duration", final.Duration()),
	)
	return final, nil
}

// budget is min(ceiling, remaining/10) on the clock, the fixed budget otherwise.
func (s *Session) budget(clk *clock.Clock, side rules.Side) time.Duration {
	if !clk.Enabled() {
		return s.fixedBudget
	}
	b := clk.Remaining(side) / 10
	if b > s.ceiling {
		b = s.ceiling
	}
	return b
}

// mirror pushes the engine's move to the board and waits for the user to
// copy it. End of input at that prompt counts as resignation.
func (s *Session) mirror(ctx context.Context, pos *rules.Position, mv rules.Move) (bool, error) {
	if !s.boardConnected() {
		return false, nil
	}
	if !s.board.SyncPosition(ctx, pos) {
		s.say("match.board_sync_failed", nil, "Could not sync the physical board.")
		return false, nil
	}
	prompt := s.catalog.RenderOr("match.mirror", map[string]any{"Move": mv.String()}, "Make "+mv.String()+" on your board and press Enter.")
	if err := s.console.WaitAck(ctx, prompt+" "); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, fmt.Errorf("wait for board update: %w", err)
	}
	if n := s.board.Flush(); n > 0 {
		s.logger.Debug("board_echo_flushed", zap.Int("events", n))
	}
	return false, nil
}

func (s *Session) boardConnected() bool {
	return s.board != nil && s.board.Connected()
}

func (s *Session) announce(o Outcome) {
	data := map[string]any{"Opponent": o.Opponent, "Reason": o.Reason.String()}
	switch {
	case o.Result == Win && o.Reason == FinishTimeForfeit:
		s.say("result.forfeit_win", data, "You win on time.")
	case o.Result == Win:
		s.say("result.win", data, "You win.")
	case o.Reason == FinishTimeForfeit:
		s.say("result.forfeit_loss", data, "You lost on time.")
	case o.Reason == FinishResignation:
		s.say("result.resigned", data, "You resigned.")
	case o.Result == Loss:
		s.say("result.loss", data, "You lost.")
	default:
		s.say("result.draw", data, "Draw.")
	}
}

func (s *Session) say(key string, data map[string]any, fallback string) {
	text := s.catalog.RenderOr(key, data, fallback)
	if text == "" {
		return
	}
	s.console.Println(text)
}
