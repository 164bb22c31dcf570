package chess

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/grand-chess-realms/internal/chess/uci"
	"github.com/park285/grand-chess-realms/internal/rules"
)

const (
	defaultMoveCeiling  = 30 * time.Second
	defaultMinBudget    = 50 * time.Millisecond
	defaultAnalyzeDepth = 15
	searchGrace         = 2 * time.Second
)

var (
	ErrNoLegalMoves      = errors.New("no legal moves")
	ErrEngineUnavailable = errors.New("engine unavailable")
)

// Searcher is the subset of *uci.Session the engine drives.
type Searcher interface {
	SetSkillLevel(ctx context.Context, level int) error
	NewGame(ctx context.Context) error
	Search(ctx context.Context, req uci.SearchRequest) (uci.SearchResponse, error)
	Close() error
}

// SearcherFactory starts a searcher already configured for level.
type SearcherFactory func(ctx context.Context, level StrengthLevel) (Searcher, error)

// UCIFactory launches binaryPath as a UCI engine for every (re)start.
func UCIFactory(binaryPath string, opt uci.Options, logger *zap.Logger) SearcherFactory {
	return func(ctx context.Context, level StrengthLevel) (Searcher, error) {
		path, err := exec.LookPath(binaryPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		o := opt
		o.SkillLevel = int(level)
		s, err := uci.NewSession(ctx, path, o, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		return s, nil
	}
}

type MoveLister interface {
	LegalMoves(pos *rules.Position) []rules.Move
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMoveCeiling caps every RequestMove budget.
func WithMoveCeiling(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.ceiling = d
		}
	}
}

func WithRandomSeed(seed int64) Option {
	return func(e *Engine) { e.rand = rand.New(rand.NewSource(seed)) }
}

// Engine picks opponent moves. Without a live searcher it plays a uniformly
// random legal move, so RequestMove never fails on engine trouble.
type Engine struct {
	factory SearcherFactory
	moves   MoveLister
	logger  *zap.Logger
	ceiling time.Duration

	mu       sync.Mutex
	searcher Searcher
	strength StrengthLevel
	closed   bool

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewEngine does not start a process; the first ConfigureStrength does.
// A nil factory leaves the engine permanently in fallback mode.
func NewEngine(factory SearcherFactory, moves MoveLister, opts ...Option) *Engine {
	e := &Engine{
		factory: factory,
		moves:   moves,
		logger:  zap.NewNop(),
		ceiling: defaultMoveCeiling,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ConfigureStrength maps elo to a level and applies it, starting or restarting
// the searcher when none is live. Failure only leaves the engine in fallback mode.
func (e *Engine) ConfigureStrength(ctx context.Context, elo int) StrengthLevel {
	level := EloToStrength(elo)

	e.mu.Lock()
	e.strength = level
	s := e.searcher
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return level
	}

	if s == nil {
		if e.factory == nil {
			return level
		}
		started, err := e.factory(ctx, level)
		if err != nil {
			e.logger.Warn("engine_unavailable", zap.Int("elo", elo), zap.Error(err))
			return level
		}
		e.install(started)
		e.logger.Info("engine_started", zap.Int("elo", elo), zap.Int("strength", int(level)))
		return level
	}

	if err := s.SetSkillLevel(ctx, int(level)); err != nil {
		e.logger.Warn("engine_configure_failed", zap.Int("strength", int(level)), zap.Error(err))
		e.discard(s)
		return level
	}
	if err := s.NewGame(ctx); err != nil {
		e.logger.Warn("engine_newgame_failed", zap.Error(err))
		e.discard(s)
	}
	return level
}

func (e *Engine) Strength() StrengthLevel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strength
}

// Available reports whether a live searcher is attached.
func (e *Engine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.searcher != nil
}

// RequestMove returns a legal move for pos within budget, clamped to the
// ceiling. The only error is ErrNoLegalMoves.
func (e *Engine) RequestMove(ctx context.Context, pos *rules.Position, budget time.Duration) (rules.Move, error) {
	legal := e.moves.LegalMoves(pos)
	if len(legal) == 0 {
		return rules.Move{}, ErrNoLegalMoves
	}
	budget = e.clampBudget(budget)

	s := e.current()
	if s == nil {
		return e.randomMove(legal), nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, budget+searchGrace)
	resp, err := s.Search(searchCtx, uci.SearchRequest{
		FEN:    pos.FEN(),
		Limits: uci.Limits{MoveTimeMillis: int(budget / time.Millisecond)},
	})
	cancel()
	if err != nil {
		// the stream is out of sync after a failed search
		e.logger.Warn("engine_search_failed", zap.Duration("budget", budget), zap.Error(err))
		e.discard(s)
		return e.randomMove(legal), nil
	}

	mv, err := rules.ParseMove(resp.BestMove)
	if err != nil || !containsMove(legal, mv) {
		e.logger.Warn("engine_illegal_bestmove", zap.String("bestmove", resp.BestMove), zap.String("fen", pos.FEN()))
		return e.randomMove(legal), nil
	}
	return mv, nil
}

func (e *Engine) clampBudget(budget time.Duration) time.Duration {
	if budget > e.ceiling {
		budget = e.ceiling
	}
	if budget < defaultMinBudget {
		budget = defaultMinBudget
	}
	return budget
}

// Evaluation is from White's point of view. Mate is non-zero for forced mates.
type Evaluation struct {
	CP   int
	Mate int
}

func (ev Evaluation) String() string {
	switch {
	case ev.Mate > 0:
		return fmt.Sprintf("M%d", ev.Mate)
	case ev.Mate < 0:
		return fmt.Sprintf("-M%d", -ev.Mate)
	default:
		return fmt.Sprintf("%+.2f", float64(ev.CP)/100)
	}
}

// Analyze searches pos to depth and returns the evaluation and best line.
// Any failure yields (nil, nil).
func (e *Engine) Analyze(ctx context.Context, pos *rules.Position, depth int) (*Evaluation, []rules.Move) {
	s := e.current()
	if s == nil {
		return nil, nil
	}
	if depth <= 0 {
		depth = defaultAnalyzeDepth
	}
	resp, err := s.Search(ctx, uci.SearchRequest{FEN: pos.FEN(), Limits: uci.Limits{Depth: depth}})
	if err != nil {
		e.logger.Warn("engine_analyze_failed", zap.Int("depth", depth), zap.Error(err))
		e.discard(s)
		return nil, nil
	}
	if len(resp.Candidates) == 0 {
		return nil, nil
	}
	top := resp.Candidates[0]
	ev := &Evaluation{CP: top.EvalCP, Mate: top.Mate}
	if pos.Turn() == rules.Black {
		ev.CP, ev.Mate = -ev.CP, -ev.Mate
	}
	line := make([]rules.Move, 0, len(top.Principal))
	for _, text := range top.Principal {
		mv, err := rules.ParseMove(text)
		if err != nil {
			break
		}
		line = append(line, mv)
	}
	return ev, line
}

func (e *Engine) current() Searcher {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.searcher
}

func (e *Engine) install(s Searcher) {
	e.mu.Lock()
	if e.closed || e.searcher != nil {
		e.mu.Unlock()
		_ = s.Close()
		return
	}
	e.searcher = s
	e.mu.Unlock()
}

func (e *Engine) discard(s Searcher) {
	e.mu.Lock()
	if e.searcher == s {
		e.searcher = nil
	}
	e.mu.Unlock()
	if err := s.Close(); err != nil {
		e.logger.Debug("engine_close", zap.Error(err))
	}
}

func (e *Engine) randomMove(legal []rules.Move) rules.Move {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return legal[e.rand.Intn(len(legal))]
}

func (e *Engine) SetRandomSeed(seed int64) {
	e.randMu.Lock()
	e.rand = rand.New(rand.NewSource(seed))
	e.randMu.Unlock()
}

// Close stops the searcher. Later calls run in fallback mode.
func (e *Engine) Close() error {
	e.mu.Lock()
	s := e.searcher
	e.searcher = nil
	e.closed = true
	e.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}

func containsMove(moves []rules.Move, mv rules.Move) bool {
	for _, m := range moves {
		if m == mv {
			return true
		}
	}
	return false
}
