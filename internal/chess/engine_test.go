package chess

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/park285/grand-chess-realms/internal/chess/uci"
	"github.com/park285/grand-chess-realms/internal/rules"
)

type fakeSearcher struct {
	mu        sync.Mutex
	bestMove  string
	searchErr error
	skillErr  error
	skills    []int
	requests  []uci.SearchRequest
	cands     []uci.Candidate
	closed    int
}

func (f *fakeSearcher) SetSkillLevel(_ context.Context, level int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skills = append(f.skills, level)
	return f.skillErr
}

func (f *fakeSearcher) NewGame(context.Context) error { return nil }

func (f *fakeSearcher) Search(_ context.Context, req uci.SearchRequest) (uci.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.searchErr != nil {
		return uci.SearchResponse{}, f.searchErr
	}
	return uci.SearchResponse{BestMove: f.bestMove, Candidates: f.cands}, nil
}

func (f *fakeSearcher) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func factoryFor(s *fakeSearcher, starts *int) SearcherFactory {
	return func(context.Context, StrengthLevel) (Searcher, error) {
		*starts++
		return s, nil
	}
}

func TestEloToStrengthTable(t *testing.T) {
	cases := map[int]StrengthLevel{
		-100: 0, 0: 0, 799: 0, 800: 1, 899: 1, 900: 2, 1099: 3, 1100: 4,
		1250: 5, 1399: 6, 1400: 8, 1500: 10, 1650: 12, 1799: 14, 1800: 16,
		1900: 18, 1999: 18, 2000: 20, 2850: 20,
	}
	for elo, want := range cases {
		if got := EloToStrength(elo); got != want {
			t.Fatalf("EloToStrength(%d) = %d, want %d", elo, got, want)
		}
	}
}

func TestEloToStrengthMonotonic(t *testing.T) {
	prev := EloToStrength(-1000)
	for elo := -999; elo <= 3500; elo++ {
		cur := EloToStrength(elo)
		if cur < prev {
			t.Fatalf("not monotonic at %d: %d < %d", elo, cur, prev)
		}
		if cur < MinStrength || cur > MaxStrength {
			t.Fatalf("level %d out of range at %d", cur, elo)
		}
		prev = cur
	}
}

func TestRequestMoveUsesSearcher(t *testing.T) {
	fake := &fakeSearcher{bestMove: "e7e5"}
	starts := 0
	e := NewEngine(factoryFor(fake, &starts), rules.NewOracle())
	if lvl := e.ConfigureStrength(context.Background(), 1450); lvl != 8 {
		t.Fatalf("strength = %d", lvl)
	}
	pos, err := rules.NewOracle().Apply(rules.NewPosition(), rules.Move{From: 12, To: 28})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	mv, err := e.RequestMove(context.Background(), pos, 2*time.Minute)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if mv.String() != "e7e5" {
		t.Fatalf("move = %s", mv)
	}
	if got := fake.requests[0].Limits.MoveTimeMillis; got != 30_000 {
		t.Fatalf("budget not clamped to ceiling: %dms", got)
	}
	if starts != 1 {
		t.Fatalf("starts = %d", starts)
	}
}

func TestRequestMoveFallbackOnSearchError(t *testing.T) {
	fake := &fakeSearcher{searchErr: errors.New("broken pipe")}
	starts := 0
	o := rules.NewOracle()
	e := NewEngine(factoryFor(fake, &starts), o, WithRandomSeed(1))
	e.ConfigureStrength(context.Background(), 1200)

	pos := rules.NewPosition()
	mv, err := e.RequestMove(context.Background(), pos, time.Second)
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if !o.IsLegal(pos, mv) {
		t.Fatalf("fallback move %s not legal", mv)
	}
	if e.Available() || fake.closed != 1 {
		t.Fatalf("failed searcher should be discarded (available=%v closed=%d)", e.Available(), fake.closed)
	}

	// next match restarts the engine
	fake.searchErr = nil
	fake.bestMove = "d2d4"
	e.ConfigureStrength(context.Background(), 1200)
	if starts != 2 || !e.Available() {
		t.Fatalf("restart expected, starts=%d", starts)
	}
}

func TestRequestMoveIllegalBestMove(t *testing.T) {
	fake := &fakeSearcher{bestMove: "e2e5"}
	starts := 0
	o := rules.NewOracle()
	e := NewEngine(factoryFor(fake, &starts), o)
	e.ConfigureStrength(context.Background(), 1000)
	mv, err := e.RequestMove(context.Background(), rules.NewPosition(), time.Second)
	if err != nil || !o.IsLegal(rules.NewPosition(), mv) {
		t.Fatalf("expected legal fallback, got %s, %v", mv, err)
	}
	if !e.Available() {
		t.Fatalf("illegal bestmove should not discard a live engine")
	}
}

func TestRequestMoveUnavailableIsDeterministic(t *testing.T) {
	factory := func(context.Context, StrengthLevel) (Searcher, error) { return nil, ErrEngineUnavailable }
	o := rules.NewOracle()
	pick := func() []string {
		e := NewEngine(factory, o, WithRandomSeed(42))
		e.ConfigureStrength(context.Background(), 1500)
		var out []string
		pos := rules.NewPosition()
		for i := 0; i < 6; i++ {
			mv, err := e.RequestMove(context.Background(), pos, time.Second)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			out = append(out, mv.String())
			next, err := o.Apply(pos, mv)
			if err != nil {
				t.Fatalf("apply fallback %s: %v", mv, err)
			}
			pos = next
		}
		return out
	}
	if diff := cmp.Diff(pick(), pick()); diff != "" {
		t.Fatalf("seeded fallback not reproducible:\n%s", diff)
	}
}

func TestRequestMoveNoLegalMoves(t *testing.T) {
	o := rules.NewOracle()
	pos, err := rules.PositionFromFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	e := NewEngine(nil, o)
	if _, err := e.RequestMove(context.Background(), pos, time.Second); !errors.Is(err, ErrNoLegalMoves) {
		t.Fatalf("expected ErrNoLegalMoves, got %v", err)
	}
}

func TestConfigureStrengthReappliesLevel(t *testing.T) {
	fake := &fakeSearcher{}
	starts := 0
	e := NewEngine(factoryFor(fake, &starts), rules.NewOracle())
	e.ConfigureStrength(context.Background(), 700)
	e.ConfigureStrength(context.Background(), 1950)
	if diff := cmp.Diff([]int{18}, fake.skills); diff != "" {
		t.Fatalf("skill levels (-want +got):\n%s", diff)
	}
	if e.Strength() != 18 || starts != 1 {
		t.Fatalf("strength=%d starts=%d", e.Strength(), starts)
	}
}

func TestAnalyze(t *testing.T) {
	fake := &fakeSearcher{cands: []uci.Candidate{{Move: "e7e5", EvalCP: 40, Principal: []string{"e7e5", "g1f3", "zz"}}}}
	starts := 0
	o := rules.NewOracle()
	e := NewEngine(factoryFor(fake, &starts), o)
	e.ConfigureStrength(context.Background(), 1500)

	pos, _ := o.Apply(rules.NewPosition(), rules.Move{From: 12, To: 28})
	ev, line := e.Analyze(context.Background(), pos, 0)
	if ev == nil || ev.CP != -40 || ev.String() != "-0.40" {
		t.Fatalf("eval = %+v", ev)
	}
	if len(line) != 2 || line[1].String() != "g1f3" {
		t.Fatalf("line = %v", line)
	}
	if fake.requests[0].Limits.Depth != 15 {
		t.Fatalf("default depth = %d", fake.requests[0].Limits.Depth)
	}

	fake.searchErr = errors.New("dead")
	if ev, line := e.Analyze(context.Background(), pos, 10); ev != nil || line != nil {
		t.Fatalf("failure must return nil, nil")
	}
	if ev, line := NewEngine(nil, o).Analyze(context.Background(), pos, 10); ev != nil || line != nil {
		t.Fatalf("unavailable must return nil, nil")
	}
}

func TestEvaluationString(t *testing.T) {
	cases := map[Evaluation]string{
		{CP: 35}:  "+0.35",
		{CP: -120}: "-1.20",
		{Mate: 3}:  "M3",
		{Mate: -2}: "-M2",
	}
	for ev, want := range cases {
		if got := ev.String(); got != want {
			t.Fatalf("%+v.String() = %q, want %q", ev, got, want)
		}
	}
}

func TestCloseStopsSearcher(t *testing.T) {
	fake := &fakeSearcher{bestMove: "e2e4"}
	starts := 0
	e := NewEngine(factoryFor(fake, &starts), rules.NewOracle())
	e.ConfigureStrength(context.Background(), 1500)
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if fake.closed != 1 || e.Available() {
		t.Fatalf("close did not stop searcher")
	}
	e.ConfigureStrength(context.Background(), 1500)
	if starts != 1 {
		t.Fatalf("closed engine restarted")
	}
}
