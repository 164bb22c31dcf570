package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const helperEnv = "GO_WANT_UCI_HELPER"

// TestHelperUCIEngine is not a real test: the session tests re-exec the test
// binary with helperEnv set so it behaves as a minimal UCI engine.
func TestHelperUCIEngine(t *testing.T) {
	if os.Getenv(helperEnv) == "" {
		return
	}
	mode := os.Getenv("FAKE_UCI_MODE")
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "uci":
			fmt.Println("id name fakefish")
			fmt.Println("uciok")
		case line == "isready":
			fmt.Println("readyok")
		case strings.HasPrefix(line, "go"):
			switch mode {
			case "hang":
				continue
			case "die":
				os.Exit(3)
			}
			fmt.Println("info depth 8 score cp 12 pv d7d5")
			fmt.Println("info depth 10 score cp -35 pv e7e5 g1f3")
			fmt.Println("bestmove e7e5 ponder g1f3")
		case line == "quit":
			os.Exit(0)
		}
	}
	os.Exit(0)
}

func startHelper(t *testing.T, mode string) *Session {
	t.Helper()
	t.Setenv(helperEnv, "1")
	t.Setenv("FAKE_UCI_MODE", mode)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := NewSession(ctx, os.Args[0], Options{HashMB: 16, Args: []string{"-test.run=^TestHelperUCIEngine$"}}, nil)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionSearch(t *testing.T) {
	s := startHelper(t, "")
	ctx := context.Background()
	if err := s.SetSkillLevel(ctx, 8); err != nil {
		t.Fatalf("skill level: %v", err)
	}
	resp, err := s.Search(ctx, SearchRequest{FEN: "startpos", Moves: []string{"e2e4"}, Limits: Limits{MoveTimeMillis: 50}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := SearchResponse{
		BestMove:   "e7e5",
		Candidates: []Candidate{{Move: "e7e5", EvalCP: -35, Principal: []string{"e7e5", "g1f3"}}},
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}
	if err := s.NewGame(ctx); err != nil {
		t.Fatalf("new game: %v", err)
	}
}

func TestSessionSearchTimeout(t *testing.T) {
	s := startHelper(t, "hang")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := s.Search(ctx, SearchRequest{Limits: Limits{MoveTimeMillis: 10_000}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSessionEngineDies(t *testing.T) {
	s := startHelper(t, "die")
	_, err := s.Search(context.Background(), SearchRequest{Limits: Limits{MoveTimeMillis: 50}})
	if err == nil {
		t.Fatalf("expected error when engine exits mid-search")
	}
}

func TestNewSessionMissingBinary(t *testing.T) {
	_, err := NewSession(context.Background(), "/nonexistent/stockfish", Options{HashMB: 16}, nil)
	if err == nil {
		t.Fatalf("expected start error")
	}
}

func TestValidateOptions(t *testing.T) {
	if err := validateOptions(Options{SkillLevel: 21, HashMB: 16}); err == nil {
		t.Fatalf("skill 21 accepted")
	}
	if err := validateOptions(Options{HashMB: 0}); err == nil {
		t.Fatalf("zero hash accepted")
	}
}

func TestParseInfoMate(t *testing.T) {
	mv, cand, ok := parseInfo("info depth 20 multipv 2 score mate -3 nodes 100 pv h7h6 d1h5")
	if !ok || mv != 2 {
		t.Fatalf("parseInfo ok=%v multipv=%d", ok, mv)
	}
	want := Candidate{Move: "h7h6", EvalCP: -30000, Mate: -3, Principal: []string{"h7h6", "d1h5"}}
	if diff := cmp.Diff(want, cand); diff != "" {
		t.Fatalf("candidate mismatch (-want +got):\n%s", diff)
	}
	if _, _, ok := parseInfo("info depth 1 currmove e2e4"); ok {
		t.Fatalf("info without pv should be skipped")
	}
}

func TestGoTokensAndTimeout(t *testing.T) {
	tokens, err := buildGoTokens(Limits{MoveTimeMillis: 1500})
	if err != nil || strings.Join(tokens, " ") != "go movetime 1500" {
		t.Fatalf("tokens = %v, %v", tokens, err)
	}
	if _, err := buildGoTokens(Limits{}); err == nil {
		t.Fatalf("empty limits accepted")
	}
	if got := computeSearchTimeout(Limits{MoveTimeMillis: 1000}); got != 3*time.Second {
		t.Fatalf("timeout = %v", got)
	}
	if got := buildPositionCommand("", []string{"e2e4", "e7e5"}); got != "position startpos moves e2e4 e7e5\n" {
		t.Fatalf("position = %q", got)
	}
}
