// Package record persists finished matches.
package record

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/park285/grand-chess-realms/internal/match"
)

var (
	ErrNotFound        = errors.New("match record not found")
	ErrDuplicateRecord = errors.New("match record already exists")
)

type MatchRecord struct {
	ID            string        `json:"id"`
	Opponent      string        `json:"opponent"`
	Elo           int           `json:"elo"`
	Strength      int           `json:"strength"`
	TimeControl   string        `json:"time_control"`
	Result        string        `json:"result"`
	Reason        string        `json:"reason"`
	MovesUCI      []string      `json:"moves_uci"`
	MovesSAN      []string      `json:"moves_san"`
	PGN           string        `json:"pgn"`
	FinalFEN      string        `json:"final_fen"`
	PhysicalMoves int           `json:"physical_moves"`
	Simulated     bool          `json:"simulated,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       time.Time     `json:"ended_at"`
	Duration      time.Duration `json:"duration"`
}

type Stats struct {
	Played int
	Wins   int
	Losses int
	Draws  int
}

func (s *Stats) add(result string) {
	s.Played++
	switch result {
	case match.Win.String():
		s.Wins++
	case match.Loss.String():
		s.Losses++
	case match.Draw.String():
		s.Draws++
	}
}

type Repository interface {
	// Save assigns an ID when rec.ID is empty.
	Save(ctx context.Context, rec *MatchRecord) error
	Get(ctx context.Context, id string) (*MatchRecord, error)
	// Recent returns records newest first.
	Recent(ctx context.Context, limit int) ([]*MatchRecord, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// FromOutcome converts a played match. The PGN carries full headers.
func FromOutcome(o match.Outcome) *MatchRecord {
	rec := &MatchRecord{
		ID:            uuid.NewString(),
		Opponent:      o.Opponent,
		Elo:           o.Elo,
		Strength:      int(o.Strength),
		TimeControl:   o.TimeControl.String(),
		Result:        o.Result.String(),
		Reason:        o.Reason.String(),
		MovesUCI:      make([]string, 0, len(o.Moves)),
		MovesSAN:      append([]string{}, o.SAN...),
		FinalFEN:      o.FinalFEN,
		PhysicalMoves: o.Physical,
		StartedAt:     o.StartedAt,
		EndedAt:       o.EndedAt,
		Duration:      o.Duration(),
	}
	for _, mv := range o.Moves {
		rec.MovesUCI = append(rec.MovesUCI, mv.String())
	}
	rec.PGN = BuildPGN(rec)
	return rec
}

// FromSimulation records a rating-decided match with no moves.
func FromSimulation(opponent string, elo int, sim match.Simulation, at time.Time) *MatchRecord {
	rec := &MatchRecord{
		ID:          uuid.NewString(),
		Opponent:    opponent,
		Elo:         elo,
		TimeControl: "none",
		Result:      sim.Result.String(),
		Reason:      "simulated",
		MovesUCI:    []string{},
		MovesSAN:    []string{},
		Simulated:   true,
		StartedAt:   at,
		EndedAt:     at,
	}
	rec.PGN = BuildPGN(rec)
	return rec
}

func ensureID(rec *MatchRecord) {
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}
