package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/grand-chess-realms/internal/match"
)

const playerName = "Player"

func pgnResult(result string) string {
	switch result {
	case match.Win.String():
		return "1-0"
	case match.Loss.String():
		return "0-1"
	case match.Draw.String():
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders rec with the seven-tag roster. The human is always White.
func BuildPGN(rec *MatchRecord) string {
	if rec == nil {
		return ""
	}
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	result := pgnResult(rec.Result)

	var b strings.Builder
	b.WriteString("[Event \"Grand Chess Realms\"]\n")
	b.WriteString("[Site \"Local\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	b.WriteString("[Round \"-\"]\n")
	fmt.Fprintf(&b, "[White \"%s\"]\n", playerName)
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(rec.Opponent))
	fmt.Fprintf(&b, "[Result \"%s\"]\n", result)
	if rec.Elo > 0 {
		fmt.Fprintf(&b, "[BlackElo \"%d\"]\n", rec.Elo)
	}
	if tc := strings.TrimSpace(rec.TimeControl); tc != "" && tc != "none" {
		fmt.Fprintf(&b, "[TimeControl \"%s\"]\n", sanitizePGN(pgnTimeControl(tc)))
	}
	if reason := strings.TrimSpace(rec.Reason); reason != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(reason))
	}
	b.WriteString("\n")

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(rec.MovesSAN[i]))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

// pgnTimeControl converts "90/30" (minutes / seconds) into "5400+30".
func pgnTimeControl(tc string) string {
	var mins, inc int
	if n, _ := fmt.Sscanf(tc, "%d/%d", &mins, &inc); n == 2 {
		return fmt.Sprintf("%d+%d", mins*60, inc)
	}
	return tc
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
