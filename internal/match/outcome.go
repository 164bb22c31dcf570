package match

import (
	"time"

	"github.com/park285/grand-chess-realms/internal/chess"
	"github.com/park285/grand-chess-realms/internal/clock"
	"github.com/park285/grand-chess-realms/internal/rules"
)

// Result is always from the human's point of view.
type Result int

const (
	Win Result = iota + 1
	Loss
	Draw
)

func (r Result) String() string {
	switch r {
	case Win:
		return "win"
	case Loss:
		return "loss"
	case Draw:
		return "draw"
	default:
		return "unknown"
	}
}

type FinishReason int

const (
	FinishCheckmate FinishReason = iota + 1
	FinishStalemate
	FinishInsufficientMaterial
	FinishFiftyMoveRule
	FinishRepetition
	FinishResignation
	FinishTimeForfeit
)

func (r FinishReason) String() string {
	switch r {
	case FinishCheckmate:
		return "checkmate"
	case FinishStalemate:
		return "stalemate"
	case FinishInsufficientMaterial:
		return "insufficient material"
	case FinishFiftyMoveRule:
		return "fifty-move rule"
	case FinishRepetition:
		return "repetition"
	case FinishResignation:
		return "resignation"
	case FinishTimeForfeit:
		return "time forfeit"
	default:
		return "unknown"
	}
}

func finishFromRules(r rules.Reason) FinishReason {
	switch r {
	case rules.ReasonCheckmate:
		return FinishCheckmate
	case rules.ReasonStalemate:
		return FinishStalemate
	case rules.ReasonInsufficientMaterial:
		return FinishInsufficientMaterial
	case rules.ReasonFiftyMoveRule:
		return FinishFiftyMoveRule
	case rules.ReasonRepetition:
		return FinishRepetition
	default:
		return 0
	}
}

// resultFor maps a terminal position to a result. toMove is the side that
// has no move left.
func resultFor(r rules.Reason, toMove, human rules.Side) Result {
	if r == rules.ReasonCheckmate {
		if toMove == human {
			return Loss
		}
		return Win
	}
	return Draw
}

type Outcome struct {
	Opponent    string
	Elo         int
	Strength    chess.StrengthLevel
	TimeControl clock.TimeControl

	Result Result
	Reason FinishReason

	Moves    []rules.Move
	SAN      []string
	FinalFEN string
	PGN      string
	Physical int

	HumanRemaining  time.Duration
	EngineRemaining time.Duration
	StartedAt       time.Time
	EndedAt         time.Time
}

func (o Outcome) Duration() time.Duration { return o.EndedAt.Sub(o.StartedAt) }
