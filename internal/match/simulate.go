package match

import "math"

// DrawBand is the probability mass placed directly above the expected score.
const DrawBand = 0.2

// Float64Source yields values in [0, 1). *rand.Rand satisfies it.
type Float64Source interface {
	Float64() float64
}

type Simulation struct {
	Result      Result
	Expected    float64
	DrawCeiling float64
	Roll        float64
}

// ExpectedScore is the logistic Elo expectation for the player.
func ExpectedScore(opponentRating, playerRating int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponentRating-playerRating)/400))
}

// Simulate decides a match from ratings alone. The draw ceiling is clamped to
// 1, so for lopsided pairings the draw band is truncated.
func Simulate(src Float64Source, opponentRating, playerRating int) Simulation {
	expected := ExpectedScore(opponentRating, playerRating)
	ceiling := math.Min(expected+DrawBand, 1)
	roll := src.Float64()

	sim := Simulation{Expected: expected, DrawCeiling: ceiling, Roll: roll}
	switch {
	case roll < expected:
		sim.Result = Win
	case roll < ceiling:
		sim.Result = Draw
	default:
		sim.Result = Loss
	}
	return sim
}

// EstimatePlayerRating grows with the number of matches already won.
func EstimatePlayerRating(wins int) int {
	if wins < 0 {
		wins = 0
	}
	return 1200 + 50*wins
}
