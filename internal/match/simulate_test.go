package match

import (
	"math"
	"math/rand"
	"testing"
)

type fixedRoll float64

func (f fixedRoll) Float64() float64 { return float64(f) }

func TestSimulateThresholds(t *testing.T) {
	tests := []struct {
		name         string
		opp, player  int
		roll         float64
		want         Result
		wantExpected float64
	}{
		{name: "even win", opp: 1400, player: 1400, roll: 0.3, want: Win, wantExpected: 0.5},
		{name: "even draw", opp: 1400, player: 1400, roll: 0.6, want: Draw, wantExpected: 0.5},
		{name: "even draw ceiling is exclusive", opp: 1400, player: 1400, roll: 0.7, want: Loss, wantExpected: 0.5},
		{name: "underdog loss", opp: 1800, player: 1400, roll: 0.5, want: Loss, wantExpected: 1 / (1 + math.Pow(10, 1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := Simulate(fixedRoll(tt.roll), tt.opp, tt.player)
			if sim.Result != tt.want {
				t.Fatalf("result = %v, want %v (%+v)", sim.Result, tt.want, sim)
			}
			if math.Abs(sim.Expected-tt.wantExpected) > 1e-9 {
				t.Fatalf("expected = %v, want %v", sim.Expected, tt.wantExpected)
			}
		})
	}
}

func TestSimulateClampsDrawCeiling(t *testing.T) {
	sim := Simulate(fixedRoll(0.99999), 800, 2000)
	if sim.DrawCeiling != 1 {
		t.Fatalf("ceiling = %v", sim.DrawCeiling)
	}
	if sim.Result != Draw {
		t.Fatalf("result = %v", sim.Result)
	}
}

func TestSimulateDeterministic(t *testing.T) {
	a := rand.New(rand.NewSource(42))
	b := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		x, y := Simulate(a, 1400, 1400), Simulate(b, 1400, 1400)
		if x != y {
			t.Fatalf("run %d diverged: %+v vs %+v", i, x, y)
		}
	}
}

func TestEstimatePlayerRating(t *testing.T) {
	for wins, want := range map[int]int{0: 1200, 1: 1250, 4: 1400, -3: 1200} {
		if got := EstimatePlayerRating(wins); got != want {
			t.Fatalf("EstimatePlayerRating(%d) = %d, want %d", wins, got, want)
		}
	}
}
