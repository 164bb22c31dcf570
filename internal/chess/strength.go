package chess

// StrengthLevel is the engine's "Skill Level" option, 0..20.
type StrengthLevel int

const (
	MinStrength StrengthLevel = 0
	MaxStrength StrengthLevel = 20
)

// strengthSteps must stay in ascending order; ratings at or above the last
// bound map to MaxStrength.
var strengthSteps = []struct {
	below int
	level StrengthLevel
}{
	{800, 0},
	{900, 1},
	{1000, 2},
	{1100, 3},
	{1200, 4},
	{1300, 5},
	{1400, 6},
	{1500, 8},
	{1600, 10},
	{1700, 12},
	{1800, 14},
	{1900, 16},
	{2000, 18},
}

// EloToStrength maps a rating onto the fixed step table.
func EloToStrength(elo int) StrengthLevel {
	for _, step := range strengthSteps {
		if elo < step.below {
			return step.level
		}
	}
	return MaxStrength
}
