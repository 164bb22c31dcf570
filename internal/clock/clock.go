package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/park285/grand-chess-realms/internal/rules"
)

var ErrInvalidTimeControl = errors.New("invalid time control")

// TimeControl is main time plus per-move increment. The zero value means untimed.
type TimeControl struct {
	Main      time.Duration
	Increment time.Duration
}

func (tc TimeControl) Enabled() bool { return tc.Main > 0 }

// String renders the "minutes/increment" form accepted by ParseTimeControl.
func (tc TimeControl) String() string {
	if !tc.Enabled() {
		return "none"
	}
	return fmt.Sprintf("%d/%d", int(tc.Main/time.Minute), int(tc.Increment/time.Second))
}

// Describe is the human-readable form, e.g. "90 min + 30 s".
func (tc TimeControl) Describe() string {
	if !tc.Enabled() {
		return "untimed"
	}
	if tc.Increment <= 0 {
		return fmt.Sprintf("%d min", int(tc.Main/time.Minute))
	}
	return fmt.Sprintf("%d min + %d s", int(tc.Main/time.Minute), int(tc.Increment/time.Second))
}

// ParseTimeControl reads "minutes/increment" ("90/30"), bare minutes ("15"),
// or one of "", "none", "off" for an untimed game.
func ParseTimeControl(s string) (TimeControl, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none", "off":
		return TimeControl{}, nil
	}
	mainPart, incPart, hasInc := strings.Cut(s, "/")
	minutes, err := strconv.Atoi(strings.TrimSpace(mainPart))
	if err != nil || minutes <= 0 {
		return TimeControl{}, fmt.Errorf("%w: %q", ErrInvalidTimeControl, s)
	}
	tc := TimeControl{Main: time.Duration(minutes) * time.Minute}
	if hasInc {
		inc, err := strconv.Atoi(strings.TrimSpace(incPart))
		if err != nil || inc < 0 {
			return TimeControl{}, fmt.Errorf("%w: %q", ErrInvalidTimeControl, s)
		}
		tc.Increment = time.Duration(inc) * time.Second
	}
	return tc, nil
}

type Status int

const (
	Ok Status = iota
	Forfeited
)

func (s Status) String() string {
	if s == Forfeited {
		return "forfeited"
	}
	return "ok"
}

// Clock tracks both sides' remaining time. It is not safe for concurrent use;
// the match loop owns it.
type Clock struct {
	enabled   bool
	increment time.Duration
	remaining [2]time.Duration
	flagged   [2]bool
}

func New(tc TimeControl) *Clock {
	c := &Clock{enabled: tc.Enabled(), increment: tc.Increment}
	if c.enabled {
		c.remaining = [2]time.Duration{tc.Main, tc.Main}
	}
	return c
}

func (c *Clock) Enabled() bool { return c.enabled }

// Tick charges elapsed to side. Forfeiture is checked before the increment
// is credited, and a forfeited side stays forfeited.
func (c *Clock) Tick(side rules.Side, elapsed time.Duration) Status {
	if !c.enabled {
		return Ok
	}
	i := index(side)
	if c.flagged[i] {
		return Forfeited
	}
	c.remaining[i] -= elapsed
	if c.remaining[i] <= 0 {
		c.flagged[i] = true
		return Forfeited
	}
	c.remaining[i] += c.increment
	return Ok
}

func (c *Clock) Remaining(side rules.Side) time.Duration {
	return c.remaining[index(side)]
}

func index(side rules.Side) int {
	if side == rules.Black {
		return 1
	}
	return 0
}

// Format renders d as mm:ss, clamping negatives to 00:00.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
