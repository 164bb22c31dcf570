// Package matchdto holds the JSON shapes shared with webhook consumers.
package matchdto

import "time"

type MatchResult struct {
	ID            string    `json:"id"`
	Opponent      string    `json:"opponent"`
	Elo           int       `json:"elo"`
	Result        string    `json:"result"`
	Reason        string    `json:"reason"`
	TimeControl   string    `json:"time_control"`
	Plies         int       `json:"plies"`
	PhysicalMoves int       `json:"physical_moves"`
	Simulated     bool      `json:"simulated"`
	PGN           string    `json:"pgn,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	DurationMS    int64     `json:"duration_ms"`
	// Standing is the player's record after this match, when known.
	Standing      *Standing `json:"standing,omitempty"`
}

type BoardStatus struct {
	State         string `json:"state"`
	Connected     bool   `json:"connected"`
	SDKAvailable  bool   `json:"sdk_available"`
	LastError     string `json:"last_error,omitempty"`
	Attempts      int    `json:"connection_attempts"`
	MaxAttempts   int    `json:"max_attempts"`
	AutoReconnect bool   `json:"auto_reconnect"`
	Device        string `json:"device,omitempty"`
}

type Standing struct {
	Played int `json:"played"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}
