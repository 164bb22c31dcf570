package board

import (
	"context"
)

type EventType string

const (
	EventMove           EventType = "move"
	EventBoardChanged   EventType = "board_changed"
	EventConnectionLost EventType = "connection_lost"
)

type DevicePiece struct {
	Type  string `json:"type"`
	Color string `json:"color"`
}

// DeviceMove is a move as the board reports it, in device square notation.
type DeviceMove struct {
	From      string       `json:"from"`
	To        string       `json:"to"`
	Piece     *DevicePiece `json:"piece,omitempty"`
	Promotion string       `json:"promotion,omitempty"`
}

// Snapshot is the board's own view of its squares.
type Snapshot struct {
	FEN     string `json:"fen"`
	Battery int    `json:"battery,omitempty"`
}

type Event struct {
	Type   EventType   `json:"event"`
	Move   *DeviceMove `json:"move,omitempty"`
	State  *Snapshot   `json:"state,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// Device is the driver contract. Implementations must honor ctx on every
// blocking call; the handler passed to Subscribe may be invoked from any goroutine.
type Device interface {
	Scan(ctx context.Context) ([]string, error)
	Connect(ctx context.Context, name string) error
	State(ctx context.Context) (Snapshot, error)
	SetPosition(ctx context.Context, fen string) error
	Subscribe(handler func(Event))
	Disconnect() error
}

// DeviceFactory returns a fresh driver for each connection attempt.
type DeviceFactory func() Device
