// Package wsdevice drives a physical board through a local daemon that
// speaks JSON over a WebSocket.
package wsdevice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/grand-chess-realms/internal/board"
)

var (
	ErrClosed = errors.New("board device closed")
	ErrRemote = errors.New("board daemon error")
)

const (
	opScan        = "scan"
	opConnect     = "connect"
	opState       = "state"
	opSetPosition = "set_position"
)

type request struct {
	ID     int64  `json:"id"`
	Op     string `json:"op"`
	Device string `json:"device,omitempty"`
	FEN    string `json:"fen,omitempty"`
}

// frame is either a response (ID set) or an unsolicited event (Event set).
type frame struct {
	ID      int64             `json:"id,omitempty"`
	OK      bool              `json:"ok,omitempty"`
	Error   string            `json:"error,omitempty"`
	Devices []string          `json:"devices,omitempty"`
	State   *board.Snapshot   `json:"state,omitempty"`
	Event   board.EventType   `json:"event,omitempty"`
	Move    *board.DeviceMove `json:"move,omitempty"`
	Reason  string            `json:"reason,omitempty"`
}

type Option func(*Device)

func WithDialTimeout(d time.Duration) Option {
	return func(dev *Device) { dev.dialTimeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(dev *Device) {
		if l != nil {
			dev.logger = l
		}
	}
}

// Device is single use: once the socket drops or Disconnect is called every
// call returns ErrClosed.
type Device struct {
	url         string
	dialTimeout time.Duration
	logger      *zap.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	cancel     context.CancelFunc
	readerDone chan struct{}
	nextID     int64
	pending    map[int64]chan frame
	handler    func(board.Event)
	closed     bool
}

func New(url string, opts ...Option) *Device {
	d := &Device{
		url:         normalizeURL(url),
		dialTimeout: 10 * time.Second,
		logger:      zap.NewNop(),
		pending:     make(map[int64]chan frame),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Factory returns a board.DeviceFactory producing a fresh Device per cycle.
func Factory(url string, opts ...Option) board.DeviceFactory {
	return func() board.Device { return New(url, opts...) }
}

func normalizeURL(u string) string {
	switch {
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	default:
		return u
	}
}

func (d *Device) Subscribe(h func(board.Event)) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

func (d *Device) Scan(ctx context.Context) ([]string, error) {
	f, err := d.call(ctx, request{Op: opScan})
	if err != nil {
		return nil, err
	}
	return f.Devices, nil
}

func (d *Device) Connect(ctx context.Context, name string) error {
	_, err := d.call(ctx, request{Op: opConnect, Device: name})
	return err
}

func (d *Device) State(ctx context.Context) (board.Snapshot, error) {
	f, err := d.call(ctx, request{Op: opState})
	if err != nil {
		return board.Snapshot{}, err
	}
	if f.State == nil {
		return board.Snapshot{}, fmt.Errorf("%w: state response without state", ErrRemote)
	}
	return *f.State, nil
}

func (d *Device) SetPosition(ctx context.Context, fen string) error {
	_, err := d.call(ctx, request{Op: opSetPosition, FEN: fen})
	return err
}

func (d *Device) Disconnect() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	conn, cancel, done := d.conn, d.cancel, d.readerDone
	d.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close(websocket.StatusNormalClosure, "disconnect")
	cancel()
	<-done
	if err != nil && websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		err = nil
	}
	return err
}

func (d *Device) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if d.conn != nil {
		return d.conn, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, d.dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, d.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.url, err)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	d.conn = conn
	d.cancel = rootCancel
	d.readerDone = make(chan struct{})
	go d.readLoop(rootCtx, conn, d.readerDone)
	return conn, nil
}

func (d *Device) call(ctx context.Context, req request) (frame, error) {
	conn, err := d.ensureConn(ctx)
	if err != nil {
		return frame{}, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return frame{}, ErrClosed
	}
	d.nextID++
	req.ID = d.nextID
	ch := make(chan frame, 1)
	d.pending[req.ID] = ch
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.pending, req.ID)
		d.mu.Unlock()
	}()

	if err := wsjson.Write(ctx, conn, req); err != nil {
		return frame{}, fmt.Errorf("%s: write: %w", req.Op, err)
	}

	select {
	case <-ctx.Done():
		return frame{}, fmt.Errorf("%s: %w", req.Op, ctx.Err())
	case f, ok := <-ch:
		if !ok {
			return frame{}, fmt.Errorf("%s: %w", req.Op, ErrClosed)
		}
		if !f.OK {
			msg := f.Error
			if msg == "" {
				msg = "request rejected"
			}
			return frame{}, fmt.Errorf("%w: %s: %s", ErrRemote, req.Op, msg)
		}
		return f, nil
	}
}

func (d *Device) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			d.fail(err)
			return
		}
		if f.Event != "" {
			d.dispatch(board.Event{Type: f.Event, Move: f.Move, State: f.State, Reason: f.Reason})
			continue
		}
		d.mu.Lock()
		ch, ok := d.pending[f.ID]
		d.mu.Unlock()
		if !ok {
			d.logger.Debug("board_ws_orphan_response", zap.Int64("id", f.ID))
			continue
		}
		select {
		case ch <- f:
		default:
		}
	}
}

// fail closes every pending call and, unless the drop was requested, tells
// the subscriber the link is gone.
func (d *Device) fail(err error) {
	d.mu.Lock()
	wasClosed := d.closed
	d.closed = true
	for id, ch := range d.pending {
		close(ch)
		delete(d.pending, id)
	}
	d.mu.Unlock()

	if wasClosed {
		return
	}
	d.logger.Warn("board_ws_read_failed", zap.Error(err))
	d.dispatch(board.Event{Type: board.EventConnectionLost, Reason: err.Error()})
}

func (d *Device) dispatch(ev board.Event) {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()
	if h != nil {
		h(ev)
	}
}
