package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/grand-chess-realms/internal/rules"
)

var (
	ErrBridgeUnavailable = errors.New("board bridge unavailable")
	ErrConnectFailed     = errors.New("board connect failed")
	ErrConnectionLost    = errors.New("board connection lost")
	ErrMalformedEvent    = errors.New("malformed board event")
	ErrSyncFailed        = errors.New("board sync failed")
	errNoDevices         = errors.New("no board found")
)

type Config struct {
	MaxAttempts   int
	RetryDelay    time.Duration
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	GraceDelay    time.Duration
	QueueSize     int
	ErrorBuffer   int
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		RetryDelay:    5 * time.Second,
		ProbeInterval: 5 * time.Second,
		ProbeTimeout:  3 * time.Second,
		GraceDelay:    time.Second,
		QueueSize:     32,
		ErrorBuffer:   16,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = d.ProbeInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	if c.GraceDelay < 0 {
		c.GraceDelay = 0
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.ErrorBuffer <= 0 {
		c.ErrorBuffer = d.ErrorBuffer
	}
	return c
}

type ConnectionStatus struct {
	State         ConnectionState
	Connected     bool
	Available     bool
	LastError     string
	Attempts      int
	MaxAttempts   int
	AutoReconnect bool
	Device        string
}

// Bridge owns the connection to one physical board. A single supervisor
// goroutine per connection cycle runs the bounded retry loop and the listener;
// results reach the turn loop only through the move queue and Errors().
type Bridge struct {
	newDevice DeviceFactory
	cfg       Config
	logger    *zap.Logger

	mu         sync.Mutex
	state      ConnectionState
	changed    chan struct{}
	attempts   int
	lastError  string
	autoRetry  bool
	hint       string
	deviceName string
	device     Device
	snapshot   *Snapshot
	gen        uint64
	cancel     context.CancelFunc
	closed     bool

	moves     chan MoveEvent
	errs      chan error
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewBridge returns a disconnected bridge. A nil factory makes it permanently
// unavailable so callers fall back to manual input.
func NewBridge(factory DeviceFactory, cfg Config, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Bridge{
		newDevice: factory,
		cfg:       cfg,
		logger:    logger,
		state:     Disconnected,
		changed:   make(chan struct{}),
		moves:     make(chan MoveEvent, cfg.QueueSize),
		errs:      make(chan error, cfg.ErrorBuffer),
		done:      make(chan struct{}),
	}
}

func (b *Bridge) Available() bool { return b.newDevice != nil }

// Connect starts a connection cycle and returns the state after at most
// GraceDelay. It is a no-op while connecting, reconnecting or connected.
func (b *Bridge) Connect(hint string, autoRetry bool) ConnectionState {
	if b.newDevice == nil {
		b.mu.Lock()
		b.lastError = ErrBridgeUnavailable.Error()
		st := b.state
		b.mu.Unlock()
		b.report(ErrBridgeUnavailable)
		return st
	}

	b.mu.Lock()
	if b.closed {
		st := b.state
		b.mu.Unlock()
		return st
	}
	switch b.state {
	case Connecting, Reconnecting, Connected:
		st := b.state
		b.mu.Unlock()
		return st
	}
	b.hint = hint
	b.autoRetry = autoRetry
	b.startCycleLocked("connect")
	wait := b.changed
	b.mu.Unlock()

	if b.cfg.GraceDelay > 0 {
		timer := time.NewTimer(b.cfg.GraceDelay)
		select {
		case <-wait:
		case <-timer.C:
		}
		timer.Stop()
	}
	return b.State()
}

// EnsureConnection reports whether the board is connected. From Failed it
// starts a fresh cycle with the attempt counter reset; it never blocks.
func (b *Bridge) EnsureConnection() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Connected:
		return true
	case Failed:
		if !b.closed && b.newDevice != nil {
			b.startCycleLocked("ensure_connection")
		}
	}
	return false
}

// startCycleLocked invalidates any previous supervisor and launches a new one.
func (b *Bridge) startCycleLocked(reason string) {
	if b.cancel != nil {
		b.cancel()
	}
	b.gen++
	gen := b.gen
	b.resetAttemptsLocked(reason)
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.setStateLocked(Connecting)
	b.wg.Add(1)
	go b.run(ctx, gen)
}

// resetAttemptsLocked is the only place the attempt counter goes back to zero.
func (b *Bridge) resetAttemptsLocked(reason string) {
	b.logger.Info("board_cycle_start",
		zap.String("reason", reason),
		zap.Int("previous_attempts", b.attempts),
		zap.Uint64("generation", b.gen),
	)
	b.attempts = 0
}

func (b *Bridge) setStateLocked(to ConnectionState) bool {
	from := b.state
	if from == to {
		return true
	}
	if !canTransition(from, to) {
		b.logger.Warn("board_invalid_transition", zap.Stringer("from", from), zap.Stringer("to", to))
		return false
	}
	b.state = to
	close(b.changed)
	b.changed = make(chan struct{})
	b.logger.Info("board_state", zap.Stringer("from", from), zap.Stringer("to", to))
	return true
}

func (b *Bridge) run(ctx context.Context, gen uint64) {
	defer b.wg.Done()
	for {
		dev, lost, ok := b.connectCycle(ctx, gen)
		if !ok {
			return
		}
		if !b.listen(ctx, gen, dev, lost) {
			return
		}
		b.mu.Lock()
		if gen != b.gen || b.state != Reconnecting {
			b.mu.Unlock()
			return
		}
		b.resetAttemptsLocked("link_dropped")
		b.mu.Unlock()
	}
}

// connectCycle makes up to MaxAttempts attempts separated by RetryDelay.
func (b *Bridge) connectCycle(ctx context.Context, gen uint64) (Device, chan error, bool) {
	for {
		b.mu.Lock()
		if gen != b.gen {
			b.mu.Unlock()
			return nil, nil, false
		}
		b.attempts++
		attempt := b.attempts
		hint := b.hint
		b.mu.Unlock()

		dev := b.newDevice()
		lost := make(chan error, 1)
		dev.Subscribe(func(ev Event) { b.handleEvent(gen, lost, ev) })

		name, snap, err := b.dial(ctx, dev, hint)
		if err == nil {
			b.mu.Lock()
			if gen != b.gen {
				b.mu.Unlock()
				_ = dev.Disconnect()
				return nil, nil, false
			}
			b.device = dev
			b.deviceName = name
			b.snapshot = &snap
			b.lastError = ""
			b.setStateLocked(Connected)
			b.mu.Unlock()
			b.logger.Info("board_connected", zap.String("device", name), zap.Int("attempt", attempt))
			return dev, lost, true
		}

		_ = dev.Disconnect()
		if ctx.Err() != nil {
			return nil, nil, false
		}
		b.logger.Warn("board_connect_failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", b.cfg.MaxAttempts),
			zap.Error(err),
		)

		b.mu.Lock()
		if gen != b.gen {
			b.mu.Unlock()
			return nil, nil, false
		}
		b.lastError = err.Error()
		giveUp := !b.autoRetry || attempt >= b.cfg.MaxAttempts
		if giveUp {
			b.setStateLocked(Failed)
		}
		b.mu.Unlock()

		if giveUp {
			b.report(fmt.Errorf("%w after %d attempt(s): %v", ErrConnectFailed, attempt, err))
			return nil, nil, false
		}

		timer := time.NewTimer(b.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, false
		case <-timer.C:
		}
	}
}

func (b *Bridge) dial(ctx context.Context, dev Device, hint string) (string, Snapshot, error) {
	name := hint
	if name == "" {
		names, err := dev.Scan(ctx)
		if err != nil {
			return "", Snapshot{}, fmt.Errorf("scan: %w", err)
		}
		if len(names) == 0 {
			return "", Snapshot{}, errNoDevices
		}
		name = names[0]
	}
	if err := dev.Connect(ctx, name); err != nil {
		return "", Snapshot{}, fmt.Errorf("connect %s: %w", name, err)
	}
	pctx, cancel := context.WithTimeout(ctx, b.cfg.ProbeTimeout)
	defer cancel()
	snap, err := dev.State(pctx)
	if err != nil {
		return "", Snapshot{}, fmt.Errorf("initial state: %w", err)
	}
	return name, snap, nil
}

// listen probes the device until the link drops (true) or the cycle is cancelled (false).
func (b *Bridge) listen(ctx context.Context, gen uint64, dev Device, lost <-chan error) bool {
	ticker := time.NewTicker(b.cfg.ProbeInterval)
	defer ticker.Stop()

	var cause error
	for cause == nil {
		select {
		case <-ctx.Done():
			return false
		case err := <-lost:
			cause = err
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, b.cfg.ProbeTimeout)
			snap, err := dev.State(pctx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				cause = fmt.Errorf("%w: probe: %v", ErrConnectionLost, err)
				break
			}
			b.mu.Lock()
			if gen == b.gen {
				b.snapshot = &snap
			}
			b.mu.Unlock()
		}
	}

	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return false
	}
	b.device = nil
	b.lastError = cause.Error()
	next := Failed
	if b.autoRetry {
		next = Reconnecting
	}
	b.setStateLocked(next)
	b.mu.Unlock()

	_ = dev.Disconnect()
	b.logger.Warn("board_link_lost", zap.Stringer("next", next), zap.Error(cause))
	b.report(cause)
	return next == Reconnecting
}

func (b *Bridge) handleEvent(gen uint64, lost chan<- error, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("board_event_panic", zap.Any("panic", r), zap.String("event", string(ev.Type)))
		}
	}()

	b.mu.Lock()
	stale := gen != b.gen
	b.mu.Unlock()
	if stale {
		return
	}

	switch ev.Type {
	case EventMove:
		me, err := Resolve(ev.Move, time.Now())
		if err != nil {
			b.logger.Warn("board_event_dropped", zap.Error(err))
			return
		}
		if me.Castling != NoCastling {
			b.logger.Info("board_castling_detected", zap.String("move", me.Move.String()))
		}
		select {
		case b.moves <- me:
		default:
			b.logger.Warn("board_queue_full", zap.String("move", me.Move.String()))
		}
	case EventBoardChanged:
		if ev.State == nil {
			return
		}
		snap := *ev.State
		b.mu.Lock()
		if gen == b.gen {
			b.snapshot = &snap
		}
		b.mu.Unlock()
	case EventConnectionLost:
		reason := ev.Reason
		if reason == "" {
			reason = "device reported disconnect"
		}
		select {
		case lost <- fmt.Errorf("%w: %s", ErrConnectionLost, reason):
		default:
		}
	default:
		b.logger.Debug("board_event_ignored", zap.String("event", string(ev.Type)))
	}
}

// GetMove waits up to timeout for a physical move. A non-positive timeout
// polls without blocking. It gives up early when ctx ends, the bridge closes,
// or the connection falls to Failed or Disconnected.
func (b *Bridge) GetMove(ctx context.Context, timeout time.Duration) (MoveEvent, bool) {
	select {
	case ev := <-b.moves:
		return ev, true
	default:
	}
	if timeout <= 0 {
		return MoveEvent{}, false
	}

	b.mu.Lock()
	changed := b.changed
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev := <-b.moves:
			return ev, true
		case <-timer.C:
			return MoveEvent{}, false
		case <-ctx.Done():
			return MoveEvent{}, false
		case <-b.done:
			return MoveEvent{}, false
		case <-changed:
			b.mu.Lock()
			st := b.state
			changed = b.changed
			b.mu.Unlock()
			if st == Failed || st == Disconnected {
				return MoveEvent{}, false
			}
		}
	}
}

// Flush discards queued moves, e.g. the echo of a move the user just mirrored.
func (b *Bridge) Flush() int {
	n := 0
	for {
		select {
		case <-b.moves:
			n++
		default:
			return n
		}
	}
}

// SyncPosition asks the device to match pos. Failures go to Errors().
func (b *Bridge) SyncPosition(ctx context.Context, pos *rules.Position) bool {
	b.mu.Lock()
	dev := b.device
	connected := b.state == Connected
	b.mu.Unlock()
	if !connected || dev == nil {
		b.report(fmt.Errorf("%w: not connected", ErrSyncFailed))
		return false
	}

	sctx, cancel := context.WithTimeout(ctx, b.cfg.ProbeTimeout)
	defer cancel()
	if err := dev.SetPosition(sctx, pos.FEN()); err != nil {
		b.logger.Warn("board_sync_failed", zap.String("fen", pos.FEN()), zap.Error(err))
		b.report(fmt.Errorf("%w: %v", ErrSyncFailed, err))
		return false
	}
	return true
}

// Disconnect is idempotent and safe from any state.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	b.gen++
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	dev := b.device
	b.device = nil
	b.setStateLocked(Disconnected)
	b.mu.Unlock()

	if dev != nil {
		if err := dev.Disconnect(); err != nil {
			b.logger.Debug("board_disconnect", zap.Error(err))
		}
	}
}

// Close disconnects and waits for the supervisor to exit or ctx to end.
func (b *Bridge) Close(ctx context.Context) error {
	b.Disconnect()
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.closeOnce.Do(func() { close(b.done) })

	waitCh := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) Errors() <-chan error { return b.errs }

func (b *Bridge) report(err error) {
	select {
	case b.errs <- err:
	default:
		b.logger.Debug("board_error_dropped", zap.Error(err))
	}
}

func (b *Bridge) State() ConnectionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) Connected() bool { return b.State() == Connected }

func (b *Bridge) Status() ConnectionStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ConnectionStatus{
		State:         b.state,
		Connected:     b.state == Connected,
		Available:     b.newDevice != nil,
		LastError:     b.lastError,
		Attempts:      b.attempts,
		MaxAttempts:   b.cfg.MaxAttempts,
		AutoReconnect: b.autoRetry,
		Device:        b.deviceName,
	}
}

// LastSnapshot returns the most recent board state seen from the device.
func (b *Bridge) LastSnapshot() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == nil {
		return Snapshot{}, false
	}
	return *b.snapshot, true
}
