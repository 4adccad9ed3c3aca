package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/openpredict/termfeed/internal/config"
	"github.com/openpredict/termfeed/internal/dispatch"
	"github.com/openpredict/termfeed/internal/metrics"
	"github.com/openpredict/termfeed/internal/model"
	"github.com/openpredict/termfeed/internal/protocol"
	"github.com/openpredict/termfeed/internal/subscription"
)

// writeTimeout bounds a single frame write.
const writeTimeout = 5 * time.Second

// Manager owns the WebSocket session to the feed and its state machine.
type Manager interface {
	// Connect opens the session. Calling it while the session is open or
	// reconnecting is a no-op. The context governs the whole session
	// lifetime, not just the dial.
	Connect(ctx context.Context) error

	// Disconnect closes the session cleanly and suppresses reconnection.
	Disconnect() error

	// Send writes one encoded frame to the live connection.
	Send(frame []byte) error

	// State returns the current connection state.
	State() model.ConnState

	// LatencyMillis returns the most recent heartbeat round trip in
	// milliseconds. ok is false until the first pong arrives.
	LatencyMillis() (latency int64, ok bool)

	// OnStateChange sets the callback invoked after every state transition.
	OnStateChange(fn func(model.ConnState))

	// OnError sets the callback for non-fatal session errors.
	OnError(fn func(error))

	// Stats returns current session statistics.
	Stats() Stats
}

// manager is the internal implementation.
type manager struct {
	cfg      config.FeedConfig
	registry subscription.Registry
	bus      dispatch.Bus
	logger   *slog.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	state       model.ConnState
	connID      string
	manualClose bool
	ctx         context.Context
	cancel      context.CancelFunc

	// Write serialization
	writeMu sync.Mutex

	wg sync.WaitGroup

	cbMu    sync.Mutex
	onState func(model.ConnState)
	onError func(error)

	rttMu  sync.RWMutex
	rtt    time.Duration
	hasRTT bool

	received     atomic.Int64
	decodeErrors atomic.Int64
	reconnects   atomic.Int64
}

// NewManager creates a session manager. The registry is replayed on every
// connect; decoded frames go to the bus.
func NewManager(cfg config.FeedConfig, registry subscription.Registry, bus dispatch.Bus, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &manager{
		cfg:      cfg,
		registry: registry,
		bus:      bus,
		logger:   logger,
		state:    model.StateDisconnected,
	}
}

// Connect opens the session.
func (m *manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != model.StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.manualClose = false
	sctx, cancel := context.WithCancel(ctx)
	m.ctx, m.cancel = sctx, cancel
	m.state = model.StateConnecting
	m.mu.Unlock()

	m.notifyState(model.StateConnecting)

	// Dial on the session context so a concurrent Disconnect aborts it.
	conn, err := m.dial(sctx)
	if err != nil {
		cancel()
		m.transition(model.StateDisconnected)
		return fmt.Errorf("dial %s: %w", m.cfg.URL, err)
	}

	if !m.adopt(conn) {
		return fmt.Errorf("session closed during dial: %w", sctx.Err())
	}
	return nil
}

// Disconnect closes the session cleanly and suppresses reconnection.
func (m *manager) Disconnect() error {
	m.mu.Lock()
	if m.state == model.StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.manualClose = true
	conn := m.conn
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if conn != nil {
		m.writeMu.Lock()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		m.writeMu.Unlock()
		conn.Close()
	}

	m.wg.Wait()

	// Covers a disconnect while no read loop was running, e.g. between
	// reconnect attempts.
	m.transition(model.StateDisconnected)

	m.logger.Info("session disconnected")
	return nil
}

// Send writes one encoded frame to the live connection.
func (m *manager) Send(frame []byte) error {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()

	if state != model.StateConnected || conn == nil {
		return ErrNotConnected
	}
	return m.writeTo(conn, frame)
}

// State returns the current connection state.
func (m *manager) State() model.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LatencyMillis returns the most recent heartbeat round trip.
func (m *manager) LatencyMillis() (int64, bool) {
	m.rttMu.RLock()
	defer m.rttMu.RUnlock()
	if !m.hasRTT {
		return 0, false
	}
	return m.rtt.Milliseconds(), true
}

// OnStateChange sets the state-transition callback.
func (m *manager) OnStateChange(fn func(model.ConnState)) {
	m.cbMu.Lock()
	m.onState = fn
	m.cbMu.Unlock()
}

// OnError sets the non-fatal error callback.
func (m *manager) OnError(fn func(error)) {
	m.cbMu.Lock()
	m.onError = fn
	m.cbMu.Unlock()
}

// Stats returns current session statistics.
func (m *manager) Stats() Stats {
	m.mu.Lock()
	state := m.state
	connID := m.connID
	m.mu.Unlock()

	latency, ok := m.LatencyMillis()

	return Stats{
		State:            state,
		ConnID:           connID,
		MessagesReceived: m.received.Load(),
		DecodeErrors:     m.decodeErrors.Load(),
		Reconnects:       m.reconnects.Load(),
		LatencyMillis:    latency,
		HasLatency:       ok,
	}
}

// dial opens one physical connection.
func (m *manager) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, m.cfg.URL, nil)
	return conn, err
}

// adopt takes ownership of a freshly dialed connection: transition to
// Connected, replay the registry, start the read and heartbeat loops.
// A connection whose session was torn down while the dial was in flight
// is closed and discarded instead, reported as false.
func (m *manager) adopt(conn *websocket.Conn) bool {
	id := uuid.NewString()

	m.mu.Lock()
	if m.ctx == nil || m.ctx.Err() != nil {
		m.mu.Unlock()
		conn.Close()
		m.logger.Info("discarding connection dialed after shutdown")
		m.transition(model.StateDisconnected)
		return false
	}
	m.conn = conn
	m.connID = id
	m.mu.Unlock()

	m.transition(model.StateConnected)
	metrics.Connected()

	m.logger.Info("session connected", "conn_id", id, "url", m.cfg.URL)

	m.replaySubscriptions()

	m.wg.Add(2)
	go m.readLoop(conn, id)
	go m.heartbeatLoop(conn, id)
	return true
}

// replaySubscriptions re-sends every registered subscribe command so the
// server-visible set matches the registry after any connect.
func (m *manager) replaySubscriptions() {
	if m.registry == nil {
		return
	}

	commands := m.registry.Commands()
	for _, frame := range commands {
		if err := m.Send(frame); err != nil {
			m.logger.Warn("subscription replay interrupted", "error", err)
			return
		}
	}
	if len(commands) > 0 {
		m.logger.Info("subscriptions replayed", "count", len(commands))
	}
}

// readLoop reads frames until the connection dies, then runs the close
// handling for this connection.
func (m *manager) readLoop(conn *websocket.Conn, connID string) {
	defer m.wg.Done()

	for {
		if m.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(connID, err)
			return
		}

		m.handleFrame(data)
	}
}

// handleFrame decodes one frame and dispatches it.
func (m *manager) handleFrame(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		m.decodeErrors.Add(1)
		metrics.DecodeError()
		m.logger.Warn("dropping undecodable frame", "error", err)
		return
	}

	m.received.Add(1)
	metrics.MessageReceived(string(msg.MessageType()))

	switch v := msg.(type) {
	case protocol.Pong:
		rtt := v.Latency(time.Now())
		m.rttMu.Lock()
		m.rtt = rtt
		m.hasRTT = true
		m.rttMu.Unlock()
		metrics.ObserveHeartbeat(rtt)

	case protocol.ServerError:
		m.surfaceError(v)
	}

	if m.bus != nil {
		m.bus.Dispatch(msg)
	}
}

// heartbeatLoop sends an application-level ping every PingInterval. The
// read deadline doubles as staleness detection: a healthy server answers
// with pongs, which keep the read loop fed.
func (m *manager) heartbeatLoop(conn *websocket.Conn, connID string) {
	defer m.wg.Done()

	interval := m.cfg.PingInterval
	if interval <= 0 {
		interval = config.DefaultPingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := protocol.EncodePing(time.Now())
			if err != nil {
				m.logger.Warn("encode ping", "error", err)
				continue
			}
			if err := m.writeTo(conn, frame); err != nil {
				// The read loop notices the dead connection; a stale
				// heartbeat goroutine exits here on its next tick.
				m.logger.Debug("heartbeat send failed", "conn_id", connID, "error", err)
				return
			}
		}
	}
}

// handleClose decides what a closed connection means: clean shutdown,
// terminal failure, or the start of a reconnect cycle.
func (m *manager) handleClose(connID string, err error) {
	m.mu.Lock()
	manual := m.manualClose
	m.conn = nil
	ctx := m.ctx
	m.mu.Unlock()

	if manual || ctx.Err() != nil {
		m.logger.Info("session closed", "conn_id", connID)
		m.transition(model.StateDisconnected)
		return
	}

	m.logger.Warn("session lost", "conn_id", connID, "error", err)

	if !m.cfg.AutoReconnectEnabled() {
		m.transition(model.StateDisconnected)
		m.surfaceError(fmt.Errorf("session lost: %w", err))
		return
	}

	m.transition(model.StateReconnecting)
	m.wg.Add(1)
	go m.reconnectLoop(ctx)
}

// reconnectLoop retries the dial with exponential backoff until it
// succeeds, the attempt budget runs out, or the session is shut down.
func (m *manager) reconnectLoop(ctx context.Context) {
	defer m.wg.Done()

	maxAttempts := m.cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = config.DefaultMaxReconnectAttempts
	}

	b := &backoff.Backoff{
		Min:    m.cfg.ReconnectBaseDelay,
		Max:    m.cfg.ReconnectMaxDelay,
		Factor: 2,
		Jitter: false,
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		delay := b.Duration()

		m.logger.Info("reconnecting",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
		)

		select {
		case <-ctx.Done():
			m.transition(model.StateDisconnected)
			return
		case <-time.After(delay):
		}

		m.reconnects.Add(1)
		metrics.ReconnectAttempt()

		conn, err := m.dial(ctx)
		if err != nil {
			m.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
			continue
		}

		m.adopt(conn)
		return
	}

	m.transition(model.StateDisconnected)
	m.surfaceError(fmt.Errorf("%w after %d attempts", ErrReconnectExhausted, maxAttempts))
}

// writeTo serializes writes to one connection.
func (m *manager) writeTo(conn *websocket.Conn, frame []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// transition moves the state machine and notifies observers.
func (m *manager) transition(to model.ConnState) {
	m.mu.Lock()
	if m.state == to {
		m.mu.Unlock()
		return
	}
	from := m.state
	m.state = to
	m.mu.Unlock()

	m.logger.Debug("session state changed", "from", from, "to", to)
	m.notifyState(to)
}

// notifyState publishes a state value to metrics and the callback.
func (m *manager) notifyState(to model.ConnState) {
	metrics.SetConnectionState(int(to))

	m.cbMu.Lock()
	fn := m.onState
	m.cbMu.Unlock()
	if fn != nil {
		fn(to)
	}
}

// surfaceError hands a non-fatal error to the callback, if any.
func (m *manager) surfaceError(err error) {
	m.cbMu.Lock()
	fn := m.onError
	m.cbMu.Unlock()
	if fn != nil {
		fn(err)
	}
}
