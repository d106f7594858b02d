package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/core/ports"
	"fleetpulse/pkg/retry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config holds connection manager settings.
type Config struct {
	URL                  string
	ReconnectInterval    time.Duration
	ReconnectMaxInterval time.Duration
	MaxReconnectAttempts int
	HeartbeatInterval    time.Duration
	HeartbeatStaleAfter  time.Duration
	StatsInterval        time.Duration
	DialTimeout          time.Duration
	WriteTimeout         time.Duration
	LogEvents            bool
}

// Metrics receives transport-level counters.
type Metrics interface {
	EventReceived(event string)
	EventMalformed(event string)
	Reconnect()
	Latency(d time.Duration)
	Phase(p domain.ConnectionPhase)
}

type nopMetrics struct{}

func (nopMetrics) EventReceived(string)         {}
func (nopMetrics) EventMalformed(string)        {}
func (nopMetrics) Reconnect()                   {}
func (nopMetrics) Latency(time.Duration)        {}
func (nopMetrics) Phase(domain.ConnectionPhase) {}

// ConnectHook runs after every successful (re)connect.
type ConnectHook func(ctx context.Context)

// EventHandler receives decoded events in delivery order.
type EventHandler func(ctx context.Context, ev domain.Event)

// TickHook runs on every stats tick.
type TickHook func(now time.Time)

type Option func(*Manager)

func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

func WithMetrics(metrics Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the single realtime connection. Every connection lifecycle
// (dial, reader, heartbeat, reconnect timer) is tagged with a generation;
// Disconnect and ForceReconnect bump it so stale callbacks become no-ops.
type Manager struct {
	cfg     Config
	tokens  ports.TokenStore
	dialer  *websocket.Dialer
	metrics Metrics
	now     func() time.Time
	logger  *zap.SugaredLogger

	mu          sync.Mutex
	phase       domain.ConnectionPhase
	state       domain.ConnectionState
	conn        *websocket.Conn
	gen         uint64
	attempts    int
	timer       *time.Timer
	stop        chan struct{}
	connectedAt time.Time
	stats       *statsTracker

	onConnect []ConnectHook
	onEvent   []EventHandler
	onTick    []TickHook

	writeMu sync.Mutex
}

func NewManager(cfg Config, tokens ports.TokenStore, logger *zap.SugaredLogger, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		tokens:  tokens,
		metrics: nopMetrics{},
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		}
	}
	m.stats = newStatsTracker(m.now())
	return m
}

// OnConnect registers a hook. Hooks must be registered before Connect.
func (m *Manager) OnConnect(h ConnectHook) {
	m.mu.Lock()
	m.onConnect = append(m.onConnect, h)
	m.mu.Unlock()
}

// OnEvent registers an event handler. Handlers must be registered before Connect.
func (m *Manager) OnEvent(h EventHandler) {
	m.mu.Lock()
	m.onEvent = append(m.onEvent, h)
	m.mu.Unlock()
}

// OnTick registers a hook run on the stats interval by Run.
func (m *Manager) OnTick(h TickHook) {
	m.mu.Lock()
	m.onTick = append(m.onTick, h)
	m.mu.Unlock()
}

// Connect opens the connection unless one is already open or being dialed.
// A missing token fails fast with domain.ErrAuthMissing and no network I/O.
// A dial failure is returned but the backoff path has already been armed.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.phase == domain.PhaseConnected || m.phase == domain.PhaseConnecting {
		m.mu.Unlock()
		return nil
	}
	m.stopTimerLocked()
	m.gen++
	m.attempts = 0
	gen := m.gen
	m.mu.Unlock()

	return m.dial(ctx, gen)
}

// Disconnect closes the connection, cancels the reconnect timer and the
// heartbeat, and resets the connection state to initial.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.teardownLocked()
	m.attempts = 0
	m.state = domain.ConnectionState{}
	m.stats = newStatsTracker(m.now())
	m.setPhase(domain.PhaseIdle)
	m.mu.Unlock()

	m.closeConn(conn)
	m.logger.Infow("realtime connection closed by client")
}

// ForceReconnect drops any current connection, resets the attempt counter
// and dials immediately. It is the way out of the failed phase.
func (m *Manager) ForceReconnect(ctx context.Context) error {
	m.mu.Lock()
	conn := m.teardownLocked()
	m.attempts = 0
	m.setPhase(domain.PhaseIdle)
	gen := m.gen
	m.mu.Unlock()

	m.closeConn(conn)
	m.logger.Infow("forcing realtime reconnect")
	return m.dial(ctx, gen)
}

// Send writes one frame. It returns domain.ErrNotConnected when no
// connection is open.
func (m *Manager) Send(event string, data interface{}) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return domain.ErrNotConnected
	}

	env, err := NewEnvelope(event, data)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(m.now().Add(m.cfg.WriteTimeout))
	}
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == domain.PhaseConnected
}

func (m *Manager) Phase() domain.ConnectionPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// State returns a copy of the connection state.
func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.state
	out.LastHeartbeatAt = copyTime(m.state.LastHeartbeatAt)
	return out
}

// Stats returns the stats computed at the last tick or pong.
func (m *Manager) Stats() domain.ConnectionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats.snapshot()
}

// Healthy reports whether the connection is open and a heartbeat (or the
// connect itself) was seen within HeartbeatStaleAfter.
func (m *Manager) Healthy(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != domain.PhaseConnected {
		return false
	}
	last := m.connectedAt
	if m.state.LastHeartbeatAt != nil && m.state.LastHeartbeatAt.After(last) {
		last = *m.state.LastHeartbeatAt
	}
	return now.Sub(last) < m.cfg.HeartbeatStaleAfter
}

// Run recomputes stats and fires tick hooks every StatsInterval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.StatsInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			m.stats.recompute(now, m.connectedAt, m.phase == domain.PhaseConnected)
			hooks := append([]TickHook(nil), m.onTick...)
			m.mu.Unlock()
			for _, h := range hooks {
				h(now)
			}
		}
	}
}

func (m *Manager) dial(ctx context.Context, gen uint64) error {
	token, err := m.tokens.Token(ctx)
	if err != nil || token == "" {
		authErr := domain.ErrAuthMissing
		if err != nil {
			authErr = fmt.Errorf("%w: %v", domain.ErrAuthMissing, err)
		}
		m.mu.Lock()
		if gen == m.gen {
			m.stopTimerLocked()
			m.state.LastError = authErr.Error()
			m.setPhase(domain.PhaseFailed)
		}
		m.mu.Unlock()
		m.logger.Warnw("realtime connect aborted", "error", authErr)
		return authErr
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return nil
	}
	m.setPhase(domain.PhaseConnecting)
	m.mu.Unlock()

	dctx := ctx
	if m.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, m.cfg.DialTimeout)
		defer cancel()
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := m.dialer.DialContext(dctx, m.cfg.URL, header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		m.logger.Warnw("realtime dial failed", "url", m.cfg.URL, "error", err)
		m.mu.Lock()
		if gen == m.gen {
			m.state.LastError = err.Error()
		}
		m.mu.Unlock()
		m.scheduleReconnect(gen)
		return fmt.Errorf("dial %s: %w", m.cfg.URL, err)
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.attempts = 0
	m.state.LastError = ""
	m.connectedAt = m.now()
	m.stop = make(chan struct{})
	stop := m.stop
	m.setPhase(domain.PhaseConnected)
	m.stats.recompute(m.connectedAt, m.connectedAt, true)
	hooks := append([]ConnectHook(nil), m.onConnect...)
	m.mu.Unlock()

	m.logger.Infow("realtime connected", "url", m.cfg.URL)

	go m.readLoop(conn, gen)
	go m.heartbeatLoop(gen, stop)

	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

// scheduleReconnect arms the backoff timer for the next attempt or moves to
// the failed phase once MaxReconnectAttempts is exhausted.
func (m *Manager) scheduleReconnect(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}

	m.attempts++
	if m.cfg.MaxReconnectAttempts > 0 && m.attempts > m.cfg.MaxReconnectAttempts {
		m.state.LastError = domain.ErrMaxAttemptsExceeded.Error()
		m.setPhase(domain.PhaseFailed)
		m.logger.Errorw("realtime reconnect gave up", "attempts", m.attempts-1)
		return
	}

	delay := retry.Backoff(m.cfg.ReconnectInterval, m.cfg.ReconnectMaxInterval, m.attempts)
	m.setPhase(domain.PhaseReconnecting)
	m.stopTimerLocked()
	m.timer = time.AfterFunc(delay, func() { m.fireReconnect(gen) })
	m.logger.Infow("realtime reconnect scheduled", "attempt", m.attempts, "delay", delay)
}

func (m *Manager) fireReconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.phase != domain.PhaseReconnecting {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	now := m.now()
	m.state.ReconnectCount++
	m.stats.recordReconnect(now)
	m.mu.Unlock()

	m.metrics.Reconnect()
	_ = m.dial(context.Background(), gen)
}

func (m *Manager) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleDrop(gen, err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			m.metrics.EventMalformed("")
			m.logger.Warnw("dropping unparseable frame", "error", err, "size", len(data))
			continue
		}
		m.dispatch(gen, env)
	}
}

func (m *Manager) dispatch(gen uint64, env Envelope) {
	m.metrics.EventReceived(env.Event)
	if m.cfg.LogEvents {
		m.logger.Debugw("realtime event", "event", env.Event)
	}

	m.mu.Lock()
	m.stats.recordEvent()
	m.mu.Unlock()

	switch env.Event {
	case domain.EventConnected:
		var p ConnectedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			m.logger.Warnw("malformed connected frame", "error", err)
			return
		}
		m.mu.Lock()
		if gen == m.gen {
			m.state.SocketID = p.SocketID
		}
		m.mu.Unlock()
		m.logger.Infow("realtime session established", "socket_id", p.SocketID)
		return

	case domain.EventPong:
		m.handlePong(gen, env)
		return
	}

	ev, err := Decode(env)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEvent) {
			m.logger.Debugw("ignoring unknown event", "event", env.Event)
			return
		}
		m.metrics.EventMalformed(env.Event)
		m.logger.Warnw("dropping malformed event", "event", env.Event, "error", err)
		return
	}

	m.mu.Lock()
	handlers := append([]EventHandler(nil), m.onEvent...)
	m.mu.Unlock()

	ctx := context.Background()
	for _, h := range handlers {
		h(ctx, ev)
	}
}

func (m *Manager) handlePong(gen uint64, env Envelope) {
	var p HeartbeatPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.Timestamp == 0 {
		m.logger.Debugw("pong without timestamp", "error", err)
		return
	}

	now := m.now()
	latency := now.Sub(time.UnixMilli(p.Timestamp))
	if latency < 0 {
		latency = 0
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.state.LastHeartbeatAt = &now
	m.stats.recordLatency(float64(latency) / float64(time.Millisecond))
	m.stats.recompute(now, m.connectedAt, m.phase == domain.PhaseConnected)
	m.mu.Unlock()

	m.metrics.Latency(latency)
}

func (m *Manager) handleDrop(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	conn := m.conn
	m.conn = nil
	m.state.LastError = err.Error()
	m.state.SocketID = ""
	m.setPhase(domain.PhaseReconnecting)
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	m.logger.Warnw("realtime connection lost", "error", err)
	m.scheduleReconnect(gen)
}

func (m *Manager) heartbeatLoop(gen uint64, stop <-chan struct{}) {
	interval := m.cfg.HeartbeatInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			current := gen == m.gen
			m.mu.Unlock()
			if !current {
				return
			}
			if err := m.Send(domain.EventPing, HeartbeatPayload{Timestamp: m.now().UnixMilli()}); err != nil {
				m.logger.Debugw("heartbeat ping failed", "error", err)
			}
		}
	}
}

// teardownLocked invalidates the current generation and detaches the
// connection. Caller holds m.mu and must close the returned conn.
func (m *Manager) teardownLocked() *websocket.Conn {
	m.gen++
	m.stopTimerLocked()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	conn := m.conn
	m.conn = nil
	m.connectedAt = time.Time{}
	return conn
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) closeConn(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	deadline := m.now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"), deadline)
	conn.Close()
}
