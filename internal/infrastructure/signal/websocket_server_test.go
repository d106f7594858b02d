package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/infrastructure/realtime"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

func startServer(t *testing.T) (*WebSocketServer, string) {
	t.Helper()
	s := NewWebSocketServer(testSecret, zaptest.NewLogger(t).Sugar())
	srv := httptest.NewServer(http.HandlerFunc(s.HandleWebSocket))
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func readEnvelope(t *testing.T, conn *websocket.Conn) realtime.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env realtime.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestWebSocketServer_RejectsBadTokens(t *testing.T) {
	_, url := startServer(t)

	expired, err := IssueToken(testSecret, "ops", -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueToken("other-secret", "ops", time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"missing": "",
		"garbage": "not-a-jwt",
		"expired": expired,
		"foreign": foreign,
	} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := dial(t, url, token)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestWebSocketServer_Protocol(t *testing.T) {
	s, url := startServer(t)
	token, err := IssueToken(testSecret, "dispatcher-1", time.Hour)
	require.NoError(t, err)

	conn, _, err := dial(t, url, token)
	require.NoError(t, err)

	greeting := readEnvelope(t, conn)
	require.Equal(t, domain.EventConnected, greeting.Event)
	var connected realtime.ConnectedPayload
	require.NoError(t, json.Unmarshal(greeting.Data, &connected))
	assert.NotEmpty(t, connected.SocketID)

	ping, _ := realtime.NewEnvelope(domain.EventPing, realtime.HeartbeatPayload{Timestamp: 1700000000123})
	require.NoError(t, conn.WriteJSON(ping))
	pong := readEnvelope(t, conn)
	assert.Equal(t, domain.EventPong, pong.Event)
	assert.JSONEq(t, `{"timestamp":1700000000123}`, string(pong.Data))

	sub, _ := realtime.NewEnvelope(domain.EventSubscribe, domain.SubscribePayload{Channels: []string{"drivers", "incidents"}})
	require.NoError(t, conn.WriteJSON(sub))
	require.Eventually(t, func() bool {
		return len(s.Subscriptions(connected.SocketID)) == 2
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, s.Broadcast(domain.EventBookingNew, domain.BookingCreated{BookingID: "B1"}))
	assert.Equal(t, 1, s.Broadcast(domain.EventDriverStatusChanged, domain.DriverStatusChanged{DriverID: "D1", NewStatus: domain.DriverBusy}))
	assert.Equal(t, domain.EventDriverStatusChanged, readEnvelope(t, conn).Event)

	ack, _ := realtime.NewEnvelope(domain.EventIncidentAcknowledge, domain.AcknowledgePayload{IncidentID: "INC-1", AcknowledgedAt: time.Now().Format(time.RFC3339)})
	require.NoError(t, conn.WriteJSON(ack))
	echo := readEnvelope(t, conn)
	assert.Equal(t, domain.EventIncidentAcknowledged, echo.Event)
	var acked domain.IncidentAcknowledged
	require.NoError(t, json.Unmarshal(echo.Data, &acked))
	assert.Equal(t, "INC-1", acked.IncidentID)
	assert.Equal(t, "dispatcher-1", acked.AcknowledgedBy)

	unsub, _ := realtime.NewEnvelope(domain.EventUnsubscribe, domain.UnsubscribePayload{Channels: []string{"drivers"}})
	require.NoError(t, conn.WriteJSON(unsub))
	require.Eventually(t, func() bool {
		return len(s.Subscriptions(connected.SocketID)) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "drivers", ChannelFor(domain.EventLocationBatch))
	assert.Equal(t, "drivers", ChannelFor(domain.EventDriverStatusChanged))
	assert.Equal(t, "bookings", ChannelFor(domain.EventBookingStatusUpdated))
	assert.Equal(t, "incidents", ChannelFor(domain.EventIncidentNewAlert))
	assert.Equal(t, "system", ChannelFor(domain.EventKPIUpdated))
	assert.Equal(t, "system", ChannelFor(domain.EventHealthCheck))
}

type tokenFunc func() string

func (f tokenFunc) Token(ctx context.Context) (string, error) { return f(), nil }

type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) add(ctx context.Context, ev domain.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, ev := range l.events {
		out = append(out, ev.Name())
	}
	return out
}

func TestWebSocketServer_DrivesConnectionManager(t *testing.T) {
	s, url := startServer(t)
	token, err := IssueToken(testSecret, "console", time.Hour)
	require.NoError(t, err)

	m := realtime.NewManager(realtime.Config{
		URL:                  url,
		ReconnectInterval:    20 * time.Millisecond,
		ReconnectMaxInterval: 80 * time.Millisecond,
		MaxReconnectAttempts: 5,
		HeartbeatInterval:    time.Hour,
		HeartbeatStaleAfter:  time.Minute,
		StatsInterval:        time.Hour,
		DialTimeout:          2 * time.Second,
		WriteTimeout:         time.Second,
	}, tokenFunc(func() string { return token }), zaptest.NewLogger(t).Sugar())
	t.Cleanup(m.Disconnect)

	log := &eventLog{}
	m.OnConnect(func(ctx context.Context) {
		_ = m.Send(domain.EventSubscribe, domain.SubscribePayload{Channels: []string{"drivers", "incidents"}})
	})
	m.OnEvent(log.add)

	require.NoError(t, m.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return m.State().SocketID != "" && len(s.ConnectedClients()) == 1 &&
			len(s.Subscriptions(s.ConnectedClients()[0])) == 2
	}, 2*time.Second, 10*time.Millisecond)

	s.Broadcast(domain.EventDriverStatusChanged, domain.DriverStatusChanged{DriverID: "D1", OldStatus: domain.DriverActive, NewStatus: domain.DriverEmergency})
	require.NoError(t, m.Send(domain.EventIncidentAcknowledge, domain.AcknowledgePayload{IncidentID: "INC-3"}))

	require.Eventually(t, func() bool {
		return len(log.names()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{domain.EventDriverStatusChanged, domain.EventIncidentAcknowledged}, log.names())

	assert.Equal(t, 1, s.DropAll())
	require.Eventually(t, func() bool {
		st := m.State()
		return st.Connected && st.ReconnectCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}
