package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token(context.Context) (string, error) { return s.token, s.err }

// fakeServer is a minimal realtime endpoint: it greets with connected,
// answers ping with pong and records every other frame.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	// rejecting answers every handshake with 503 while set.
	rejecting atomic.Bool

	mu       sync.Mutex
	conns    []*websocket.Conn
	auth     []string
	received []Envelope
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{t: t}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fs.rejecting.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.mu.Lock()
		fs.conns = append(fs.conns, conn)
		fs.auth = append(fs.auth, r.Header.Get("Authorization"))
		idx := len(fs.conns)
		fs.mu.Unlock()

		fs.write(conn, "connected", ConnectedPayload{SocketID: "sock-" + string(rune('0'+idx))})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if json.Unmarshal(data, &env) != nil {
				continue
			}
			if env.Event == "ping" {
				fs.writeRaw(conn, Envelope{Event: "pong", Data: env.Data})
				continue
			}
			fs.mu.Lock()
			fs.received = append(fs.received, env)
			fs.mu.Unlock()
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) URL() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http") + "/ws"
}

func (fs *fakeServer) write(conn *websocket.Conn, event string, data interface{}) {
	env, err := NewEnvelope(event, data)
	if err != nil {
		fs.t.Fatalf("envelope: %v", err)
	}
	fs.writeRaw(conn, env)
}

func (fs *fakeServer) writeRaw(conn *websocket.Conn, env Envelope) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_ = conn.WriteJSON(env)
}

// sendText sends raw bytes to the most recent connection.
func (fs *fakeServer) sendText(text string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.conns) == 0 {
		return
	}
	_ = fs.conns[len(fs.conns)-1].WriteMessage(websocket.TextMessage, []byte(text))
}

// dropLatest closes the most recent connection from the server side.
func (fs *fakeServer) dropLatest() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.conns) == 0 {
		return
	}
	fs.conns[len(fs.conns)-1].Close()
}

func (fs *fakeServer) connCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.conns)
}

func (fs *fakeServer) authHeaders() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.auth...)
}

func (fs *fakeServer) frames(event string) []Envelope {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []Envelope
	for _, env := range fs.received {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func testConfig(url string) Config {
	return Config{
		URL:                  url,
		ReconnectInterval:    20 * time.Millisecond,
		ReconnectMaxInterval: 80 * time.Millisecond,
		MaxReconnectAttempts: 5,
		HeartbeatInterval:    time.Hour,
		HeartbeatStaleAfter:  time.Minute,
		StatsInterval:        time.Hour,
		DialTimeout:          2 * time.Second,
		WriteTimeout:         time.Second,
	}
}

func newTestManager(t *testing.T, cfg Config, tokens staticTokens, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(cfg, tokens, zap.NewNop().Sugar(), opts...)
	t.Cleanup(m.Disconnect)
	return m
}
