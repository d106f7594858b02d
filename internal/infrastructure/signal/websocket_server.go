// Package signal is a development realtime server: it speaks the dashboard
// socket protocol and can emit synthetic fleet traffic.
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/infrastructure/realtime"
	"fleetpulse/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

var ErrInvalidToken = errors.New("invalid token")

type client struct {
	id       string
	subject  string
	conn     *websocket.Conn
	writeMu  sync.Mutex
	channels map[string]bool
}

func (c *client) send(env realtime.Envelope, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(env)
}

type WebSocketServer struct {
	secret []byte

	clients map[string]*client
	mu      sync.RWMutex

	readTimeout  time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

func NewWebSocketServer(secret string, logger *zap.SugaredLogger) *WebSocketServer {
	return &WebSocketServer{
		secret:       []byte(secret),
		clients:      make(map[string]*client),
		readTimeout:  90 * time.Second,
		writeTimeout: 10 * time.Second,
		logger:       logger,
	}
}

// IssueToken signs an HS256 token for subject valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "eventsim",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Authenticate validates the bearer token of r and returns its subject.
func (s *WebSocketServer) Authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.Subject, nil
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	subject, err := s.Authenticate(r)
	if err != nil {
		s.logger.Infow("rejecting websocket handshake", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:       utils.GenerateSocketID(),
		subject:  subject,
		conn:     conn,
		channels: make(map[string]bool),
	}

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	s.logger.Infow("client connected", "socket_id", c.id, "subject", subject)

	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		conn.Close()
		s.logger.Infow("client disconnected", "socket_id", c.id)
	}()

	greeting, _ := realtime.NewEnvelope(domain.EventConnected, realtime.ConnectedPayload{SocketID: c.id})
	if err := c.send(greeting, s.writeTimeout); err != nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	for {
		var env realtime.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading message from client", "socket_id", c.id, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		if err := s.handleMessage(c, env); err != nil {
			s.logger.Infow("error handling message from client", "socket_id", c.id, "event", env.Event, "error", err)
		}
	}
}

func (s *WebSocketServer) handleMessage(c *client, env realtime.Envelope) error {
	switch env.Event {
	case domain.EventPing:
		// echo the client timestamp unchanged
		return c.send(realtime.Envelope{Event: domain.EventPong, Data: env.Data}, s.writeTimeout)

	case domain.EventSubscribe:
		var payload domain.SubscribePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return fmt.Errorf("invalid subscribe payload: %w", err)
		}
		s.mu.Lock()
		for _, ch := range payload.Channels {
			c.channels[ch] = true
		}
		s.mu.Unlock()
		s.logger.Debugw("client subscribed", "socket_id", c.id, "channels", payload.Channels)
		return nil

	case domain.EventUnsubscribe:
		var payload domain.UnsubscribePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return fmt.Errorf("invalid unsubscribe payload: %w", err)
		}
		s.mu.Lock()
		for _, ch := range payload.Channels {
			delete(c.channels, ch)
		}
		s.mu.Unlock()
		return nil

	case domain.EventIncidentAcknowledge:
		var payload domain.AcknowledgePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return fmt.Errorf("invalid acknowledge payload: %w", err)
		}
		if payload.IncidentID == "" {
			return fmt.Errorf("incidentId is required")
		}
		s.Broadcast(domain.EventIncidentAcknowledged, domain.IncidentAcknowledged{
			IncidentID:     payload.IncidentID,
			AcknowledgedBy: c.subject,
			Timestamp:      time.Now().UTC(),
		})
		return nil

	case domain.EventActivity, domain.EventMobileForeground, domain.EventMobileBackground:
		s.logger.Debugw("client activity", "socket_id", c.id, "event", env.Event)
		return nil

	default:
		return fmt.Errorf("unknown event: %s", env.Event)
	}
}

// ChannelFor maps an outbound event to the subscription channel that
// receives it.
func ChannelFor(event string) string {
	switch {
	case strings.HasPrefix(event, "driver:"), strings.HasPrefix(event, "location:"):
		return "drivers"
	case strings.HasPrefix(event, "booking:"):
		return "bookings"
	case strings.HasPrefix(event, "incident:"):
		return "incidents"
	default:
		return "system"
	}
}

// Broadcast sends event to every client subscribed to its channel and
// returns how many clients it reached.
func (s *WebSocketServer) Broadcast(event string, data interface{}) int {
	env, err := realtime.NewEnvelope(event, data)
	if err != nil {
		s.logger.Warnw("failed to encode broadcast", "event", event, "error", err)
		return 0
	}
	channel := ChannelFor(event)

	s.mu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		if c.channels[channel] {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.send(env, s.writeTimeout); err != nil {
			s.logger.Debugw("failed to send to client", "socket_id", c.id, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// DropAll closes every connection without a close frame, as a transport
// failure would.
func (s *WebSocketServer) DropAll() int {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for _, c := range s.clients {
		conns = append(conns, c.conn)
	}
	s.mu.RUnlock()

	for _, conn := range conns {
		conn.UnderlyingConn().Close()
	}
	if len(conns) > 0 {
		s.logger.Infow("dropped all connections", "count", len(conns))
	}
	return len(conns)
}

// Subscriptions returns the channels socketID is subscribed to.
func (s *WebSocketServer) Subscriptions(socketID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[socketID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

func (s *WebSocketServer) ConnectedClients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	return ids
}

func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	connectionCount := len(s.clients)
	s.mu.RUnlock()

	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": connectionCount,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
