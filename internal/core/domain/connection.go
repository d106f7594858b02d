package domain

import "time"

// ConnectionPhase is the reconnect state machine position of the transport.
type ConnectionPhase int

const (
	PhaseIdle         ConnectionPhase = iota // never connected or manually disconnected
	PhaseConnecting                          // dial in progress
	PhaseConnected                           // socket open
	PhaseReconnecting                        // waiting on a backoff timer
	PhaseFailed                              // terminal until ForceReconnect/Connect
)

func (p ConnectionPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseReconnecting:
		return "reconnecting"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (p ConnectionPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ConnectionState is owned by the connection manager.
type ConnectionState struct {
	Connected       bool       `json:"connected"`
	Connecting      bool       `json:"connecting"`
	LastError       string     `json:"last_error,omitempty"`
	SocketID        string     `json:"socket_id,omitempty"`
	ReconnectCount  int        `json:"reconnect_count"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
}

type ConnectionQuality string

const (
	QualityExcellent ConnectionQuality = "excellent"
	QualityGood      ConnectionQuality = "good"
	QualityPoor      ConnectionQuality = "poor"
)

type ConnectionStats struct {
	TotalEvents       int64             `json:"total_events"`
	EventsPerSecond   float64           `json:"events_per_second"`
	AverageLatencyMs  float64           `json:"average_latency_ms"`
	UptimeSeconds     float64           `json:"uptime_seconds"`
	ReconnectAttempts int               `json:"reconnect_attempts"`
	LastReconnectAt   *time.Time        `json:"last_reconnect_at,omitempty"`
	Quality           ConnectionQuality `json:"quality"`
}

// SubscriptionFilter narrows the events the server pushes to this client.
type SubscriptionFilter struct {
	RegionIDs  []string `json:"regionIds,omitempty" yaml:"region_ids"`
	Roles      []string `json:"roles,omitempty" yaml:"roles"`
	EventTypes []string `json:"eventTypes,omitempty" yaml:"event_types"`
}

// IsZero reports whether no filter dimension is set.
func (f SubscriptionFilter) IsZero() bool {
	return len(f.RegionIDs) == 0 && len(f.Roles) == 0 && len(f.EventTypes) == 0
}

// Client frames. The development server decodes the same types.

type SubscribePayload struct {
	Channels []string            `json:"channels"`
	Filters  *SubscriptionFilter `json:"filters,omitempty"`
}

type UnsubscribePayload struct {
	Channels []string `json:"channels"`
}

// AcknowledgePayload carries an RFC 3339 acknowledgement time.
type AcknowledgePayload struct {
	IncidentID     string `json:"incidentId"`
	AcknowledgedAt string `json:"acknowledgedAt"`
}
