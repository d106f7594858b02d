package realtime

import (
	"encoding/json"
	"fmt"
)

// Envelope is one text frame on the realtime socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into a frame for event.
func NewEnvelope(event string, data interface{}) (Envelope, error) {
	if data == nil {
		return Envelope{Event: event, Data: json.RawMessage(`{}`)}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

type ConnectedPayload struct {
	SocketID string `json:"socketId"`
}

// HeartbeatPayload is carried by both ping and pong. The server echoes the
// client timestamp (unix milliseconds) back unchanged.
type HeartbeatPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type serviceHealthWire struct {
	Status       string  `json:"status"`
	ResponseTime float64 `json:"responseTime"`
	Connections  int     `json:"connections,omitempty"`
}

type queueHealthWire struct {
	Status      string `json:"status"`
	QueueLength int    `json:"queueLength"`
}

// healthCheckWire is the system:health_check payload. Older servers name the
// cache "redis" and the transport "websocket"; both spellings are accepted.
type healthCheckWire struct {
	Database         *serviceHealthWire `json:"database"`
	Cache            *serviceHealthWire `json:"cache"`
	Redis            *serviceHealthWire `json:"redis"`
	Transport        *serviceHealthWire `json:"transport"`
	WebSocket        *serviceHealthWire `json:"websocket"`
	LocationBatching *queueHealthWire   `json:"locationBatching"`
	EmergencyAlerts  *queueHealthWire   `json:"emergencyAlerts"`
	OverallHealth    string             `json:"overallHealth"`
	Timestamp        string             `json:"timestamp,omitempty"`
}
