package ports

import (
	"context"
	"time"

	"fleetpulse/internal/core/domain"
)

// Transport is the outbound half of the realtime connection as seen by the
// services that emit events.
type Transport interface {
	IsConnected() bool
	Send(event string, data interface{}) error
}

// ConnectionMonitor exposes transport liveness to the health indicator.
type ConnectionMonitor interface {
	State() domain.ConnectionState
	Stats() domain.ConnectionStats
	Healthy(now time.Time) bool
}

// Notifier is the host's permission-gated user notification facility.
type Notifier interface {
	RequestPermission(ctx context.Context) (domain.Permission, error)
	Show(ctx context.Context, n domain.Notification) error
}

// SoundPlayer plays the audio file at path.
type SoundPlayer interface {
	Play(ctx context.Context, path string) error
}

// AlertPublisher fans raised alerts out to other consoles.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert domain.RealtimeAlert) error
}

// StateReader is the read side of the aggregator.
type StateReader interface {
	Snapshot() domain.DashboardSnapshot
	SystemHealth() domain.SystemHealth
}
