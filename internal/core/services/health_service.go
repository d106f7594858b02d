package services

import (
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/core/ports"
)

const DefaultFreshnessWindow = 60 * time.Second

type alertCounter interface {
	UnacknowledgedCount() int
}

// HealthService derives the dashboard health summary on demand. It keeps
// no state of its own.
type HealthService struct {
	monitor   ports.ConnectionMonitor
	state     ports.StateReader
	alerts    alertCounter
	freshness time.Duration
}

func NewHealthService(monitor ports.ConnectionMonitor, state ports.StateReader, alerts alertCounter) *HealthService {
	return &HealthService{
		monitor:   monitor,
		state:     state,
		alerts:    alerts,
		freshness: DefaultFreshnessWindow,
	}
}

// Compute reports healthy only when the transport is healthy and the last
// known overall system health is healthy. Down is reported as degraded.
func (h *HealthService) Compute(now time.Time) domain.DashboardHealth {
	conn := h.monitor.State()
	stats := h.monitor.Stats()
	snapshot := h.state.Snapshot()
	system := h.state.SystemHealth()

	status := domain.StatusDegraded
	if h.monitor.Healthy(now) && system.OverallHealth == domain.StatusHealthy {
		status = domain.StatusHealthy
	}

	freshness := domain.Stale
	if !snapshot.LastUpdate.IsZero() && now.Sub(snapshot.LastUpdate) < h.freshness {
		freshness = domain.Fresh
	}

	return domain.DashboardHealth{
		Status:            status,
		ConnectionQuality: domain.ClassifyQuality(stats.AverageLatencyMs, conn.ReconnectCount, conn.Connected),
		DataFreshness:     freshness,
		AlertCount:        h.alerts.UnacknowledgedCount(),
	}
}
