package domain

import "time"

type ServiceStatus string

const (
	StatusHealthy  ServiceStatus = "healthy"
	StatusDegraded ServiceStatus = "degraded"
	StatusDown     ServiceStatus = "down"
)

func (s ServiceStatus) Valid() bool {
	return s == StatusHealthy || s == StatusDegraded || s == StatusDown
}

type ServiceHealth struct {
	Status       ServiceStatus `json:"status"`
	ResponseTime float64       `json:"response_time,omitempty"`
}

type QueueHealth struct {
	Status      ServiceStatus `json:"status"`
	QueueLength int           `json:"queue_length"`
}

// SystemHealth is replaced wholesale on every health-check event.
type SystemHealth struct {
	Database         ServiceHealth `json:"database"`
	Cache            ServiceHealth `json:"cache"`
	Transport        ServiceHealth `json:"transport"`
	LocationBatching QueueHealth   `json:"location_batching"`
	EmergencyAlerts  QueueHealth   `json:"emergency_alerts"`
	OverallHealth    ServiceStatus `json:"overall_health"`
	CheckedAt        time.Time     `json:"checked_at"`
}

// DeriveOverall picks the worst status of the individual services.
func (h SystemHealth) DeriveOverall() ServiceStatus {
	worst := StatusHealthy
	for _, s := range []ServiceStatus{
		h.Database.Status,
		h.Cache.Status,
		h.Transport.Status,
		h.LocationBatching.Status,
		h.EmergencyAlerts.Status,
	} {
		switch s {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			worst = StatusDegraded
		}
	}
	return worst
}

type Freshness string

const (
	Fresh Freshness = "fresh"
	Stale Freshness = "stale"
)

// DashboardHealth is derived on demand and never stored.
type DashboardHealth struct {
	Status            ServiceStatus     `json:"status"`
	ConnectionQuality ConnectionQuality `json:"connection_quality"`
	DataFreshness     Freshness         `json:"data_freshness"`
	AlertCount        int               `json:"alert_count"`
}
