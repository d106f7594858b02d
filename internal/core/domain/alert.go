package domain

import "time"

type AlertType string

const (
	AlertEmergency AlertType = "emergency"
	AlertSystem    AlertType = "system"
	AlertBooking   AlertType = "booking"
	AlertDriver    AlertType = "driver"
)

type AlertPriority string

const (
	PriorityCritical AlertPriority = "critical"
	PriorityHigh     AlertPriority = "high"
	PriorityMedium   AlertPriority = "medium"
	PriorityLow      AlertPriority = "low"
)

func (p AlertPriority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type RealtimeAlert struct {
	ID           string        `json:"id"`
	Type         AlertType     `json:"type"`
	Priority     AlertPriority `json:"priority"`
	Title        string        `json:"title"`
	Message      string        `json:"message"`
	Timestamp    time.Time     `json:"timestamp"`
	Acknowledged bool          `json:"acknowledged"`
	Source       string        `json:"source,omitempty"`
	RegionID     string        `json:"region_id,omitempty"`
	// IncidentID is set for alerts backed by a server-side incident record.
	IncidentID string `json:"incident_id,omitempty"`
}

// Notification is what the alert surface hands to the host notification sink.
type Notification struct {
	Title              string
	Body               string
	Icon               string
	Badge              string
	Tag                string
	RequireInteraction bool
	AutoDismiss        time.Duration
	Priority           AlertPriority
}

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)
