package domain

import "time"

// Inbound event names.
const (
	EventConnected             = "connected"
	EventPong                  = "pong"
	EventDriverStatusChanged   = "driver:status_changed"
	EventDriverLocationChanged = "driver:location_changed"
	EventLocationBatch         = "location:batch_update"
	EventBookingNew            = "booking:new"
	EventBookingStatusUpdated  = "booking:status_updated"
	EventIncidentNewAlert      = "incident:new_alert"
	EventIncidentAcknowledged  = "incident:acknowledged"
	EventMetricsUpdated        = "system:metrics_updated"
	EventHealthCheck           = "system:health_check"
	EventKPIUpdated            = "kpi:updated"
	EventAnnouncement          = "system:announcement"
)

// Outbound event names.
const (
	EventSubscribe           = "subscribe"
	EventUnsubscribe         = "unsubscribe"
	EventPing                = "ping"
	EventActivity            = "activity"
	EventMobileForeground    = "mobile:foreground"
	EventMobileBackground    = "mobile:background"
	EventIncidentAcknowledge = "incident:acknowledge"
)

// Event is one decoded inbound message. The concrete types below are the
// closed set the aggregator understands.
type Event interface {
	Name() string
}

type DriverStatusChanged struct {
	DriverID  string       `json:"driverId"`
	OldStatus DriverStatus `json:"oldStatus"`
	NewStatus DriverStatus `json:"newStatus"`
	RegionID  string       `json:"regionId,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

type LocationUpdate struct {
	DriverID  string       `json:"driverId"`
	Lat       float64      `json:"lat"`
	Lng       float64      `json:"lng"`
	Heading   float64      `json:"heading,omitempty"`
	Speed     float64      `json:"speed,omitempty"`
	Status    DriverStatus `json:"status,omitempty"`
	RegionID  string       `json:"regionId,omitempty"`
	Timestamp time.Time    `json:"timestamp,omitempty"`
}

type DriverLocationChanged struct {
	LocationUpdate
}

type LocationBatch struct {
	Updates []LocationUpdate `json:"updates"`
}

type BookingCreated struct {
	BookingID string        `json:"bookingId"`
	Status    BookingStatus `json:"status,omitempty"`
	RegionID  string        `json:"regionId,omitempty"`
	Timestamp time.Time     `json:"timestamp,omitempty"`
}

type BookingStatusUpdated struct {
	BookingID string        `json:"bookingId"`
	OldStatus BookingStatus `json:"oldStatus"`
	NewStatus BookingStatus `json:"newStatus"`
	Timestamp time.Time     `json:"timestamp,omitempty"`
}

type IncidentAlert struct {
	IncidentID string        `json:"incidentId"`
	Type       string        `json:"type,omitempty"`
	Priority   AlertPriority `json:"priority"`
	Title      string        `json:"title,omitempty"`
	Message    string        `json:"message,omitempty"`
	DriverID   string        `json:"driverId,omitempty"`
	RegionID   string        `json:"regionId,omitempty"`
	Timestamp  time.Time     `json:"timestamp,omitempty"`
}

type IncidentAcknowledged struct {
	IncidentID     string    `json:"incidentId"`
	AcknowledgedBy string    `json:"acknowledgedBy,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
}

type MetricsUpdated struct {
	ActiveDrivers       int     `json:"activeDrivers"`
	ActiveBookings      int     `json:"activeBookings"`
	EmergencyIncidents  int     `json:"emergencyIncidents"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	HealthScore         float64 `json:"healthScore"`
	SystemLoad          float64 `json:"systemLoad"`
}

type HealthCheck struct {
	Health SystemHealth
}

type KPIUpdated struct {
	TotalTrips           int     `json:"totalTrips"`
	Revenue              float64 `json:"revenue"`
	AverageRating        float64 `json:"averageRating"`
	Utilization          float64 `json:"utilization"`
	CustomerSatisfaction float64 `json:"customerSatisfaction"`
}

type Announcement struct {
	ID        string        `json:"id,omitempty"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	Priority  AlertPriority `json:"priority,omitempty"`
	RegionID  string        `json:"regionId,omitempty"`
	Timestamp time.Time     `json:"timestamp,omitempty"`
}

func (DriverStatusChanged) Name() string   { return EventDriverStatusChanged }
func (DriverLocationChanged) Name() string { return EventDriverLocationChanged }
func (LocationBatch) Name() string         { return EventLocationBatch }
func (BookingCreated) Name() string        { return EventBookingNew }
func (BookingStatusUpdated) Name() string  { return EventBookingStatusUpdated }
func (IncidentAlert) Name() string         { return EventIncidentNewAlert }
func (IncidentAcknowledged) Name() string  { return EventIncidentAcknowledged }
func (MetricsUpdated) Name() string        { return EventMetricsUpdated }
func (HealthCheck) Name() string           { return EventHealthCheck }
func (KPIUpdated) Name() string            { return EventKPIUpdated }
func (Announcement) Name() string          { return EventAnnouncement }
