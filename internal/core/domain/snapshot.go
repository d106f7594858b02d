package domain

import "time"

type DriverStatus string

const (
	DriverActive    DriverStatus = "active"
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
	DriverOffline   DriverStatus = "offline"
	DriverEmergency DriverStatus = "emergency"
)

var driverStatuses = map[DriverStatus]bool{
	DriverActive:    true,
	DriverAvailable: true,
	DriverBusy:      true,
	DriverOffline:   true,
	DriverEmergency: true,
}

func (s DriverStatus) Valid() bool { return driverStatuses[s] }

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

var bookingStatuses = map[BookingStatus]bool{
	BookingPending:    true,
	BookingConfirmed:  true,
	BookingInProgress: true,
	BookingCompleted:  true,
	BookingCancelled:  true,
}

func (s BookingStatus) Valid() bool { return bookingStatuses[s] }

// Open reports whether a booking in this status still counts as active.
func (s BookingStatus) Open() bool {
	return s == BookingPending || s == BookingConfirmed || s == BookingInProgress
}

type DriverCounts struct {
	Total     int                  `json:"total"`
	Active    int                  `json:"active"`
	Breakdown map[DriverStatus]int `json:"breakdown"`
}

type BookingCounts struct {
	Total     int                   `json:"total"`
	Active    int                   `json:"active"`
	Breakdown map[BookingStatus]int `json:"breakdown"`
}

type EmergencyCounts struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Critical     int `json:"critical"`
	Acknowledged int `json:"acknowledged"`
}

type SystemMetrics struct {
	HealthScore  float64 `json:"health_score"`
	Load         float64 `json:"load"`
	ResponseTime float64 `json:"response_time"`
}

type BusinessKPIs struct {
	TotalTrips           int     `json:"total_trips"`
	Revenue              float64 `json:"revenue"`
	AverageRating        float64 `json:"average_rating"`
	Utilization          float64 `json:"utilization"`
	CustomerSatisfaction float64 `json:"customer_satisfaction"`
}

// DashboardSnapshot is the aggregate view folded from the event stream.
// Values handed out by the aggregator are copies and must not be shared with
// the next fold.
type DashboardSnapshot struct {
	Drivers     DriverCounts    `json:"drivers"`
	Bookings    BookingCounts   `json:"bookings"`
	Emergencies EmergencyCounts `json:"emergencies"`
	System      SystemMetrics   `json:"system"`
	KPIs        BusinessKPIs    `json:"kpis"`
	LastUpdate  time.Time       `json:"last_update"`
}

func NewDashboardSnapshot() DashboardSnapshot {
	return DashboardSnapshot{
		Drivers:  DriverCounts{Breakdown: make(map[DriverStatus]int)},
		Bookings: BookingCounts{Breakdown: make(map[BookingStatus]int)},
	}
}

// Clone returns a deep copy.
func (s DashboardSnapshot) Clone() DashboardSnapshot {
	out := s
	out.Drivers.Breakdown = make(map[DriverStatus]int, len(s.Drivers.Breakdown))
	for k, v := range s.Drivers.Breakdown {
		out.Drivers.Breakdown[k] = v
	}
	out.Bookings.Breakdown = make(map[BookingStatus]int, len(s.Bookings.Breakdown))
	for k, v := range s.Bookings.Breakdown {
		out.Bookings.Breakdown[k] = v
	}
	return out
}

type DriverLocation struct {
	DriverID   string       `json:"driver_id"`
	Lat        float64      `json:"lat"`
	Lng        float64      `json:"lng"`
	Heading    float64      `json:"heading,omitempty"`
	Speed      float64      `json:"speed,omitempty"`
	Status     DriverStatus `json:"status,omitempty"`
	RegionID   string       `json:"region_id,omitempty"`
	LastUpdate time.Time    `json:"last_update"`
}
