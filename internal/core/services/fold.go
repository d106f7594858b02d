package services

import (
	"time"

	"fleetpulse/internal/core/domain"
)

// View is everything the fold owns apart from the location store.
type View struct {
	Snapshot domain.DashboardSnapshot
	Health   domain.SystemHealth
}

func NewView() View {
	return View{Snapshot: domain.NewDashboardSnapshot()}
}

func (v View) Clone() View {
	return View{Snapshot: v.Snapshot.Clone(), Health: v.Health}
}

// Fold applies one event to prev and returns the next view plus the
// location entries to upsert. prev is not modified. Each event family
// touches only its own field group; every event advances LastUpdate.
func Fold(prev View, ev domain.Event, now time.Time) (View, []domain.DriverLocation) {
	next := prev.Clone()
	var locations []domain.DriverLocation

	switch e := ev.(type) {
	case domain.DriverStatusChanged:
		foldDriverStatus(&next.Snapshot.Drivers, e.OldStatus, e.NewStatus)

	case domain.DriverLocationChanged:
		locations = []domain.DriverLocation{toLocation(e.LocationUpdate, now)}

	case domain.LocationBatch:
		locations = make([]domain.DriverLocation, 0, len(e.Updates))
		for _, u := range e.Updates {
			locations = append(locations, toLocation(u, now))
		}

	case domain.BookingCreated:
		b := &next.Snapshot.Bookings
		b.Total++
		b.Breakdown[e.Status]++
		if e.Status.Open() {
			b.Active++
		}

	case domain.BookingStatusUpdated:
		foldBookingStatus(&next.Snapshot.Bookings, e.OldStatus, e.NewStatus)

	case domain.IncidentAlert:
		em := &next.Snapshot.Emergencies
		em.Total++
		em.Active++
		if e.Priority == domain.PriorityCritical {
			em.Critical++
		}

	case domain.IncidentAcknowledged:
		em := &next.Snapshot.Emergencies
		em.Acknowledged++
		em.Active = clampDec(em.Active)

	case domain.MetricsUpdated:
		s := &next.Snapshot
		s.Drivers.Total = e.ActiveDrivers
		s.Drivers.Active = e.ActiveDrivers
		s.Bookings.Total = e.ActiveBookings
		s.Bookings.Active = e.ActiveBookings
		s.Emergencies.Total = e.EmergencyIncidents
		s.Emergencies.Active = e.EmergencyIncidents
		s.System = domain.SystemMetrics{
			HealthScore:  e.HealthScore,
			Load:         e.SystemLoad,
			ResponseTime: e.AverageResponseTime,
		}

	case domain.HealthCheck:
		next.Health = e.Health
		if next.Health.CheckedAt.IsZero() {
			next.Health.CheckedAt = now
		}

	case domain.KPIUpdated:
		next.Snapshot.KPIs = domain.BusinessKPIs{
			TotalTrips:           e.TotalTrips,
			Revenue:              e.Revenue,
			AverageRating:        e.AverageRating,
			Utilization:          e.Utilization,
			CustomerSatisfaction: e.CustomerSatisfaction,
		}

	case domain.Announcement:
		// alert surface only

	default:
		return prev, nil
	}

	next.Snapshot.LastUpdate = now
	return next, locations
}

func onDuty(s domain.DriverStatus) bool {
	return s != "" && s != domain.DriverOffline
}

func foldDriverStatus(d *domain.DriverCounts, from, to domain.DriverStatus) {
	if from == to {
		return
	}
	if from == "" {
		d.Total++
	} else {
		d.Breakdown[from] = clampDec(d.Breakdown[from])
	}
	d.Breakdown[to]++

	switch {
	case onDuty(from) && !onDuty(to):
		d.Active = clampDec(d.Active)
	case !onDuty(from) && onDuty(to):
		d.Active++
	}
}

func foldBookingStatus(b *domain.BookingCounts, from, to domain.BookingStatus) {
	if from == to {
		return
	}
	b.Breakdown[to]++
	if from == "" {
		return
	}
	b.Breakdown[from] = clampDec(b.Breakdown[from])

	switch {
	case from.Open() && !to.Open():
		b.Active = clampDec(b.Active)
	case !from.Open() && to.Open():
		b.Active++
	}
}

func clampDec(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}

func toLocation(u domain.LocationUpdate, now time.Time) domain.DriverLocation {
	return domain.DriverLocation{
		DriverID:   u.DriverID,
		Lat:        u.Lat,
		Lng:        u.Lng,
		Heading:    u.Heading,
		Speed:      u.Speed,
		Status:     u.Status,
		RegionID:   u.RegionID,
		LastUpdate: now,
	}
}
