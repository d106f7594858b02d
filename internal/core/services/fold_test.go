package services

import (
	"math/rand"
	"testing"
	"time"

	"fleetpulse/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var foldNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFold_MetricsUpdated(t *testing.T) {
	next, locations := Fold(NewView(), domain.MetricsUpdated{
		ActiveDrivers:       42,
		ActiveBookings:      7,
		EmergencyIncidents:  1,
		AverageResponseTime: 3.2,
		HealthScore:         95,
		SystemLoad:          0.4,
	}, foldNow)

	assert.Nil(t, locations)
	assert.Equal(t, 42, next.Snapshot.Drivers.Total)
	assert.Equal(t, 7, next.Snapshot.Bookings.Total)
	assert.Equal(t, 1, next.Snapshot.Emergencies.Total)
	assert.Equal(t, 95.0, next.Snapshot.System.HealthScore)
	assert.Equal(t, 0.4, next.Snapshot.System.Load)
	assert.Equal(t, 3.2, next.Snapshot.System.ResponseTime)
	assert.Equal(t, foldNow, next.Snapshot.LastUpdate)
}

func TestFold_DriverStatusNeverNegative(t *testing.T) {
	next, _ := Fold(NewView(), domain.DriverStatusChanged{
		DriverID:  "D1",
		OldStatus: domain.DriverActive,
		NewStatus: domain.DriverEmergency,
	}, foldNow)

	assert.Equal(t, 0, next.Snapshot.Drivers.Breakdown[domain.DriverActive])
	assert.Equal(t, 1, next.Snapshot.Drivers.Breakdown[domain.DriverEmergency])
}

func TestFold_RandomSequencesStayNonNegative(t *testing.T) {
	driverStatuses := []domain.DriverStatus{"", domain.DriverActive, domain.DriverAvailable, domain.DriverBusy, domain.DriverOffline, domain.DriverEmergency}
	bookingStatuses := []domain.BookingStatus{"", domain.BookingPending, domain.BookingConfirmed, domain.BookingInProgress, domain.BookingCompleted, domain.BookingCancelled}
	rng := rand.New(rand.NewSource(7))

	view := NewView()
	for i := 0; i < 2000; i++ {
		var ev domain.Event
		switch rng.Intn(4) {
		case 0:
			ev = domain.DriverStatusChanged{
				DriverID:  "D1",
				OldStatus: driverStatuses[rng.Intn(len(driverStatuses))],
				NewStatus: driverStatuses[1+rng.Intn(len(driverStatuses)-1)],
			}
		case 1:
			ev = domain.BookingStatusUpdated{
				BookingID: "B1",
				OldStatus: bookingStatuses[rng.Intn(len(bookingStatuses))],
				NewStatus: bookingStatuses[1+rng.Intn(len(bookingStatuses)-1)],
			}
		case 2:
			ev = domain.IncidentAcknowledged{IncidentID: "I1"}
		default:
			ev = domain.IncidentAlert{IncidentID: "I1", Priority: domain.PriorityHigh}
		}
		view, _ = Fold(view, ev, foldNow)

		s := view.Snapshot
		require.GreaterOrEqual(t, s.Drivers.Active, 0)
		require.GreaterOrEqual(t, s.Bookings.Active, 0)
		require.GreaterOrEqual(t, s.Emergencies.Active, 0)
		for status, n := range s.Drivers.Breakdown {
			require.GreaterOrEqual(t, n, 0, "driver bucket %s", status)
		}
		for status, n := range s.Bookings.Breakdown {
			require.GreaterOrEqual(t, n, 0, "booking bucket %s", status)
		}
	}
}

func TestFold_FamiliesTouchOnlyTheirGroup(t *testing.T) {
	base, _ := Fold(NewView(), domain.MetricsUpdated{ActiveDrivers: 5, ActiveBookings: 3, EmergencyIncidents: 2, HealthScore: 80}, foldNow)
	base, _ = Fold(base, domain.KPIUpdated{TotalTrips: 10, Revenue: 99.5}, foldNow)
	later := foldNow.Add(time.Minute)

	t.Run("driver status", func(t *testing.T) {
		next, _ := Fold(base, domain.DriverStatusChanged{DriverID: "D1", OldStatus: domain.DriverAvailable, NewStatus: domain.DriverBusy}, later)
		assert.Equal(t, base.Snapshot.Bookings, next.Snapshot.Bookings)
		assert.Equal(t, base.Snapshot.Emergencies, next.Snapshot.Emergencies)
		assert.Equal(t, base.Snapshot.System, next.Snapshot.System)
		assert.Equal(t, base.Snapshot.KPIs, next.Snapshot.KPIs)
		assert.Equal(t, later, next.Snapshot.LastUpdate)
	})

	t.Run("booking", func(t *testing.T) {
		next, _ := Fold(base, domain.BookingCreated{BookingID: "B1", Status: domain.BookingPending}, later)
		assert.Equal(t, 4, next.Snapshot.Bookings.Total)
		assert.Equal(t, 4, next.Snapshot.Bookings.Active)
		assert.Equal(t, base.Snapshot.Drivers, next.Snapshot.Drivers)
		assert.Equal(t, base.Snapshot.Emergencies, next.Snapshot.Emergencies)
	})

	t.Run("incident", func(t *testing.T) {
		next, _ := Fold(base, domain.IncidentAlert{IncidentID: "I1", Priority: domain.PriorityCritical}, later)
		assert.Equal(t, domain.EmergencyCounts{Total: 3, Active: 3, Critical: 1}, next.Snapshot.Emergencies)
		assert.Equal(t, base.Snapshot.Drivers, next.Snapshot.Drivers)

		next, _ = Fold(next, domain.IncidentAcknowledged{IncidentID: "I1"}, later)
		assert.Equal(t, domain.EmergencyCounts{Total: 3, Active: 2, Critical: 1, Acknowledged: 1}, next.Snapshot.Emergencies)
	})

	t.Run("announcement", func(t *testing.T) {
		next, _ := Fold(base, domain.Announcement{Title: "Maintenance"}, later)
		assert.Equal(t, base.Snapshot.Drivers, next.Snapshot.Drivers)
		assert.Equal(t, base.Snapshot.KPIs, next.Snapshot.KPIs)
		assert.Equal(t, later, next.Snapshot.LastUpdate)
	})
}

func TestFold_DoesNotModifyPrev(t *testing.T) {
	prev := NewView()
	prev.Snapshot.Drivers.Breakdown[domain.DriverActive] = 2

	next, _ := Fold(prev, domain.DriverStatusChanged{DriverID: "D1", OldStatus: domain.DriverActive, NewStatus: domain.DriverBusy}, foldNow)

	assert.Equal(t, 2, prev.Snapshot.Drivers.Breakdown[domain.DriverActive])
	assert.Equal(t, 1, next.Snapshot.Drivers.Breakdown[domain.DriverActive])
	assert.True(t, prev.Snapshot.LastUpdate.IsZero())
}

func TestFold_Locations(t *testing.T) {
	sent := foldNow.Add(-time.Hour)
	_, locations := Fold(NewView(), domain.LocationBatch{Updates: []domain.LocationUpdate{
		{DriverID: "A", Lat: 14.5, Lng: 121.0, Timestamp: sent},
		{DriverID: "B", Lat: 14.6, Lng: 121.1, Heading: 90},
	}}, foldNow)

	require.Len(t, locations, 2)
	assert.Equal(t, "A", locations[0].DriverID)
	assert.Equal(t, foldNow, locations[0].LastUpdate)
	assert.Equal(t, 90.0, locations[1].Heading)
}

func TestFold_HealthCheckStampsCheckedAt(t *testing.T) {
	next, _ := Fold(NewView(), domain.HealthCheck{Health: domain.SystemHealth{OverallHealth: domain.StatusDegraded}}, foldNow)

	assert.Equal(t, domain.StatusDegraded, next.Health.OverallHealth)
	assert.Equal(t, foldNow, next.Health.CheckedAt)
}

type unknownEvent struct{}

func (unknownEvent) Name() string { return "mystery" }

func TestFold_UnknownEventIsIgnored(t *testing.T) {
	prev := NewView()
	next, locations := Fold(prev, unknownEvent{}, foldNow)

	assert.Nil(t, locations)
	assert.True(t, next.Snapshot.LastUpdate.IsZero())
}
