package signal

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"fleetpulse/internal/core/domain"

	"go.uber.org/zap"
)

// Broadcaster is what the emitter publishes into.
type Broadcaster interface {
	Broadcast(event string, data interface{}) int
}

type simDriver struct {
	id     string
	status domain.DriverStatus
	lat    float64
	lng    float64
}

// Emitter produces a plausible stream of fleet events for a fixed set of
// simulated drivers.
type Emitter struct {
	out      Broadcaster
	interval time.Duration
	logger   *zap.SugaredLogger

	mu       sync.Mutex
	rng      *rand.Rand
	drivers  []*simDriver
	bookings map[string]domain.BookingStatus
	seq      int
	now      func() time.Time
}

func NewEmitter(out Broadcaster, drivers int, interval time.Duration, seed int64, logger *zap.SugaredLogger) *Emitter {
	rng := rand.New(rand.NewSource(seed))
	e := &Emitter{
		out:      out,
		interval: interval,
		logger:   logger,
		rng:      rng,
		bookings: make(map[string]domain.BookingStatus),
		now:      time.Now,
	}
	for i := 0; i < drivers; i++ {
		e.drivers = append(e.drivers, &simDriver{
			id:     fmt.Sprintf("DRV-%03d", i+1),
			status: domain.DriverAvailable,
			lat:    14.55 + rng.Float64()*0.1,
			lng:    121.0 + rng.Float64()*0.1,
		})
	}
	return e
}

// Run emits one tick of traffic per interval until ctx is done.
func (e *Emitter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ev := range e.Tick() {
				e.out.Broadcast(ev.Name(), wirePayload(ev))
			}
		}
	}
}

// Tick returns the events of one simulation step: a location batch plus
// one randomly chosen fleet event, and a metrics summary every tenth step.
func (e *Emitter) Tick() []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	now := e.now().UTC()
	events := make([]domain.Event, 0, 3)

	if batch := e.moveDrivers(now); len(batch.Updates) > 0 {
		events = append(events, batch)
	}
	if ev := e.randomEvent(now); ev != nil {
		events = append(events, ev)
	}
	if e.seq%10 == 0 {
		events = append(events, e.metrics())
		events = append(events, e.healthCheck(now))
	}
	return events
}

func (e *Emitter) moveDrivers(now time.Time) domain.LocationBatch {
	var batch domain.LocationBatch
	for _, d := range e.drivers {
		if d.status == domain.DriverOffline {
			continue
		}
		d.lat += (e.rng.Float64() - 0.5) * 0.002
		d.lng += (e.rng.Float64() - 0.5) * 0.002
		batch.Updates = append(batch.Updates, domain.LocationUpdate{
			DriverID:  d.id,
			Lat:       d.lat,
			Lng:       d.lng,
			Heading:   float64(e.rng.Intn(360)),
			Speed:     e.rng.Float64() * 60,
			Status:    d.status,
			Timestamp: now,
		})
	}
	return batch
}

var driverCycle = []domain.DriverStatus{
	domain.DriverAvailable,
	domain.DriverBusy,
	domain.DriverActive,
	domain.DriverOffline,
}

func (e *Emitter) randomEvent(now time.Time) domain.Event {
	if len(e.drivers) == 0 {
		return nil
	}
	d := e.drivers[e.rng.Intn(len(e.drivers))]

	switch roll := e.rng.Intn(100); {
	case roll < 40:
		next := driverCycle[e.rng.Intn(len(driverCycle))]
		if next == d.status {
			return nil
		}
		ev := domain.DriverStatusChanged{DriverID: d.id, OldStatus: d.status, NewStatus: next, RegionID: "NCR", Timestamp: now}
		d.status = next
		return ev

	case roll < 70:
		id := fmt.Sprintf("BK-%05d", e.seq)
		e.bookings[id] = domain.BookingPending
		return domain.BookingCreated{BookingID: id, Status: domain.BookingPending, RegionID: "NCR", Timestamp: now}

	case roll < 90:
		for id, status := range e.bookings {
			next := nextBookingStatus(status)
			if next == status {
				delete(e.bookings, id)
				continue
			}
			e.bookings[id] = next
			if !next.Open() {
				delete(e.bookings, id)
			}
			return domain.BookingStatusUpdated{BookingID: id, OldStatus: status, NewStatus: next, Timestamp: now}
		}
		return nil

	case roll < 95:
		ev := domain.DriverStatusChanged{DriverID: d.id, OldStatus: d.status, NewStatus: domain.DriverEmergency, RegionID: "NCR", Timestamp: now}
		d.status = domain.DriverEmergency
		return ev

	default:
		return domain.IncidentAlert{
			IncidentID: fmt.Sprintf("INC-%05d", e.seq),
			Type:       "sos",
			Priority:   domain.PriorityCritical,
			Title:      "SOS triggered",
			Message:    fmt.Sprintf("Driver %s triggered SOS", d.id),
			DriverID:   d.id,
			RegionID:   "NCR",
			Timestamp:  now,
		}
	}
}

func nextBookingStatus(s domain.BookingStatus) domain.BookingStatus {
	switch s {
	case domain.BookingPending:
		return domain.BookingConfirmed
	case domain.BookingConfirmed:
		return domain.BookingInProgress
	case domain.BookingInProgress:
		return domain.BookingCompleted
	default:
		return s
	}
}

func (e *Emitter) metrics() domain.MetricsUpdated {
	active, emergencies := 0, 0
	for _, d := range e.drivers {
		switch d.status {
		case domain.DriverOffline:
		case domain.DriverEmergency:
			emergencies++
			active++
		default:
			active++
		}
	}
	return domain.MetricsUpdated{
		ActiveDrivers:       active,
		ActiveBookings:      len(e.bookings),
		EmergencyIncidents:  emergencies,
		AverageResponseTime: 2 + e.rng.Float64()*3,
		HealthScore:         90 + e.rng.Float64()*10,
		SystemLoad:          e.rng.Float64(),
	}
}

func (e *Emitter) healthCheck(now time.Time) domain.HealthCheck {
	status := domain.StatusHealthy
	if e.rng.Intn(10) == 0 {
		status = domain.StatusDegraded
	}
	h := domain.SystemHealth{
		Database:         domain.ServiceHealth{Status: domain.StatusHealthy, ResponseTime: 4},
		Cache:            domain.ServiceHealth{Status: status, ResponseTime: 1},
		Transport:        domain.ServiceHealth{Status: domain.StatusHealthy},
		LocationBatching: domain.QueueHealth{Status: domain.StatusHealthy},
		EmergencyAlerts:  domain.QueueHealth{Status: domain.StatusHealthy},
		CheckedAt:        now,
	}
	h.OverallHealth = h.DeriveOverall()
	return domain.HealthCheck{Health: h}
}

type serviceWire struct {
	Status       domain.ServiceStatus `json:"status"`
	ResponseTime float64              `json:"responseTime"`
}

type queueWire struct {
	Status      domain.ServiceStatus `json:"status"`
	QueueLength int                  `json:"queueLength"`
}

// wirePayload returns the on-the-wire shape of ev. Every event except the
// health check marshals as-is.
func wirePayload(ev domain.Event) interface{} {
	hc, ok := ev.(domain.HealthCheck)
	if !ok {
		return ev
	}
	h := hc.Health
	return map[string]interface{}{
		"database":         serviceWire{h.Database.Status, h.Database.ResponseTime},
		"cache":            serviceWire{h.Cache.Status, h.Cache.ResponseTime},
		"transport":        serviceWire{h.Transport.Status, h.Transport.ResponseTime},
		"locationBatching": queueWire{h.LocationBatching.Status, h.LocationBatching.QueueLength},
		"emergencyAlerts":  queueWire{h.EmergencyAlerts.Status, h.EmergencyAlerts.QueueLength},
		"overallHealth":    h.OverallHealth,
		"timestamp":        h.CheckedAt.Format(time.RFC3339),
	}
}
