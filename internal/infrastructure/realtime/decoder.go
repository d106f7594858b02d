package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/pkg/validation"
)

// Decode turns an inbound frame into a typed event. Control frames
// (connected, pong) are handled by the manager and are not decoded here.
// Errors wrap domain.ErrUnknownEvent or domain.ErrMalformedEvent.
func Decode(env Envelope) (domain.Event, error) {
	switch env.Event {
	case domain.EventDriverStatusChanged:
		var ev domain.DriverStatusChanged
		if err := unmarshal(env, &ev); err != nil {
			return nil, err
		}
		if err := validateStatusChange(ev); err != nil {
			return nil, err
		}
		return ev, nil

	case domain.EventDriverLocationChanged:
		var ev domain.DriverLocationChanged
		if err := unmarshal(env, &ev); err != nil {
			return nil, err
		}
		if err := validateLocation(ev.LocationUpdate); err != nil {
			return nil, malformed(env.Event, err)
		}
		return ev, nil

	case domain.EventLocationBatch:
		var ev domain.LocationBatch
		if err := unmarshal(env, &ev); err != nil {
			return nil, err
		}
		if len(ev.Updates) == 0 {
			return nil, malformed(env.Event, fmt.Errorf("updates is empty"))
		}
		for i, u := range ev.Updates {
			if err := validateLocation(u); err != nil {
				return nil, malformed(env.Event, fmt.Errorf("updates[%d]: %w", i, err))
			}
		}
		return ev, nil

	case domain.EventBookingNew:
		var ev domain.BookingCreated
		if err := unmarshal(env, &ev); err != nil {
			return nil, err
		}
		if err := validation.ValidateEntityID(ev.BookingID, "bookingId"); err != nil {
			return nil, malformed(env.Event, err)
		}
		if ev.Status == "" {
			ev.Status = domain.BookingPending
		}
		if !ev.Status.Valid() {
			return nil, malformed(env.Event, fmt.Errorf("unknown booking status %q", ev.Status))
		}
		return ev, nil

	case domain.EventBookingStatusUpdated:
		var ev domain.BookingStatusUpdated
		if err := unmarshal(env, &ev); err != nil {
			return nil, err
		}
		if err := validation.ValidateEntityID(ev.BookingID, "bookingId"); err != nil {
			return nil, malformed(env.Event, err)
		}
		if !ev.NewStatus.Valid() {
			return nil, malformed(env.Event, fmt.Errorf("unknown booking status %q", ev.NewStatus))
		}
		if ev.OldStatus != "" && !ev.OldStatus.Valid() {
			return nil, malformed(env.Event, fmt.Errorf("unknown booking status %q", ev.OldStatus))
		}
		return ev, nil

	case domain.EventIncidentNewAlert:
		var ev domain.IncidentAlert
		if err := unmarshal(env, &ev); err != nil {
			return nil, err
		}
		if err := validation.ValidateEntityID(ev.IncidentID, "incidentId"); err != nil {
			return nil, malformed(env.Event, err)
		}
		if ev.Priority == "" {
			ev.Priority = domain.PriorityHigh
		}
		if !ev.Priority.Valid() {
			return nil, malformed(env.Event, fmt.Errorf("unknown priority %q", ev.Priority))
		}
		return ev, nil

	case domain.EventIncidentAcknowledged:
		var ev domain.IncidentAcknowledged
		if err := unmarshal(env, &ev); err != nil {
			return nil, err
		}
		if err := validation.ValidateEntityID(ev.IncidentID, "incidentId"); err != nil {
			return nil, malformed(env.Event, err)
		}
		return ev, nil

	case domain.EventMetricsUpdated:
		var ev domain.MetricsUpdated
		if err := unmarshal(env, &ev); err != nil {
			return nil, err
		}
		for field, v := range map[string]float64{
			"activeDrivers":       float64(ev.ActiveDrivers),
			"activeBookings":      float64(ev.ActiveBookings),
			"emergencyIncidents":  float64(ev.EmergencyIncidents),
			"averageResponseTime": ev.AverageResponseTime,
			"healthScore":         ev.HealthScore,
			"systemLoad":          ev.SystemLoad,
		} {
			if err := validation.ValidateNonNegative(v, field); err != nil {
				return nil, malformed(env.Event, err)
			}
		}
		return ev, nil

	case domain.EventHealthCheck:
		var wire healthCheckWire
		if err := unmarshalInto(env, &wire); err != nil {
			return nil, err
		}
		health, err := wire.toDomain()
		if err != nil {
			return nil, malformed(env.Event, err)
		}
		return domain.HealthCheck{Health: health}, nil

	case domain.EventKPIUpdated:
		var ev domain.KPIUpdated
		if err := unmarshal(env, &ev); err != nil {
			return nil, err
		}
		for field, v := range map[string]float64{
			"totalTrips":           float64(ev.TotalTrips),
			"revenue":              ev.Revenue,
			"averageRating":        ev.AverageRating,
			"utilization":          ev.Utilization,
			"customerSatisfaction": ev.CustomerSatisfaction,
		} {
			if err := validation.ValidateNonNegative(v, field); err != nil {
				return nil, malformed(env.Event, err)
			}
		}
		return ev, nil

	case domain.EventAnnouncement:
		var ev domain.Announcement
		if err := unmarshal(env, &ev); err != nil {
			return nil, err
		}
		if validation.ValidateNonEmptyString(ev.Title, "title") != nil &&
			validation.ValidateNonEmptyString(ev.Message, "message") != nil {
			return nil, malformed(env.Event, fmt.Errorf("title or message is required"))
		}
		if ev.Priority == "" {
			ev.Priority = domain.PriorityMedium
		}
		if !ev.Priority.Valid() {
			return nil, malformed(env.Event, fmt.Errorf("unknown priority %q", ev.Priority))
		}
		return ev, nil
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, env.Event)
}

func unmarshal(env Envelope, v domain.Event) error {
	return unmarshalInto(env, v)
}

func unmarshalInto(env Envelope, v interface{}) error {
	if len(env.Data) == 0 {
		return malformed(env.Event, fmt.Errorf("missing data"))
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return malformed(env.Event, err)
	}
	return nil
}

func malformed(event string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, event, err)
}

func validateStatusChange(ev domain.DriverStatusChanged) error {
	if err := validation.ValidateEntityID(ev.DriverID, "driverId"); err != nil {
		return malformed(ev.Name(), err)
	}
	if !ev.NewStatus.Valid() {
		return malformed(ev.Name(), fmt.Errorf("unknown driver status %q", ev.NewStatus))
	}
	if ev.OldStatus != "" && !ev.OldStatus.Valid() {
		return malformed(ev.Name(), fmt.Errorf("unknown driver status %q", ev.OldStatus))
	}
	return nil
}

func validateLocation(u domain.LocationUpdate) error {
	if err := validation.ValidateEntityID(u.DriverID, "driverId"); err != nil {
		return err
	}
	if err := validation.ValidateCoordinates(u.Lat, u.Lng); err != nil {
		return err
	}
	if err := validation.ValidateHeading(u.Heading); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative(u.Speed, "speed"); err != nil {
		return err
	}
	if u.Status != "" && !u.Status.Valid() {
		return fmt.Errorf("unknown driver status %q", u.Status)
	}
	return nil
}

func (w healthCheckWire) toDomain() (domain.SystemHealth, error) {
	var h domain.SystemHealth
	var err error

	if h.Database, err = serviceHealth("database", w.Database); err != nil {
		return h, err
	}
	cache := w.Cache
	if cache == nil {
		cache = w.Redis
	}
	if h.Cache, err = serviceHealth("cache", cache); err != nil {
		return h, err
	}
	transport := w.Transport
	if transport == nil {
		transport = w.WebSocket
	}
	if h.Transport, err = serviceHealth("transport", transport); err != nil {
		return h, err
	}
	if h.LocationBatching, err = queueHealth("locationBatching", w.LocationBatching); err != nil {
		return h, err
	}
	if h.EmergencyAlerts, err = queueHealth("emergencyAlerts", w.EmergencyAlerts); err != nil {
		return h, err
	}

	if w.OverallHealth == "" {
		h.OverallHealth = h.DeriveOverall()
	} else {
		h.OverallHealth = domain.ServiceStatus(w.OverallHealth)
		if !h.OverallHealth.Valid() {
			return h, fmt.Errorf("unknown overallHealth %q", w.OverallHealth)
		}
	}

	if w.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, w.Timestamp)
		if err != nil {
			return h, fmt.Errorf("timestamp: %w", err)
		}
		h.CheckedAt = ts
	}
	return h, nil
}

func serviceHealth(name string, w *serviceHealthWire) (domain.ServiceHealth, error) {
	if w == nil {
		return domain.ServiceHealth{}, fmt.Errorf("%s is required", name)
	}
	s := domain.ServiceStatus(w.Status)
	if !s.Valid() {
		return domain.ServiceHealth{}, fmt.Errorf("%s: unknown status %q", name, w.Status)
	}
	if err := validation.ValidateNonNegative(w.ResponseTime, name+".responseTime"); err != nil {
		return domain.ServiceHealth{}, err
	}
	return domain.ServiceHealth{Status: s, ResponseTime: w.ResponseTime}, nil
}

func queueHealth(name string, w *queueHealthWire) (domain.QueueHealth, error) {
	if w == nil {
		return domain.QueueHealth{}, fmt.Errorf("%s is required", name)
	}
	s := domain.ServiceStatus(w.Status)
	if !s.Valid() {
		return domain.QueueHealth{}, fmt.Errorf("%s: unknown status %q", name, w.Status)
	}
	if w.QueueLength < 0 {
		return domain.QueueHealth{}, fmt.Errorf("%s.queueLength must be >= 0", name)
	}
	return domain.QueueHealth{Status: s, QueueLength: w.QueueLength}, nil
}
