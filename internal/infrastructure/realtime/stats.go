package realtime

import (
	"time"

	"fleetpulse/internal/core/domain"
)

const latencyWindow = 10

// statsTracker accumulates raw transport counters. Derived values are
// recomputed on the stats timer and on every pong. Caller holds m.mu.
type statsTracker struct {
	totalEvents     int64
	windowEvents    int64
	windowStart     time.Time
	latencies       []float64
	reconnects      int
	lastReconnectAt *time.Time

	current domain.ConnectionStats
}

func newStatsTracker(now time.Time) *statsTracker {
	return &statsTracker{
		windowStart: now,
		latencies:   make([]float64, 0, latencyWindow),
		current:     domain.ConnectionStats{Quality: domain.QualityPoor},
	}
}

func (s *statsTracker) recordEvent() {
	s.totalEvents++
	s.windowEvents++
}

func (s *statsTracker) recordLatency(ms float64) {
	if len(s.latencies) == latencyWindow {
		copy(s.latencies, s.latencies[1:])
		s.latencies = s.latencies[:latencyWindow-1]
	}
	s.latencies = append(s.latencies, ms)
}

func (s *statsTracker) recordReconnect(at time.Time) {
	s.reconnects++
	t := at
	s.lastReconnectAt = &t
}

func (s *statsTracker) averageLatency() float64 {
	if len(s.latencies) == 0 {
		return 0
	}
	var sum float64
	for _, l := range s.latencies {
		sum += l
	}
	return sum / float64(len(s.latencies))
}

func (s *statsTracker) recompute(now, connectedAt time.Time, connected bool) domain.ConnectionStats {
	var eps float64
	if elapsed := now.Sub(s.windowStart).Seconds(); elapsed > 0 {
		eps = float64(s.windowEvents) / elapsed
	}
	s.windowEvents = 0
	s.windowStart = now

	var uptime float64
	if connected && !connectedAt.IsZero() {
		uptime = now.Sub(connectedAt).Seconds()
	}

	avg := s.averageLatency()
	s.current = domain.ConnectionStats{
		TotalEvents:       s.totalEvents,
		EventsPerSecond:   eps,
		AverageLatencyMs:  avg,
		UptimeSeconds:     uptime,
		ReconnectAttempts: s.reconnects,
		LastReconnectAt:   copyTime(s.lastReconnectAt),
		Quality:           domain.ClassifyQuality(avg, s.reconnects, connected),
	}
	return s.current
}

func (s *statsTracker) snapshot() domain.ConnectionStats {
	out := s.current
	out.LastReconnectAt = copyTime(s.current.LastReconnectAt)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
