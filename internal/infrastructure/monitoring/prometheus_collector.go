package monitoring

import (
	"time"

	"fleetpulse/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements the transport and alert metric sinks.
type PrometheusCollector struct {
	// Counters
	eventsTotal     *prometheus.CounterVec
	malformedTotal  *prometheus.CounterVec
	reconnectsTotal prometheus.Counter
	alertsTotal     *prometheus.CounterVec

	// Histograms
	heartbeatLatency prometheus.Histogram

	// Gauges
	connectionPhase      prometheus.Gauge
	unacknowledgedAlerts prometheus.Gauge
	locationsTracked     prometheus.Gauge
}

// NewPrometheusCollector registers the collector's metrics with reg. A nil
// reg uses the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetpulse_events_received_total",
			Help: "Total number of decoded inbound events",
		}, []string{"event"}),

		malformedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetpulse_events_malformed_total",
			Help: "Total number of inbound events dropped by validation",
		}, []string{"event"}),

		reconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetpulse_reconnects_total",
			Help: "Total number of reconnect attempts",
		}),

		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetpulse_alerts_raised_total",
			Help: "Total number of alerts raised",
		}, []string{"type", "priority"}),

		heartbeatLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetpulse_heartbeat_latency_seconds",
			Help:    "Round trip of heartbeat ping/pong",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.3, 0.5, 1, 2},
		}),

		connectionPhase: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetpulse_connection_phase",
			Help: "Connection phase (0 idle, 1 connecting, 2 connected, 3 reconnecting, 4 failed)",
		}),

		unacknowledgedAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetpulse_alerts_unacknowledged",
			Help: "Number of retained unacknowledged alerts",
		}),

		locationsTracked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetpulse_locations_tracked",
			Help: "Number of drivers with a known location",
		}),
	}
}

func (p *PrometheusCollector) EventReceived(event string) {
	p.eventsTotal.WithLabelValues(event).Inc()
}

func (p *PrometheusCollector) EventMalformed(event string) {
	p.malformedTotal.WithLabelValues(event).Inc()
}

func (p *PrometheusCollector) Reconnect() {
	p.reconnectsTotal.Inc()
}

func (p *PrometheusCollector) Latency(d time.Duration) {
	p.heartbeatLatency.Observe(d.Seconds())
}

func (p *PrometheusCollector) Phase(phase domain.ConnectionPhase) {
	p.connectionPhase.Set(float64(phase))
}

func (p *PrometheusCollector) AlertRaised(alertType domain.AlertType, priority domain.AlertPriority) {
	p.alertsTotal.WithLabelValues(string(alertType), string(priority)).Inc()
}

func (p *PrometheusCollector) UnacknowledgedAlerts(n int) {
	p.unacknowledgedAlerts.Set(float64(n))
}

func (p *PrometheusCollector) LocationsTracked(n int) {
	p.locationsTracked.Set(float64(n))
}
