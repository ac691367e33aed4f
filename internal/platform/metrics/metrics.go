package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the real-time gateway. Each
// instance owns its registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsOpen prometheus.Gauge
	UsersOnline     prometheus.Gauge
	EventsReceived  *prometheus.CounterVec
	RelayErrors     *prometheus.CounterVec
	MessagesRelayed *prometheus.CounterVec
	GigsBroadcast   prometheus.Counter
	StoreDuration   *prometheus.HistogramVec
}

// New creates and registers all gateway metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ConnectionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gigboard_connections_open",
			Help: "Number of currently registered real-time connections",
		}),
		UsersOnline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gigboard_users_online",
			Help: "Number of identity bindings in the presence directory",
		}),
		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gigboard_events_received_total",
			Help: "Inbound real-time events by type",
		}, []string{"type"}),
		RelayErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gigboard_relay_errors_total",
			Help: "relay-error events sent to clients by code",
		}, []string{"code"}),
		MessagesRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gigboard_messages_relayed_total",
			Help: "Persisted direct messages by recipient presence",
		}, []string{"recipient"}),
		GigsBroadcast: factory.NewCounter(prometheus.CounterOpts{
			Name: "gigboard_gigs_broadcast_total",
			Help: "Gigs persisted and fanned out to connected clients",
		}),
		StoreDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gigboard_store_duration_seconds",
			Help:    "Duration of store calls made by the gateway",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveStore records the duration of a store call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveStore(op string, start time.Time) {
	m.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// IncrementEvent counts an inbound event.
func (m *Metrics) IncrementEvent(eventType string) {
	m.EventsReceived.WithLabelValues(eventType).Inc()
}

// IncrementRelayError counts a relay-error sent to a client.
func (m *Metrics) IncrementRelayError(code string) {
	m.RelayErrors.WithLabelValues(code).Inc()
}

// IncrementMessageRelayed counts a persisted message; online reports whether
// the recipient had a bound connection.
func (m *Metrics) IncrementMessageRelayed(online bool) {
	label := "offline"
	if online {
		label = "online"
	}
	m.MessagesRelayed.WithLabelValues(label).Inc()
}
