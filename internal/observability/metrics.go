package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the gateway's Prometheus registry, scoped to the handful of
// series this gateway actually has collaborators for: queue depth,
// connection count, and chat-request throughput. A provider-call-latency
// histogram was deliberately not added: a span already carries its own
// duration (see Tracer.StartProviderCall), so a parallel histogram would
// duplicate that interval rather than measure something new.
type Metrics struct {
	QueueDepth        prometheus.Gauge
	ActiveConnections prometheus.Gauge
	RequestsSubmitted *prometheus.CounterVec
	RequestsRejected  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics registers and returns a fresh Metrics set against a private
// registry (not prometheus.DefaultRegisterer), so that building more than
// one Metrics in the same process — as this gateway's own tests do — never
// panics on duplicate collector registration.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcbegw",
			Name:      "queue_depth",
			Help:      "Number of chat requests currently waiting in the priority queue.",
		}),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcbegw",
			Name:      "active_connections",
			Help:      "Number of currently registered MCBE WebSocket connections.",
		}),
		RequestsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcbegw",
			Name:      "requests_submitted_total",
			Help:      "Chat requests submitted to the broker, by provider.",
		}, []string{"provider"}),
		RequestsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mcbegw",
			Name:      "requests_rejected_total",
			Help:      "Chat requests rejected because the priority queue was full.",
		}),
	}
}

// Handler returns the /metrics HTTP handler serving this Metrics set's
// private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
