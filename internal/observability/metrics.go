package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	SessionEvents      *prometheus.CounterVec
	WSMessages         *prometheus.CounterVec
	ExchangeOutcomes   *prometheus.CounterVec
	ToolInvocations    *prometheus.CounterVec
	SuppressedMessages *prometheus.CounterVec
	OracleErrors       *prometheus.CounterVec
	ExchangeDuration   prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active counseling sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket frames by direction and type.",
		}, []string{"direction", "type"}),
		ExchangeOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_outcomes_total",
			Help:      "Scripted flow terminations by flow and outcome.",
		}, []string{"flow", "outcome"}),
		ToolInvocations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Capability invocations by name and status.",
		}, []string{"capability", "status"}),
		SuppressedMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suppressed_messages_total",
			Help:      "Outbound messages suppressed by the formatter, by reason.",
		}, []string{"reason"}),
		OracleErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_errors_total",
			Help:      "External oracle errors by oracle and code.",
		}, []string{"oracle", "code"}),
		ExchangeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_ms",
			Help:      "Wall time of one bounded exchange in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}),
	}
}

func (m *Metrics) ObserveExchangeDuration(d time.Duration) {
	m.ExchangeDuration.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
