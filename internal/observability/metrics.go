package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the bot. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Messages           *prometheus.CounterVec
	GenerationRequests *prometheus.CounterVec
	GenerationLatency  prometheus.Histogram
	SuspiciousMessages prometheus.Counter
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by outcome.",
		}, []string{"outcome"}),
		GenerationRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Text generation requests by result.",
		}, []string{"result"}),
		GenerationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_seconds",
			Help:      "Latency of text generation requests.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		SuspiciousMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspicious_messages_total",
			Help:      "Inbound messages that look like prompt injection attempts.",
		}),
	}
}

func (m *Metrics) ObserveMessage(outcome string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveGeneration(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationRequests.WithLabelValues(result).Inc()
	m.GenerationLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveSuspicious() {
	if m == nil {
		return
	}
	m.SuspiciousMessages.Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
