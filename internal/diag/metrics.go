package diag

import (
	"strings"
	"time"

	"github.com/alexbotov/itchdesk/pkg/itchio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records request diagnostics as Prometheus metrics. It is safe for
// concurrent use.
type Metrics struct {
	requestsTotal *prometheus.CounterVec
	waitDuration  *prometheus.HistogramVec
	httpDuration  *prometheus.HistogramVec
}

// NewMetrics registers the collectors on registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	return &Metrics{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "itchdesk_requests_total",
				Help: "Total number of itch.io API requests made",
			},
			[]string{"method"},
		),
		waitDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "itchdesk_request_wait_seconds",
				Help:    "Time spent waiting for the request pacer",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		httpDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "itchdesk_request_http_seconds",
				Help:    "Duration of the HTTP exchange",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// Record implements itchio.DiagnosticSink
func (m *Metrics) Record(d itchio.Diagnostic) {
	method := strings.ToUpper(d.Method)
	m.requestsTotal.WithLabelValues(method).Inc()
	m.waitDuration.WithLabelValues(method).Observe(msToSeconds(d.WaitMS))
	m.httpDuration.WithLabelValues(method).Observe(msToSeconds(d.HTTPMS))
}

func msToSeconds(ms int64) float64 {
	return (time.Duration(ms) * time.Millisecond).Seconds()
}
