package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dashboard"

// Metrics holds the Prometheus collectors of the dashboard. A nil *Metrics records nothing.
type Metrics struct {
	OutboundCalls    *prometheus.CounterVec
	OutboundDuration *prometheus.HistogramVec
	BulkItems        *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		OutboundCalls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbound_calls_total",
				Help:      "Calls made to managed endpoints",
			},
			[]string{"kind", "result"}, // kind=status/primary/secondary, result=ok/error/forbidden
		),
		OutboundDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "outbound_call_duration_seconds",
				Help:      "Duration of calls made to managed endpoints",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		BulkItems: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bulk_items_total",
				Help:      "Bulk operation items processed",
			},
			[]string{"result"}, // result=completed/failed
		),
		HTTPRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests served",
			},
			[]string{"method", "code"},
		),
	}
}

// RegisterSessionGauge exposes the live session count, read at scrape time.
func RegisterSessionGauge(reg prometheus.Registerer, count func() int) {
	promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live dashboard sessions",
		},
		func() float64 { return float64(count()) },
	)
}

func (m *Metrics) ObserveOutbound(kind, result string, seconds float64) {
	if m == nil {
		return
	}
	m.OutboundCalls.WithLabelValues(kind, result).Inc()
	m.OutboundDuration.WithLabelValues(kind).Observe(seconds)
}

func (m *Metrics) ObserveBulkItem(result string) {
	if m == nil {
		return
	}
	m.BulkItems.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, code).Inc()
}
