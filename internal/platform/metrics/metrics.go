package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP holds the transport-level Prometheus metrics.
type HTTP struct {
	EndpointLatency *prometheus.HistogramVec
	Requests        *prometheus.CounterVec
	RateLimited     prometheus.Counter
	PanicsRecovered prometheus.Counter
}

// NewHTTP creates and registers the transport metrics on reg
// (prometheus.DefaultRegisterer when nil).
func NewHTTP(reg prometheus.Registerer) *HTTP {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &HTTP{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zeroauth_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "zeroauth_http_requests_total",
			Help: "Total HTTP requests, labeled by route pattern, method and status code",
		}, []string{"endpoint", "method", "status"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "zeroauth_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter",
		}),
		PanicsRecovered: f.NewCounter(prometheus.CounterOpts{
			Name: "zeroauth_panics_recovered_total",
			Help: "Handler panics recovered by middleware",
		}),
	}
}

// ObserveRequest records latency and outcome for one request. Nil-safe.
func (m *HTTP) ObserveRequest(endpoint, method, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
	m.Requests.WithLabelValues(endpoint, method, status).Inc()
}

func (m *HTTP) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *HTTP) IncPanicRecovered() {
	if m == nil {
		return
	}
	m.PanicsRecovered.Inc()
}
