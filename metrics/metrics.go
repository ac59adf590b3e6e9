package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus instrumentation for restsource data sources.
// One Metrics value is shared by every data-source instance in the process.
type Metrics struct {
	reg *prometheus.Registry

	RequestsTotal  *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec

	CacheHits          *prometheus.CounterVec
	CacheMisses        prometheus.Counter
	StaleServes        prometheus.Counter
	MemoHits           prometheus.Counter
	CacheBackendErrors *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "restsource_requests_total",
			Help: "Live transport calls issued, by method and status class",
		}, []string{"method", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "restsource_request_latency_ms",
			Help:    "Live transport latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"method"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "restsource_cache_hits_total",
			Help: "Shared-cache hits, by entry kind (primary or stale)",
		}, []string{"kind"}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restsource_cache_misses_total",
			Help: "Shared-cache lookups that missed",
		}),
		StaleServes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restsource_stale_serves_total",
			Help: "Calls resolved from the stale-if-error entry after an origin failure",
		}),
		MemoHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restsource_memo_hits_total",
			Help: "Calls collapsed by the per-instance in-flight map",
		}),
		CacheBackendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "restsource_cache_backend_errors_total",
			Help: "Absorbed shared-cache backend failures, by operation",
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.RequestsTotal, m.RequestLatency,
		m.CacheHits, m.CacheMisses, m.StaleServes, m.MemoHits,
		m.CacheBackendErrors,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
