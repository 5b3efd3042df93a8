// Package metrics provides Prometheus collectors for the quote service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name
const Namespace = "fxq"

// Cache lookup results
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

// CodeOK labels successful quotes
const CodeOK = "ok"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	registry *prometheus.Registry

	// Quote metrics
	QuotesTotal  *prometheus.CounterVec
	CacheLookups *prometheus.CounterVec
	CacheEntries prometheus.Gauge
	CacheFlushes prometheus.Counter

	// Upstream metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  prometheus.Histogram

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates metrics registered on a fresh registry, so several
// instances can coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		QuotesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "quotes_total",
			Help:      "Quote requests by outcome error code (empty when successful)",
		}, []string{"code"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_lookups_total",
			Help:      "Rate cache lookups by result",
		}, []string{"result"}),
		CacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "cache_entries",
			Help:      "Currently resident cache entries",
		}),
		CacheFlushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_flushes_total",
			Help:      "Number of cache flushes",
		}),

		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upstream_requests_total",
			Help:      "Rate provider fetches by outcome",
		}, []string{"status"}),
		UpstreamLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Rate provider fetch latency in seconds, retries included",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// RecordQuote records a finished quote. code is the error code, or empty
// (counted as CodeOK) on success.
func (m *Metrics) RecordQuote(code string) {
	if code == "" {
		code = CodeOK
	}
	m.QuotesTotal.WithLabelValues(code).Inc()
}

// RecordCacheLookup records a hit or a miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues(ResultHit).Inc()
	} else {
		m.CacheLookups.WithLabelValues(ResultMiss).Inc()
	}
}

// UpdateCacheEntries sets the resident entry gauge
func (m *Metrics) UpdateCacheEntries(n int) {
	m.CacheEntries.Set(float64(n))
}

// RecordFlush records a cache flush
func (m *Metrics) RecordFlush() {
	m.CacheFlushes.Inc()
	m.CacheEntries.Set(0)
}

// RecordUpstream records one rate provider fetch
func (m *Metrics) RecordUpstream(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.UpstreamRequests.WithLabelValues(status).Inc()
	m.UpstreamLatency.Observe(duration.Seconds())
}

// RecordHTTPRequest records a served HTTP request
func (m *Metrics) RecordHTTPRequest(route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
