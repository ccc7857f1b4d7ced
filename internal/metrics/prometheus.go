package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for gateway metrics
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Counters
	cacheLookupsTotal     *prometheus.CounterVec
	upstreamRequestsTotal *prometheus.CounterVec
	responsesTotal        *prometheus.CounterVec
	sharedFetchesTotal    prometheus.Counter

	// Histograms
	upstreamDuration *prometheus.HistogramVec

	// Gauges
	uptime          prometheus.GaugeFunc
	cacheEntries    prometheus.Gauge
	inflightFetches prometheus.Gauge
}

// Default histogram buckets for upstream latency (in milliseconds)
var defaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Total cache lookups by result",
			},
			[]string{"result"}, // hit, miss, stale
		),

		upstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total upstream air-quality requests by classified outcome",
			},
			[]string{"outcome"},
		),

		responsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "responses_total",
				Help:      "Total /airquality responses by status code",
			},
			[]string{"code"},
		),

		sharedFetchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shared_fetches_total",
				Help:      "Lookups that waited on another caller's in-flight upstream fetch",
			},
		),

		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_milliseconds",
				Help:      "Duration of upstream air-quality requests in milliseconds",
				Buckets:   buckets,
			},
			[]string{"outcome"},
		),

		cacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_entries",
				Help:      "Number of cached cities, fresh or stale",
			},
		),

		inflightFetches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "upstream_inflight",
				Help:      "Number of upstream requests currently in flight",
			},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the gateway started",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.cacheLookupsTotal,
		pm.upstreamRequestsTotal,
		pm.responsesTotal,
		pm.sharedFetchesTotal,
		pm.upstreamDuration,
		pm.uptime,
		pm.cacheEntries,
		pm.inflightFetches,
	)

	promMetrics = pm
}

// RecordPrometheusLookup records a cache lookup result
func RecordPrometheusLookup(result string) {
	if promMetrics == nil {
		return
	}
	promMetrics.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordPrometheusFetch records a classified upstream request
func RecordPrometheusFetch(outcome string, durationMs int64) {
	if promMetrics == nil {
		return
	}
	promMetrics.upstreamRequestsTotal.WithLabelValues(outcome).Inc()
	promMetrics.upstreamDuration.WithLabelValues(outcome).Observe(float64(durationMs))
}

// RecordPrometheusResponse records the status code returned to a client
func RecordPrometheusResponse(code string) {
	if promMetrics == nil {
		return
	}
	promMetrics.responsesTotal.WithLabelValues(code).Inc()
}

// RecordPrometheusSharedFetch records a lookup that joined an in-flight fetch
func RecordPrometheusSharedFetch() {
	if promMetrics == nil {
		return
	}
	promMetrics.sharedFetchesTotal.Inc()
}

// SetCacheEntries sets the cache size gauge
func SetCacheEntries(n int) {
	if promMetrics == nil {
		return
	}
	promMetrics.cacheEntries.Set(float64(n))
}

// IncInflightFetches increments the in-flight upstream gauge
func IncInflightFetches() {
	if promMetrics == nil {
		return
	}
	promMetrics.inflightFetches.Inc()
}

// DecInflightFetches decrements the in-flight upstream gauge
func DecInflightFetches() {
	if promMetrics == nil {
		return
	}
	promMetrics.inflightFetches.Dec()
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors)
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
