package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Row stages counted by RecordRows.
const (
	StageFetched = "fetched"
	StageSkipped = "skipped"
	StageWritten = "written"
	StageInvalid = "invalid"
)

// Cache lookup results counted by RecordCache.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheExpired = "expired"
	CacheCorrupt = "corrupt"
	CacheStale   = "stale"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Sync metrics
	syncRuns       *prometheus.CounterVec
	syncRows       *prometheus.CounterVec
	targetFailures *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	cacheRequests  *prometheus.CounterVec
	lastSuccess    *prometheus.GaugeVec
	screenFlagged  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Sync metrics
	r.syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_sync_runs_total",
			Help: "Total number of entity sync runs",
		},
		[]string{"entity", "status"},
	)
	r.syncRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_sync_rows_total",
			Help: "Rows seen by the sync engine per stage",
		},
		[]string{"entity", "stage"},
	)
	r.targetFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_sync_target_failures_total",
			Help: "Targets skipped because of a failure",
		},
		[]string{"entity", "kind"},
	)
	r.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stocksync_fetch_duration_seconds",
			Help:    "Provider fetch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"entity"},
	)
	r.cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_cache_requests_total",
			Help: "Cache lookups by result",
		},
		[]string{"name", "result"},
	)
	r.lastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stocksync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful sync run",
		},
		[]string{"entity"},
	)
	r.screenFlagged = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stocksync_screen_flagged_symbols",
			Help: "Symbols flagged by the last screener run",
		},
	)

	reg.MustRegister(r.syncRuns)
	reg.MustRegister(r.syncRows)
	reg.MustRegister(r.targetFailures)
	reg.MustRegister(r.fetchDuration)
	reg.MustRegister(r.cacheRequests)
	reg.MustRegister(r.lastSuccess)
	reg.MustRegister(r.screenFlagged)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordRun records the end of an entity sync run. A successful run also
// moves the last-success gauge.
func (r *Registry) RecordRun(entity, status string, at time.Time) {
	r.syncRuns.WithLabelValues(entity, status).Inc()
	if status == "success" {
		r.lastSuccess.WithLabelValues(entity).Set(float64(at.Unix()))
	}
}

// RecordRows adds n rows at a stage.
func (r *Registry) RecordRows(entity, stage string, n int) {
	if n <= 0 {
		return
	}
	r.syncRows.WithLabelValues(entity, stage).Add(float64(n))
}

// RecordTargetFailure counts a skipped target by failure kind.
func (r *Registry) RecordTargetFailure(entity, kind string) {
	r.targetFailures.WithLabelValues(entity, kind).Inc()
}

// ObserveFetch records one provider call.
func (r *Registry) ObserveFetch(entity string, d time.Duration) {
	r.fetchDuration.WithLabelValues(entity).Observe(d.Seconds())
}

// RecordCache counts a cache lookup.
func (r *Registry) RecordCache(name, result string) {
	r.cacheRequests.WithLabelValues(name, result).Inc()
}

// SetScreenFlagged sets the size of the last screener result.
func (r *Registry) SetScreenFlagged(n int) {
	r.screenFlagged.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
