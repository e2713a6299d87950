package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics (ops endpoints)
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Lock metrics
	LockRequestsTotal   *prometheus.CounterVec
	LockRequestDuration prometheus.Histogram
	LockReleasesTotal   *prometheus.CounterVec
	LockHoldDuration    prometheus.Histogram
	LocksHeld           prometheus.Gauge
	LocksExpiredTotal   prometheus.Counter
	SweepsTotal         prometheus.Counter

	// Policy evaluation metrics
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	RulesRegistered    prometheus.Gauge
	PolicyGeneration   prometheus.Gauge

	// Decision cache metrics
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheEvictionsTotal prometheus.Counter
	CacheEntries        prometheus.Gauge

	// Event bus metrics
	EventsPublishedTotal    *prometheus.CounterVec
	EventHandlerErrorsTotal *prometheus.CounterVec
	SubscribersActive       prometheus.Gauge

	// Plugin metrics
	PluginsRegistered prometheus.Gauge

	// Audit metrics
	AuditEventsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaplock_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snaplock_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snaplock_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snaplock_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Lock metrics
		LockRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaplock_lock_requests_total",
				Help: "Total number of lock requests by outcome",
			},
			[]string{"decision"},
		),
		LockRequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "snaplock_lock_request_duration_seconds",
				Help:    "Lock request duration in seconds",
				Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
			},
		),
		LockReleasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaplock_lock_releases_total",
				Help: "Total number of lock releases by outcome",
			},
			[]string{"outcome"},
		),
		LockHoldDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "snaplock_lock_hold_duration_seconds",
				Help:    "Time locks were held before reaching a terminal state",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400, 86400},
			},
		),
		LocksHeld: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snaplock_locks_held",
				Help: "Number of locks currently held",
			},
		),
		LocksExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "snaplock_locks_expired_total",
				Help: "Total number of locks that expired",
			},
		),
		SweepsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "snaplock_sweeps_total",
				Help: "Total number of background sweep passes",
			},
		),

		// Policy evaluation metrics
		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaplock_evaluations_total",
				Help: "Total number of policy evaluations by source",
			},
			[]string{"source"},
		),
		EvaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "snaplock_evaluation_duration_seconds",
				Help:    "Policy evaluation duration in seconds",
				Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
			},
		),
		RulesRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snaplock_rules_registered",
				Help: "Number of rules currently registered",
			},
		),
		PolicyGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snaplock_policy_generation",
				Help: "Current policy generation counter",
			},
		),

		// Decision cache metrics
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "snaplock_cache_hits_total",
				Help: "Total number of decision cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "snaplock_cache_misses_total",
				Help: "Total number of decision cache misses",
			},
		),
		CacheEvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "snaplock_cache_evictions_total",
				Help: "Total number of decision cache evictions",
			},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snaplock_cache_entries",
				Help: "Number of entries currently in the decision cache",
			},
		),

		// Event bus metrics
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaplock_events_published_total",
				Help: "Total number of events published by type",
			},
			[]string{"type"},
		),
		EventHandlerErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaplock_event_handler_errors_total",
				Help: "Total number of event handler panics and errors by type",
			},
			[]string{"type"},
		),
		SubscribersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snaplock_subscribers_active",
				Help: "Number of active event subscribers",
			},
		),

		// Plugin metrics
		PluginsRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snaplock_plugins_registered",
				Help: "Number of plugins currently registered",
			},
		),

		// Audit metrics
		AuditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaplock_audit_events_total",
				Help: "Total number of audit events written by backend and status",
			},
			[]string{"backend", "status"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.LockRequestsTotal,
		m.LockRequestDuration,
		m.LockReleasesTotal,
		m.LockHoldDuration,
		m.LocksHeld,
		m.LocksExpiredTotal,
		m.SweepsTotal,
		m.EvaluationsTotal,
		m.EvaluationDuration,
		m.RulesRegistered,
		m.PolicyGeneration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.CacheEntries,
		m.EventsPublishedTotal,
		m.EventHandlerErrorsTotal,
		m.SubscribersActive,
		m.PluginsRegistered,
		m.AuditEventsTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
