package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the console.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Listing metrics
	QueriesTotal           *prometheus.CounterVec
	QueryDuration          *prometheus.HistogramVec
	MutationsTotal         *prometheus.CounterVec
	StaleResponsesTotal    *prometheus.CounterVec
	FormValidationFailures *prometheus.CounterVec
	NotificationsTotal     *prometheus.CounterVec

	// Backend invocation metrics
	BackendRequestsTotal       *prometheus.CounterVec
	BackendRequestDuration     *prometheus.HistogramVec
	BackendCircuitBreakerState *prometheus.GaugeVec
	BackendRetriesTotal        *prometheus.CounterVec

	// Session metrics
	SessionWritesTotal     *prometheus.CounterVec
	SessionHydrationsTotal *prometheus.CounterVec
	ActiveSessions         prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evidence_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evidence_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evidence_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Listings
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_query_total",
			Help: "Total number of listing queries issued.",
		}, []string{"kind", "status"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evidence_query_duration_seconds",
			Help:    "Listing query duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"kind"}),
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_mutation_total",
			Help: "Total number of form mutations.",
		}, []string{"kind", "command", "status"}),
		StaleResponsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_stale_responses_total",
			Help: "Total number of query responses discarded because a newer query was issued.",
		}, []string{"kind"}),
		FormValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_form_validation_failures_total",
			Help: "Total number of form submissions rejected by validation.",
		}, []string{"kind"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_notifications_total",
			Help: "Total number of user notifications raised.",
		}, []string{"kind", "severity"}),

		// Backend
		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_backend_requests_total",
			Help: "Total number of GraphQL requests.",
		}, []string{"operation", "status"}),
		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evidence_backend_request_duration_seconds",
			Help:    "GraphQL request duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"operation"}),
		BackendCircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evidence_backend_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"endpoint"}),
		BackendRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_backend_retries_total",
			Help: "Total number of GraphQL request retries.",
		}, []string{"operation"}),

		// Sessions
		SessionWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_session_writes_total",
			Help: "Total number of session storage writes.",
		}, []string{"key", "status"}),
		SessionHydrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_session_hydrations_total",
			Help: "Total number of global contexts restored from session storage.",
		}, []string{"status"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evidence_active_sessions",
			Help: "Number of browser sessions held in memory.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Listings
		m.QueriesTotal,
		m.QueryDuration,
		m.MutationsTotal,
		m.StaleResponsesTotal,
		m.FormValidationFailures,
		m.NotificationsTotal,
		// Backend
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
		m.BackendCircuitBreakerState,
		m.BackendRetriesTotal,
		// Sessions
		m.SessionWritesTotal,
		m.SessionHydrationsTotal,
		m.ActiveSessions,
	)

	return m
}

// --- Recording helpers ---
//
// Every helper is a no-op on a nil *Metrics so components can run without
// a registry.

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordQuery records a completed listing query.
func (m *Metrics) RecordQuery(kind, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(kind, status).Inc()
	m.QueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordMutation records a completed form mutation.
func (m *Metrics) RecordMutation(kind, command, status string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(kind, command, status).Inc()
}

// RecordStaleResponse records a discarded out-of-order query response.
func (m *Metrics) RecordStaleResponse(kind string) {
	if m == nil {
		return
	}
	m.StaleResponsesTotal.WithLabelValues(kind).Inc()
}

// RecordFormValidationFailure records a form rejected by validation.
func (m *Metrics) RecordFormValidationFailure(kind string) {
	if m == nil {
		return
	}
	m.FormValidationFailures.WithLabelValues(kind).Inc()
}

// RecordNotification records a notification raised for the user.
func (m *Metrics) RecordNotification(kind, severity string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind, severity).Inc()
}

// RecordBackendRequest records a GraphQL request.
func (m *Metrics) RecordBackendRequest(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.BackendRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetBackendCircuitBreakerState sets the circuit breaker state for an
// endpoint. State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetBackendCircuitBreakerState(endpoint string, state float64) {
	if m == nil {
		return
	}
	m.BackendCircuitBreakerState.WithLabelValues(endpoint).Set(state)
}

// RecordBackendRetry records a GraphQL request retry.
func (m *Metrics) RecordBackendRetry(operation string) {
	if m == nil {
		return
	}
	m.BackendRetriesTotal.WithLabelValues(operation).Inc()
}

// RecordSessionWrite records a session storage write.
func (m *Metrics) RecordSessionWrite(key, status string) {
	if m == nil {
		return
	}
	m.SessionWritesTotal.WithLabelValues(key, status).Inc()
}

// RecordSessionHydration records a global context restored from storage.
func (m *Metrics) RecordSessionHydration(status string) {
	if m == nil {
		return
	}
	m.SessionHydrationsTotal.WithLabelValues(status).Inc()
}

// SetActiveSessions sets the number of sessions held in memory.
func (m *Metrics) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(count))
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
