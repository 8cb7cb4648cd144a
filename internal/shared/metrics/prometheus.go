package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	viewsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_views_resolved_total",
			Help: "Total number of tenant views resolved",
		},
		[]string{"role"},
	)

	alertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_alerts_generated_total",
			Help: "Total number of alerts generated by the alert rules",
		},
		[]string{"type", "severity"},
	)

	alertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_alert_transitions_total",
			Help: "Total number of alert lifecycle transitions",
		},
		[]string{"from_status", "to_status"},
	)

	phiMaskedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_phi_masked_responses_total",
			Help: "Total number of responses served with PHI masking applied",
		},
	)

	rthComputations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_rth_computations_total",
			Help: "Total number of RTH projections computed",
		},
	)

	adtEventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_adt_events_ingested_total",
			Help: "Total number of hospital ADT events ingested",
		},
		[]string{"type"},
	)

	scopeRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_scope_rejections_total",
			Help: "Total number of view requests rejected for exceeding the caller's tenant scope",
		},
		[]string{"role"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordViewResolved records a tenant view resolution
func RecordViewResolved(role string) {
	viewsResolved.WithLabelValues(role).Inc()
}

// RecordAlertGenerated records a generated alert
func RecordAlertGenerated(alertType, severity string) {
	alertsGenerated.WithLabelValues(alertType, severity).Inc()
}

// RecordAlertTransition records an alert lifecycle transition
func RecordAlertTransition(fromStatus, toStatus string) {
	alertTransitions.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordPHIMaskedResponse records a response served with masking on
func RecordPHIMaskedResponse() {
	phiMaskedResponses.Inc()
}

// RecordRTHComputation records an RTH projection computation
func RecordRTHComputation() {
	rthComputations.Inc()
}

// RecordADTEvent records an ingested hospital ADT event
func RecordADTEvent(eventType string) {
	adtEventsIngested.WithLabelValues(eventType).Inc()
}

// RecordScopeRejection records a rejected out-of-scope view request
func RecordScopeRejection(role string) {
	scopeRejections.WithLabelValues(role).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
