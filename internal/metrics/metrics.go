// Package metrics exposes Prometheus instrumentation for the service:
// HTTP request stats, synthesis call stats, and model/table gauges.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maggo_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maggo_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	synthesisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maggo_synthesis_total",
			Help: "Total number of field synthesis calls by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	synthesisDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maggo_synthesis_duration_seconds",
			Help:    "Field synthesis call duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
		[]string{"mode"},
	)

	extrapolationAdvisoriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "maggo_extrapolation_advisories_total",
			Help: "Synthesis calls with a date beyond the linear-validity horizon.",
		},
	)

	modelLastEpoch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "maggo_model_last_epoch",
			Help: "Final tabulated epoch year of the active coefficient table.",
		},
	)

	gridBatchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maggo_grid_batch_duration_seconds",
			Help:    "Grid evaluation batch duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	gridPointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maggo_grid_points_total",
			Help: "Grid points evaluated, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(synthesisTotal)
	prometheus.MustRegister(synthesisDurationSeconds)
	prometheus.MustRegister(extrapolationAdvisoriesTotal)
	prometheus.MustRegister(modelLastEpoch)
	prometheus.MustRegister(gridBatchDurationSeconds)
	prometheus.MustRegister(gridPointsTotal)
}

// knownRoutes is the fixed set of path labels. Anything else (scanners,
// typos, bots) collapses to "other" so label cardinality stays bounded.
var knownRoutes = map[string]bool{
	"/":                     true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/model":         true,
	"/api/v1/model/refresh": true,
	"/api/v1/field":         true,
	"/api/v1/field/sv":      true,
	"/api/v1/grid":          true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSynthesis records one synthesis call.
func RecordSynthesis(mode, outcome string, duration time.Duration) {
	synthesisTotal.WithLabelValues(mode, outcome).Inc()
	synthesisDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordExtrapolationAdvisory counts an accuracy-degraded advisory.
func RecordExtrapolationAdvisory() {
	extrapolationAdvisoriesTotal.Inc()
}

// SetModelLastEpoch publishes the active table's final epoch year.
func SetModelLastEpoch(epoch float64) {
	modelLastEpoch.Set(epoch)
}

// RecordGridBatch records one grid evaluation batch.
func RecordGridBatch(duration time.Duration, success, failed int) {
	gridBatchDurationSeconds.Observe(duration.Seconds())
	gridPointsTotal.WithLabelValues("ok").Add(float64(success))
	gridPointsTotal.WithLabelValues("error").Add(float64(failed))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		path := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
