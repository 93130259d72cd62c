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
	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_logins_total",
			Help: "Total number of console login attempts",
		},
		[]string{"result"},
	)

	workflowsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petition_workflows_started_total",
			Help: "Total number of petition generation workflows started",
		},
	)

	petitionsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petitions_generated_total",
			Help: "Total number of petition documents generated",
		},
	)

	petitionsDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petitions_downloaded_total",
			Help: "Total number of petition documents downloaded",
		},
	)

	workflowFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petition_workflow_failures_total",
			Help: "Total number of workflow failures by stage",
		},
		[]string{"stage"},
	)
)

// Middleware records HTTP metrics for each request
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLogin records a login attempt outcome ("ok" or "failed")
func RecordLogin(result string) {
	loginsTotal.WithLabelValues(result).Inc()
}

// RecordWorkflowStarted records a new petition workflow
func RecordWorkflowStarted() {
	workflowsStarted.Inc()
}

// RecordPetitionGenerated records a successful document generation
func RecordPetitionGenerated() {
	petitionsGenerated.Inc()
}

// RecordPetitionDownloaded records a confirmed download
func RecordPetitionDownloaded() {
	petitionsDownloaded.Inc()
}

// RecordWorkflowFailure records a workflow failure by stage
// (validation, persist, generation, auth)
func RecordWorkflowFailure(stage string) {
	workflowFailures.WithLabelValues(stage).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
