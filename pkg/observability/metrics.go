// Package observability provides Prometheus metrics and health checks for
// the reflection service.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflectd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reflectd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Generator metrics
	generatorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflectd_generator_calls_total",
			Help: "Total number of language generator calls",
		},
		[]string{"provider", "op", "status"},
	)

	generatorCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reflectd_generator_call_duration_seconds",
			Help:    "Language generator call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "op"},
	)

	// Session metrics
	sessionsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reflectd_sessions_started_total",
			Help: "Total number of reflection sessions started",
		},
	)

	sessionsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reflectd_sessions_completed_total",
			Help: "Total number of reflection sessions completed",
		},
	)

	sessionQuestions = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reflectd_session_questions",
			Help:    "Follow-up questions issued per completed session",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	turnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reflectd_turns_total",
			Help: "Total number of submitted reflection turns",
		},
	)

	// Weekly summary metrics
	summaryRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflectd_summary_runs_total",
			Help: "Total number of weekly summary generation runs",
		},
		[]string{"status"},
	)

	initOnce sync.Once
)

// InitMetrics registers all collectors with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			generatorCallsTotal,
			generatorCallDuration,
			sessionsStartedTotal,
			sessionsCompletedTotal,
			sessionQuestions,
			turnsTotal,
			summaryRunsTotal,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGeneratorCall records one language generator call.
func RecordGeneratorCall(provider, op string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	generatorCallsTotal.WithLabelValues(provider, op, status).Inc()
	generatorCallDuration.WithLabelValues(provider, op).Observe(duration.Seconds())
}

// RecordSessionStarted records one session start.
func RecordSessionStarted() {
	sessionsStartedTotal.Inc()
}

// RecordSessionCompleted records one session completion and its question
// count.
func RecordSessionCompleted(questions int) {
	sessionsCompletedTotal.Inc()
	sessionQuestions.Observe(float64(questions))
}

// RecordTurn records one submitted turn.
func RecordTurn() {
	turnsTotal.Inc()
}

// RecordSummaryRun records one weekly summary run.
func RecordSummaryRun(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	summaryRunsTotal.WithLabelValues(status).Inc()
}
