package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CompletionCallSQL     = "sql"
	CompletionCallExplain = "explain"

	OutcomeSuccess = "success"

	AuthRejectMissingKey = "missing_key"
	AuthRejectInvalidKey = "invalid_key"
)

var (
	pipelineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlassist_pipeline_requests_total",
			Help: "Total number of questions handled by the pipeline, by outcome (success or error kind).",
		},
		[]string{"outcome"},
	)
	guardRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlassist_guard_rejections_total",
			Help: "Total number of generated statements rejected by the read-only guard.",
		},
	)
	completionLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlassist_completion_latency_seconds",
			Help:    "Completion service call latency in seconds, by call.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"call"},
	)
	queryLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlassist_query_latency_seconds",
			Help:    "Store query latency in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
	explanationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlassist_explanation_failures_total",
			Help: "Total number of explanation calls that failed and were dropped from the response.",
		},
	)
	authRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlassist_auth_rejections_total",
			Help: "Total number of API requests rejected for a missing or unknown API key.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		pipelineRequestsTotal,
		guardRejectionsTotal,
		completionLatencySeconds,
		queryLatencySeconds,
		explanationFailuresTotal,
		authRejectionsTotal,
	)
}

func ObservePipelineRequest(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	pipelineRequestsTotal.WithLabelValues(outcome).Inc()
}

func IncrementGuardRejection() {
	guardRejectionsTotal.Inc()
}

func ObserveCompletionLatency(call string, elapsed time.Duration) {
	completionLatencySeconds.WithLabelValues(call).Observe(elapsed.Seconds())
}

func ObserveQueryLatency(elapsed time.Duration) {
	queryLatencySeconds.Observe(elapsed.Seconds())
}

func IncrementExplanationFailure() {
	explanationFailuresTotal.Inc()
}

func IncrementAuthRejection(reason string) {
	authRejectionsTotal.WithLabelValues(reason).Inc()
}
