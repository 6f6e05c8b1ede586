package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	gradingSubmissions    *prometheus.CounterVec
	gradingLatencySeconds *prometheus.HistogramVec
	sessionTransitions    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the grading core.
func RegisterMetrics() {
	registerOnce.Do(func() {
		gradingSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_submissions_total",
			Help: "Total number of graded submissions by origin and verdict.",
		}, []string{"origin", "verdict"})

		gradingLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_latency_seconds",
			Help:    "Latency distribution for grading pipeline runs.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"origin"})

		sessionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_transitions_total",
			Help: "Total number of timed-session state transitions.",
		}, []string{"kind", "transition"})

		prometheus.MustRegister(gradingSubmissions, gradingLatencySeconds, sessionTransitions)
	})
}

// GradingSubmissions exposes the counter for graded submissions.
func GradingSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingSubmissions
}

// GradingLatency exposes the latency histogram for grading runs.
func GradingLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradingLatencySeconds
}

// SessionTransitions exposes the counter for session state transitions.
func SessionTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return sessionTransitions
}
