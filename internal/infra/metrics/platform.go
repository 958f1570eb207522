package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		applyAttemptsTotal,
		applicationsSubmittedTotal,
		platformRunSeconds,
		platformAuthTotal,
	)
}

var (
	applyAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apply_attempts_total",
			Help: "Candidate apply attempts per platform and outcome.",
		},
		[]string{"platform", "outcome"}, // outcome: submitted, skipped, error
	)

	applicationsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applications_submitted_total",
			Help: "Applications durably recorded per platform.",
		},
		[]string{"platform"},
	)

	platformRunSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "platform_run_seconds",
			Help:    "Duration of one platform run inside a task.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"platform"},
	)

	platformAuthTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_auth_total",
			Help: "Platform authentication attempts by result.",
		},
		[]string{"platform", "result"},
	)
)

func IncApplyAttempt(platform, outcome string) {
	applyAttemptsTotal.WithLabelValues(norm(platform), norm(outcome)).Inc()
}

func AddSubmitted(platform string, n int) {
	if n <= 0 {
		return
	}
	applicationsSubmittedTotal.WithLabelValues(norm(platform)).Add(float64(n))
}

func ObservePlatformRun(platform string, d time.Duration) {
	platformRunSeconds.WithLabelValues(norm(platform)).Observe(d.Seconds())
}

func IncPlatformAuth(platform, result string) {
	platformAuthTotal.WithLabelValues(norm(platform), norm(result)).Inc()
}
