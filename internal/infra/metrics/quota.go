package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(quotaOverrunsTotal, grantedHeadroom) }

var (
	quotaOverrunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_overruns_total",
			Help: "Commits clamped because they would exceed the application limit.",
		},
	)

	grantedHeadroom = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quota_granted_headroom",
			Help:    "Applications granted to a run by the quota ledger.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)
)

func IncQuotaOverrun() { quotaOverrunsTotal.Inc() }

func ObserveGranted(n int) { grantedHeadroom.Observe(float64(n)) }
