package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(tasksProcessedTotal, taskClaimsTotal, stuckTasks) }

var (
	tasksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_tasks_processed_total",
			Help: "Total number of application tasks finalized, labeled by status.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)

	taskClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_task_claims_total",
			Help: "Queue claim attempts by result.",
		},
		[]string{"result"}, // 'claimed', 'empty', 'conflict', 'error'
	)

	stuckTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "application_tasks_stuck",
			Help: "Tasks found in processing longer than the stuck threshold at the last scan.",
		},
	)
)

func IncTask(status string) {
	tasksProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncClaim(result string) {
	taskClaimsTotal.WithLabelValues(norm(result)).Inc()
}

func SetStuckTasks(n int) {
	stuckTasks.Set(float64(n))
}
