package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbConns, dbEmptyAcquires) }

var (
	dbConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestrator_db_pool_connections",
			Help: "Postgres pool connections by state at the last sample.",
		},
		[]string{"state"}, // 'total', 'idle', 'acquired'
	)

	dbEmptyAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_db_pool_empty_acquires",
			Help: "Cumulative acquires that had to wait for a connection; growth means the pool is too small for the workers.",
		},
	)
)

// PoolStats is a driver-neutral snapshot of the connection pool.
type PoolStats struct {
	Total, Idle, Acquired int32
	EmptyAcquires         int64
}

func SetDBPoolStats(s PoolStats) {
	dbConns.WithLabelValues("total").Set(float64(s.Total))
	dbConns.WithLabelValues("idle").Set(float64(s.Idle))
	dbConns.WithLabelValues("acquired").Set(float64(s.Acquired))
	dbEmptyAcquires.Set(float64(s.EmptyAcquires))
}
