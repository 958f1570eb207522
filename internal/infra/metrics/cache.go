package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(userCacheRequests) }

var userCacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orchestrator_user_cache_requests_total",
		Help: "User lookups served by the Redis cache in front of Postgres, by lookup key and result.",
	},
	[]string{"lookup", "result"}, // lookup: 'id', 'email'; result: 'hit', 'miss', 'bypass'
)

func IncUserCache(lookup, result string) {
	userCacheRequests.WithLabelValues(norm(lookup), norm(result)).Inc()
}
