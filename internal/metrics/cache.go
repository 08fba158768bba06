package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal) }

var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Cache lookups by backend and result.",
	},
	[]string{"cache", "result"}, // e.g. cache="redis", result="hit"
)

// IncCacheRequest counts one lookup against the named cache backend.
func IncCacheRequest(cacheName string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequestsTotal.WithLabelValues(norm(cacheName), result).Inc()
}
