package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rateLimitedTotal) }

var rateLimitedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Inbound requests refused by the per-client rate limiter.",
	},
	[]string{"route"},
)

// IncRateLimited counts one refused request on route
func IncRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(norm(route)).Inc()
}
