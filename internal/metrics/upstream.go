package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(keyMaterialFetchesTotal, bearerTokenFetchesTotal, upstreamRequestDuration)
}

var (
	keyMaterialFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "key_material_fetches_total",
			Help: "Upstream certificate and public-key fetches by result.",
		},
		[]string{"environment", "kind", "result"},
	)

	bearerTokenFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bearer_token_fetches_total",
			Help: "Token endpoint calls by result.",
		},
		[]string{"environment", "result"},
	)

	upstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Latency of calls to the payment provider.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"environment", "operation"},
	)
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// IncKeyMaterialFetch counts one upstream key material fetch.
func IncKeyMaterialFetch(environment, kind string, err error) {
	keyMaterialFetchesTotal.WithLabelValues(norm(environment), norm(kind), result(err)).Inc()
}

// IncBearerTokenFetch counts one token endpoint call.
func IncBearerTokenFetch(environment string, err error) {
	bearerTokenFetchesTotal.WithLabelValues(norm(environment), result(err)).Inc()
}

// ObserveUpstream records the latency of a provider call that started at start.
func ObserveUpstream(environment, operation string, start time.Time) {
	upstreamRequestDuration.WithLabelValues(norm(environment), norm(operation)).Observe(time.Since(start).Seconds())
}
