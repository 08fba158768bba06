package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookVerificationsTotal) }

var webhookVerificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_verifications_total",
		Help: "Inbound webhook verification outcomes.",
	},
	[]string{"environment", "outcome", "code"},
)

// ObserveVerification records one verifier outcome. code is empty for accepted requests.
func ObserveVerification(environment string, accepted bool, code string) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	webhookVerificationsTotal.WithLabelValues(norm(environment), outcome, norm(code)).Inc()
}
