package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_decisions_total",
		Help: "Total admission decisions by outcome and policy.",
	}, []string{"outcome", "policy"})

	storeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admission_store_failures_total",
		Help: "Quota store errors answered with a fail-closed rejection.",
	})

	activeBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "admission_active_blocks",
		Help: "Number of currently blocked IPs, permanent and temporary.",
	})
)

// Decision outcomes for RecordDecision.
const (
	OutcomeAllowed     = "allowed"
	OutcomeLimited     = "limited"
	OutcomeBlocked     = "blocked"
	OutcomeThrottled   = "throttled"
	OutcomeFailedClose = "failed_closed"
)

// RecordDecision counts one admission outcome for a policy or operation.
func RecordDecision(outcome, policy string) {
	decisionsTotal.WithLabelValues(outcome, policy).Inc()
}

// RecordStoreFailure counts one fail-closed store error. Health tooling
// alerts on this counter rising.
func RecordStoreFailure() {
	storeFailuresTotal.Inc()
}
