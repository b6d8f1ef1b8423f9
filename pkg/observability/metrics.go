package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus instruments scraped from cmd/bpmengine's
// /metrics endpoint. A single package-level instance is registered
// against the default registerer, matching promauto's usual
// register-at-package-init pattern.
var (
	// QueueDepth is the number of work items currently claimed and
	// in flight, per replica.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bpmflow",
		Subsystem: "dispatcher",
		Name:      "active_claims",
		Help:      "Work items currently claimed and in flight, per replica.",
	}, []string{"pod_id"})

	// ClaimsTotal counts work items claimed, per replica and selector.
	ClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bpmflow",
		Subsystem: "dispatcher",
		Name:      "claims_total",
		Help:      "Work items claimed, by replica and selector.",
	}, []string{"pod_id", "selector"})

	// RetryTotal counts handler retries, per activity.
	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bpmflow",
		Subsystem: "dispatcher",
		Name:      "retry_total",
		Help:      "Handler invocations that failed and were retried, by activity.",
	}, []string{"activity_id"})
)
