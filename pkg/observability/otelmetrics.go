package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter(instrumentationName)

// otelCounters are the otel-metric counters recorded alongside the
// Prometheus gauges in metrics.go: Prometheus serves the /metrics
// scrape target, otel's counters ride along any OTLP pipeline a
// deployment wires up independently of Prometheus.
var (
	claimsPerCycle metric.Int64Counter
	staleReclaims  metric.Int64Counter
	handlerRetries metric.Int64Counter
)

func init() {
	var err error
	claimsPerCycle, err = meter.Int64Counter("bpmflow.dispatcher.claims_per_cycle",
		metric.WithDescription("work items claimed per poll cycle"))
	if err != nil {
		claimsPerCycle = noopCounter()
	}
	staleReclaims, err = meter.Int64Counter("bpmflow.dispatcher.stale_reclaims",
		metric.WithDescription("work items released by the stale-claim sweep"))
	if err != nil {
		staleReclaims = noopCounter()
	}
	handlerRetries, err = meter.Int64Counter("bpmflow.dispatcher.handler_retries",
		metric.WithDescription("handler invocations that failed and were retried"))
	if err != nil {
		handlerRetries = noopCounter()
	}
}

func noopCounter() metric.Int64Counter {
	c, _ := otel.Meter("bpmflow-noop").Int64Counter("noop")
	return c
}

// RecordClaims increments the claims-per-cycle counter by n, tagged
// with the claiming worker's pod id.
func RecordClaims(ctx context.Context, podID string, n int) {
	if n <= 0 {
		return
	}
	claimsPerCycle.Add(ctx, int64(n), metric.WithAttributes(attribute.String("pod_id", podID)))
}

// RecordStaleReclaim increments the stale-reclaim counter by n.
func RecordStaleReclaim(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	staleReclaims.Add(ctx, int64(n))
}

// RecordHandlerRetry increments the handler-retry counter, tagged with
// the activity whose handler failed.
func RecordHandlerRetry(ctx context.Context, activityID string) {
	handlerRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("activity_id", activityID)))
}
