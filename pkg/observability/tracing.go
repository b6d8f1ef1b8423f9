// Package observability wires distributed tracing spans and metrics
// counters around the engine's claim/dispatch/resolve/compensate path.
// Span and metric emission is always live (otel's package-level
// Tracer/Meter calls never fail), but without an SDK provider
// registered by the hosting process they resolve to otel's built-in
// no-op implementation: a deployment that wants real export wires a
// TracerProvider/MeterProvider in cmd/bpmengine and these calls start
// producing real spans/instruments with no code change here.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/codeready-toolchain/bpmflow"

var tracer = otel.Tracer(instrumentationName)

// StartSpan starts a span named name under ctx's current trace, tagged
// with attrs. The caller must call the returned end func exactly once,
// typically via defer, passing the operation's error (nil on success).
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
