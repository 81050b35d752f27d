// Package otel instruments the delegation engine with OpenTelemetry spans
// and metrics. Provider/exporter wiring is left to the host process; this
// package only uses the API, which no-ops without a configured SDK.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "delegate"

// StartDelegationSpan starts the span covering one full delegation.
func StartDelegationSpan(ctx context.Context, requestID, signature, priority string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "delegation",
		trace.WithAttributes(
			attribute.String("delegation.request_id", requestID),
			attribute.String("delegation.signature", signature),
			attribute.String("delegation.priority", priority),
		),
	)
}

// StartAttemptSpan starts a span for one execution attempt within a delegation.
func StartAttemptSpan(ctx context.Context, executorType string, seedValue uint64, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "attempt",
		trace.WithAttributes(
			attribute.String("attempt.executor_type", executorType),
			attribute.Int64("attempt.seed", int64(seedValue)),
			attribute.Int("attempt.number", attempt),
		),
	)
}
