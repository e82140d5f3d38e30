// Tracing instrumentation for the engine.
package engine

import (
	"context"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// startTurnSpan starts a span for a single persona turn.
func startTurnSpan(ctx context.Context, name, personaID string) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, name)
	span.SetAttributes(
		attribute.String("turn.persona", personaID),
	)
	return ctx, span
}

// startBroadcastSpan starts a span covering a full broadcast fan-out.
func startBroadcastSpan(ctx context.Context, recipients int) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "turn.broadcast")
	span.SetAttributes(
		attribute.Int("broadcast.recipients", recipients),
	)
	return ctx, span
}
