package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies this library's tracer.
const tracerName = "github.com/kookworks/kgate"

// StartDispatchSpan opens a span around one event fan-out. The returned end
// function must be called when every handler has run. With no tracer
// provider installed this is effectively free: the global no-op provider
// hands back a non-recording span.
func StartDispatchSpan(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "event.dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("event.name", name)),
	)
	return ctx, func() { span.End() }
}

// StartSessionSpan opens a span around one connection attempt.
func StartSessionSpan(ctx context.Context, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "gateway.connect",
		trace.WithAttributes(attribute.Int("gateway.attempt", attempt)),
	)
}
