// Package tracing provides the OpenTelemetry tracer used around command
// execution. Exporter setup is left to the binary embedding dbflux
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fluxorio/dbflux"

// Tracer returns the dbflux tracer from the global provider
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartCommandSpan opens a span for one command execution
func StartCommandSpan(ctx context.Context, kind, description string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "dbflux.command",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.command.kind", kind),
			attribute.String("db.command.description", description),
		))
}

// EndCommandSpan records the outcome and closes the span
func EndCommandSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
