package telemetry

import (
	"context"
	"log/slog"

	tracesdk "go.opentelemetry.io/otel/sdk/trace"
)

// slogExporter satisfies tracesdk.SpanExporter by routing completed spans
// through the process's structured logger instead of a network collector.
type slogExporter struct {
	logger *slog.Logger
}

func (e *slogExporter) ExportSpans(ctx context.Context, spans []tracesdk.ReadOnlySpan) error {
	for _, span := range spans {
		e.logger.Debug("span",
			"name", span.Name(),
			"trace_id", span.SpanContext().TraceID().String(),
			"span_id", span.SpanContext().SpanID().String(),
			"duration_ms", span.EndTime().Sub(span.StartTime()).Milliseconds(),
			"status", span.Status().Code.String(),
		)
	}
	return nil
}

func (e *slogExporter) Shutdown(ctx context.Context) error {
	return nil
}
