// Package telemetry wires the process's tracer provider. This tool runs as
// a single local process with no collector to export to, so spans are
// recorded and emitted through the same structured logger as everything
// else rather than shipped over OTLP.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/iammorganparry/memorize-mcp"

// Setup installs a TracerProvider that logs completed spans at debug level
// and returns a shutdown func to flush it on exit.
func Setup(logger *slog.Logger) (shutdown func(context.Context) error) {
	exporter := &slogExporter{logger: logger}
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithSampler(tracesdk.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// Tracer returns the tracer registered under instrumentationName. No
// package in this module calls it, so no spans are recorded.
func Tracer() oteltrace.Tracer {
	return otel.Tracer(instrumentationName)
}
