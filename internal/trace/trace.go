// Package trace wires optional OpenTelemetry tracing for loop runs. When no
// OTLP endpoint is configured the tracer is a no-op and costs nothing.
package trace

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// tracerName identifies spans emitted by this module.
const tracerName = "taskloop"

// endpointEnv is the standard OTLP env var gating export.
const endpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

// Setup initializes the global tracer provider. Returns a shutdown function
// that flushes pending spans; callers defer it. Without the endpoint env var
// this is a no-op.
func Setup(ctx context.Context) (func(context.Context) error, error) {
	if os.Getenv(endpointEnv) == "" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating otlp exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Second)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// StartTaskSpan opens a span covering one agent execution for a task.
func StartTaskSpan(ctx context.Context, taskID, backend string) (context.Context, oteltrace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "taskloop.execute",
		oteltrace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("executor.backend", backend),
		))
}

// EndTaskSpan records the outcome and closes the span.
func EndTaskSpan(span oteltrace.Span, exitCode int, timedOut bool) {
	span.SetAttributes(
		attribute.Int("task.exit_code", exitCode),
		attribute.Bool("task.timed_out", timedOut),
	)
	span.End()
}
