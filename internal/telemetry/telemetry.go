// Package telemetry wires OpenTelemetry tracing. Consultation and advisor
// call spans are exported over OTLP gRPC when enabled.
package telemetry

import (
	"context"
	"fmt"

	"github.com/agentoven/boardroom/internal/config"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ShutdownFunc flushes and stops the exporter.
type ShutdownFunc func(context.Context) error

// Init sets up OpenTelemetry tracing with OTLP gRPC exporter. When tracing
// is disabled the returned shutdown is a no-op and the global no-op tracer
// provider stays in place.
func Init(ctx context.Context, cfg config.TelemetryConfig, version string) (ShutdownFunc, error) {
	if !cfg.Enabled || cfg.OTLPEndpoint == "" {
		log.Info().Msg("🔕 OpenTelemetry disabled")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("endpoint", cfg.OTLPEndpoint).
		Str("service", cfg.ServiceName).
		Msg("📡 OpenTelemetry tracing initialized")

	return tp.Shutdown, nil
}
