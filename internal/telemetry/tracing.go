// Package telemetry provides OpenTelemetry tracing setup and HTTP instrumentation.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// InstrumentationName names the tracer used for spans started by this service.
const InstrumentationName = "github.com/JakeFAU/pet-preview"

// Config describes the trace provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// SampleRatio is the fraction of root spans recorded; remote parents decide for their children.
	SampleRatio float64
}

// InitTracerProvider initializes the global trace provider and the W3C trace-context propagator.
// Exporters and span processors are supplied through opts; with none, spans are sampled and dropped.
func InitTracerProvider(ctx context.Context, cfg Config, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pet-preview"
	}
	attrs := resource.WithAttributes(semconv.ServiceName(cfg.ServiceName))
	if cfg.ServiceVersion != "" {
		attrs = resource.WithAttributes(semconv.ServiceName(cfg.ServiceName), semconv.ServiceVersion(cfg.ServiceVersion))
	}
	res, err := resource.New(ctx, attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	}
	tp := sdktrace.NewTracerProvider(append(base, opts...)...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
