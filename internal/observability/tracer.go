// Package observability provides OpenTelemetry tracing for the
// authorization runtime.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// InitTracer initializes the OpenTelemetry tracer.
func InitTracer(serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("0.1.0"),
			attribute.String("deployment.environment", "production"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(0.1),
		)),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the global tracer for the authorization runtime.
func Tracer() trace.Tracer {
	return otel.Tracer("cedarguard")
}

// CheckAttributes builds the semantic-convention attributes for a single
// authorization check span: principal.type, action.name, resource.type,
// decision, duration_ms.
func CheckAttributes(principalType, actionName, resourceType, decision string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("principal.type", principalType),
		attribute.String("action.name", actionName),
		attribute.String("resource.type", resourceType),
		attribute.String("decision", decision),
		attribute.Int64("duration_ms", durationMS),
	}
}

// StartCheckSpan starts a span for a single authorization check.
func StartCheckSpan(ctx context.Context, actionName string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "authorize."+actionName, trace.WithSpanKind(trace.SpanKindInternal))
}
