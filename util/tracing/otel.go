// Package tracing wires OpenTelemetry spans into the chain service and the miner.
// Until InitTracer installs a provider the global one is a no-op and spans cost
// next to nothing.
package tracing

import (
	"context"
	"time"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/settings"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/halocoin/halominer"

// InitTracer creates an OTLP/HTTP exporting provider and installs it globally. The
// caller owns the provider and must pass it to ShutdownTracer.
func InitTracer(ctx context.Context, tSettings *settings.Settings, version string) (*sdktrace.TracerProvider, error) {
	if tSettings.Tracing.CollectorURL == nil {
		return nil, errors.NewConfigurationError("tracing_collector_url is not set")
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(tSettings.Tracing.CollectorURL.Host),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, errors.NewProcessingError("failed to create OTLP exporter", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(tSettings.ClientName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, errors.NewProcessingError("failed to create resource", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tSettings.Tracing.SampleRate))),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// ShutdownTracer flushes buffered spans and stops tp.
func ShutdownTracer(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}

	if err := tp.ForceFlush(ctx); err != nil {
		return errors.NewProcessingError("failed to flush spans", err)
	}

	if err := tp.Shutdown(ctx); err != nil {
		return errors.NewProcessingError("failed to shutdown tracer", err)
	}

	return nil
}

// Start opens a span named name on the global provider.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan marks span as failed when err is set and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}
