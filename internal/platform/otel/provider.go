// Package otel exports nftgen generation spans over OTLP/HTTP.
package otel

import (
	"context"
	"strings"

	"github.com/thecardroom/nftgen/internal/platform/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// settings are read from the environment on every Setup call.
type settings struct {
	Endpoint string `env:"NFTGEN_OTEL_ENDPOINT"`
	Enabled  string `env:"NFTGEN_OTEL_ENABLED"`
}

func (s settings) exporting() bool {
	return s.Endpoint != "" && !strings.EqualFold(strings.TrimSpace(s.Enabled), "false")
}

// Setup installs a tracer provider that ships catalog and drop spans to
// NFTGEN_OTEL_ENDPOINT. Without an endpoint, or with NFTGEN_OTEL_ENABLED set
// to "false", the global no-op provider is left alone.
//
// The returned function flushes buffered spans; defer it.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	var s settings
	if err := config.ParseEnv(&s); err != nil {
		return noop, err
	}
	if !s.exporting() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(s.Endpoint))
	if err != nil {
		return noop, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, err
	}

	// A drop is a short batch job: keep every span.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}
