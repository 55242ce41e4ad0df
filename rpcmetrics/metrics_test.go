package rpcmetrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func collect(reader *sdkmetric.ManualReader) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	return rm, err
}

func metricNames(rm metricdata.ResourceMetrics) []string {
	var names []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}
	return names
}

func hasMetric(rm metricdata.ResourceMetrics, name string) bool {
	for _, n := range metricNames(rm) {
		if n == name {
			return true
		}
	}
	return false
}

func TestNew_RegistersAllInstrumentsWithoutError(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prevMeterProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prevMeterProvider) })

	m, err := New("test.rpcengine")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m == nil {
		t.Fatal("New returned nil Metrics")
	}
}

func TestEndRequestSpan_RecordsCounterAndHistogram(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prevMeterProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(meterProvider)
	t.Cleanup(func() { otel.SetMeterProvider(prevMeterProvider) })

	tracerProvider := sdktrace.NewTracerProvider()
	prevTracerProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tracerProvider)
	t.Cleanup(func() { otel.SetTracerProvider(prevTracerProvider) })

	m, err := New("test.rpcengine")
	if err != nil {
		t.Fatal(err)
	}

	ctx, span := m.StartRequestSpan(context.Background(), "ping", "parallel", "1")
	m.EndRequestSpan(ctx, span, "ping", "success", 5*time.Millisecond)

	rm, err := collect(reader)
	if err != nil {
		t.Fatal(err)
	}
	if !hasMetric(rm, "rpc_requests_total") {
		t.Fatalf("expected rpc_requests_total to be recorded; got metrics: %v", metricNames(rm))
	}
	if !hasMetric(rm, "rpc_handler_duration_seconds") {
		t.Fatalf("expected rpc_handler_duration_seconds to be recorded; got metrics: %v", metricNames(rm))
	}
}

func TestRequestRegisteredAndSettled_TrackPendingGauge(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prevMeterProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prevMeterProvider) })

	m, err := New("test.rpcengine")
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	m.RequestRegistered(ctx)
	m.RequestRegistered(ctx)
	m.RequestSettled(ctx)

	rm, err := collect(reader)
	if err != nil {
		t.Fatal(err)
	}
	if !hasMetric(rm, "rpc_pending_requests") {
		t.Fatalf("expected rpc_pending_requests to be recorded; got metrics: %v", metricNames(rm))
	}
}

func TestRecordCancellation_DoesNotPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prevMeterProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prevMeterProvider) })

	m, err := New("test.rpcengine")
	if err != nil {
		t.Fatal(err)
	}
	m.RecordCancellation(context.Background(), "inbound")
	m.RecordCancellation(context.Background(), "outbound")
}
