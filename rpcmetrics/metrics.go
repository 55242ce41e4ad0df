// Package rpcmetrics wires OpenTelemetry tracing and metrics into the
// connection driver and dispatcher (SPEC_FULL.md §4.9), grounded on the
// teacher's services/trace/lsp/metrics.go instrument set. Unlike the teacher
// (a package-level tracer/meter initialized once via sync.Once), every
// instrument here is instance-scoped and injected into the Connection —
// the same "no hidden global state" move spec.md §9 mandates for the
// logger applies equally to metrics.
package rpcmetrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metrics bundles the tracer, meter, and instruments a Connection records
// against over its lifetime. The zero value is not usable; use New.
type Metrics struct {
	tracer trace.Tracer
	meter  metric.Meter

	requestsTotal      metric.Int64Counter
	cancellationsTotal metric.Int64Counter
	pendingRequests    metric.Int64UpDownCounter
	handlerDuration    metric.Float64Histogram
	schedulerQueueWait metric.Float64Histogram
}

// New constructs instruments scoped under name (e.g.
// "github.com/tailbeam/rpcengine"), drawn from the currently-installed
// global otel providers (otel.SetTracerProvider/SetMeterProvider) — which
// default to no-ops until a caller configures an SDK, matching the
// teacher's own "safe by default" behavior.
func New(name string) (*Metrics, error) {
	tracer := otel.Tracer(name)
	meter := otel.Meter(name)

	m := &Metrics{tracer: tracer, meter: meter}

	var err error
	m.requestsTotal, err = meter.Int64Counter(
		"rpc_requests_total",
		metric.WithDescription("Total inbound requests dispatched, by method and outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.cancellationsTotal, err = meter.Int64Counter(
		"rpc_cancellations_total",
		metric.WithDescription("Total cancellations observed, by direction (inbound/outbound)"),
	)
	if err != nil {
		return nil, err
	}

	m.pendingRequests, err = meter.Int64UpDownCounter(
		"rpc_pending_requests",
		metric.WithDescription("Outstanding outgoing requests awaiting a response"),
	)
	if err != nil {
		return nil, err
	}

	m.handlerDuration, err = meter.Float64Histogram(
		"rpc_handler_duration_seconds",
		metric.WithDescription("Handler invocation latency, by method"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.schedulerQueueWait, err = meter.Float64Histogram(
		"rpc_scheduler_queue_wait_seconds",
		metric.WithDescription("Time an item waited in the scheduler queue before starting, by process type"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// StartRequestSpan opens a span for one dispatched Request or Notification.
func (m *Metrics) StartRequestSpan(ctx context.Context, method, processType string, id string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("rpc.method", method),
		attribute.String("rpc.process_type", processType),
	}
	if id != "" {
		attrs = append(attrs, attribute.String("rpc.id", id))
	}
	return m.tracer.Start(ctx, "rpc.dispatch", trace.WithAttributes(attrs...))
}

// EndRequestSpan closes span, recording the dispatch outcome and the
// rpc_requests_total / rpc_handler_duration_seconds instruments.
func (m *Metrics) EndRequestSpan(ctx context.Context, span trace.Span, method, outcome string, duration time.Duration) {
	span.SetAttributes(attribute.String("rpc.outcome", outcome))
	span.End()

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	)
	m.requestsTotal.Add(ctx, 1, attrs)
	m.handlerDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("method", method)))
}

// RecordCancellation increments rpc_cancellations_total for direction, which
// should be either "inbound" or "outbound".
func (m *Metrics) RecordCancellation(ctx context.Context, direction string) {
	m.cancellationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", direction)))
}

// RequestRegistered increments the pending-requests gauge when an outgoing
// request enters the correlation table.
func (m *Metrics) RequestRegistered(ctx context.Context) {
	m.pendingRequests.Add(ctx, 1)
}

// RequestSettled decrements the pending-requests gauge when an outgoing
// request's future settles, for any reason.
func (m *Metrics) RequestSettled(ctx context.Context) {
	m.pendingRequests.Add(ctx, -1)
}

// RecordSchedulerWait records how long an item waited in the scheduler
// queue before its Run began.
func (m *Metrics) RecordSchedulerWait(ctx context.Context, processType string, wait time.Duration) {
	m.schedulerQueueWait.Record(ctx, wait.Seconds(), metric.WithAttributes(attribute.String("process_type", processType)))
}
