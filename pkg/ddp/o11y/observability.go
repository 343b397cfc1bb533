// Package o11y defines the metrics and tracing interfaces the DDP client
// records through. Implementations live elsewhere (see package otel); a nil
// provider turns collection off.
package o11y

import (
	"context"
)

// MetricsProvider abstracts metrics collection (can be implemented with OpenTelemetry, Prometheus, etc.)
type MetricsProvider interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// TracingProvider abstracts distributed tracing (can be implemented with OpenTelemetry, Jaeger, etc.)
type TracingProvider interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Counter represents a monotonically increasing metric
type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
}

// Histogram records distribution of values
type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

// Gauge represents a value that can go up and down
type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

// Span represents a unit of work in a trace
type Span interface {
	SetAttributes(labels ...Label)
	SetStatus(code SpanStatusCode, description string)
	End()
}

// Label represents a key-value pair for metrics and tracing
type Label struct {
	Key   string
	Value string
}

// SpanStatusCode represents the status of a span
type SpanStatusCode int

const (
	SpanStatusUnset SpanStatusCode = iota
	SpanStatusOK
	SpanStatusError
)

// StartSpan starts a span if provider is set. The returned span is never
// nil, so callers can defer End unconditionally.
func StartSpan(ctx context.Context, provider TracingProvider, name string, labels ...Label) (context.Context, Span) {
	if provider == nil {
		return ctx, noopSpan{}
	}
	ctx, span := provider.StartSpan(ctx, name)
	if len(labels) > 0 {
		span.SetAttributes(labels...)
	}
	return ctx, span
}

type noopSpan struct{}

func (noopSpan) SetAttributes(labels ...Label)                     {}
func (noopSpan) SetStatus(code SpanStatusCode, description string) {}
func (noopSpan) End()                                              {}
