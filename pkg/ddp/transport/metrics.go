package transport

import (
	"context"
	"time"

	"github.com/tsarna/ddp/pkg/ddp/o11y"
)

// Metrics holds the instruments recorded by the WebSocket transport.
// A nil *Metrics records nothing.
type Metrics struct {
	// Connection metrics
	connections        o11y.Counter   // Connections established
	connected          o11y.Gauge     // 1 while connected, 0 otherwise
	connectionDuration o11y.Histogram // Lifetime of a connection
	connectionErrors   o11y.Counter   // Dial failures and abnormal closes

	// Frame metrics
	framesReceived o11y.Counter
	framesSent     o11y.Counter
	frameSize      o11y.Histogram
	writeErrors    o11y.Counter
	throttleWait   o11y.Histogram // Time spent waiting on the rate limiter
}

// NewMetrics creates the transport instruments from provider. If the
// provider is nil, returns nil (no metrics will be collected).
func NewMetrics(provider o11y.MetricsProvider) *Metrics {
	if provider == nil {
		return nil
	}

	return &Metrics{
		connections:        provider.Counter("ddp_transport_connections_total"),
		connected:          provider.Gauge("ddp_transport_connected"),
		connectionDuration: provider.Histogram("ddp_transport_connection_duration_seconds"),
		connectionErrors:   provider.Counter("ddp_transport_connection_errors_total"),

		framesReceived: provider.Counter("ddp_transport_frames_received_total"),
		framesSent:     provider.Counter("ddp_transport_frames_sent_total"),
		frameSize:      provider.Histogram("ddp_transport_frame_size_bytes"),
		writeErrors:    provider.Counter("ddp_transport_write_errors_total"),
		throttleWait:   provider.Histogram("ddp_transport_throttle_wait_seconds"),
	}
}

// RecordConnectionStart records an established connection.
func (m *Metrics) RecordConnectionStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.connections.Add(ctx, 1)
	m.connected.Set(ctx, 1)
}

// RecordConnectionEnd records a closed connection and how long it lived.
func (m *Metrics) RecordConnectionEnd(ctx context.Context, duration time.Duration) {
	if m == nil {
		return
	}
	m.connected.Set(ctx, 0)
	m.connectionDuration.Record(ctx, duration.Seconds())
}

// RecordConnectionError records a dial failure or abnormal close.
func (m *Metrics) RecordConnectionError(ctx context.Context, errorType string) {
	if m == nil {
		return
	}
	m.connectionErrors.Add(ctx, 1, o11y.Label{Key: "error_type", Value: errorType})
}

// RecordFrameReceived records an inbound frame.
func (m *Metrics) RecordFrameReceived(ctx context.Context, sizeBytes int) {
	if m == nil {
		return
	}
	m.framesReceived.Add(ctx, 1)
	m.frameSize.Record(ctx, float64(sizeBytes), o11y.Label{Key: "direction", Value: "received"})
}

// RecordFrameSent records an outbound frame.
func (m *Metrics) RecordFrameSent(ctx context.Context, sizeBytes int) {
	if m == nil {
		return
	}
	m.framesSent.Add(ctx, 1)
	m.frameSize.Record(ctx, float64(sizeBytes), o11y.Label{Key: "direction", Value: "sent"})
}

// RecordWriteError records a failed write.
func (m *Metrics) RecordWriteError(ctx context.Context) {
	if m == nil {
		return
	}
	m.writeErrors.Add(ctx, 1)
}

// RecordThrottle records time spent waiting for the outbound rate limiter.
func (m *Metrics) RecordThrottle(ctx context.Context, wait time.Duration) {
	if m == nil {
		return
	}
	m.throttleWait.Record(ctx, wait.Seconds())
}
