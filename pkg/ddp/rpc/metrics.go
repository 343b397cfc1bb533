package rpc

import (
	"context"
	"time"

	"github.com/tsarna/ddp/pkg/ddp/o11y"
)

// Metrics holds the correlator's instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	pending   o11y.Gauge     // Requests awaiting a reply
	requests  o11y.Counter   // Requests registered, by kind
	latency   o11y.Histogram // Time from registration to resolution
	timeouts  o11y.Counter   // Awaits that timed out
	anomalies o11y.Counter   // Replies for ids with no slot
}

// NewMetrics creates the correlator instruments from provider. If the
// provider is nil, returns nil (no metrics will be collected).
func NewMetrics(provider o11y.MetricsProvider) *Metrics {
	if provider == nil {
		return nil
	}

	return &Metrics{
		pending:   provider.Gauge("ddp_rpc_pending"),
		requests:  provider.Counter("ddp_rpc_requests_total"),
		latency:   provider.Histogram("ddp_rpc_latency_seconds"),
		timeouts:  provider.Counter("ddp_rpc_timeouts_total"),
		anomalies: provider.Counter("ddp_rpc_anomalies_total"),
	}
}

// RecordPending updates the pending request count.
func (m *Metrics) RecordPending(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.pending.Set(ctx, float64(count))
}

// RecordRequest records a newly registered request.
func (m *Metrics) RecordRequest(ctx context.Context, kind CallKind) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, o11y.Label{Key: "kind", Value: kind.String()})
}

// RecordResolved records how long a request took to resolve.
func (m *Metrics) RecordResolved(ctx context.Context, kind CallKind, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.latency.Record(ctx, duration.Seconds(),
		o11y.Label{Key: "kind", Value: kind.String()},
		o11y.Label{Key: "outcome", Value: outcome})
}

// RecordTimeout records an await that timed out.
func (m *Metrics) RecordTimeout(ctx context.Context, kind CallKind) {
	if m == nil {
		return
	}
	m.timeouts.Add(ctx, 1, o11y.Label{Key: "kind", Value: kind.String()})
}

// RecordAnomaly records a reply that matched no slot.
func (m *Metrics) RecordAnomaly(ctx context.Context, messageKind string) {
	if m == nil {
		return
	}
	m.anomalies.Add(ctx, 1, o11y.Label{Key: "kind", Value: messageKind})
}
