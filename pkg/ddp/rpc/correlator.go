// Package rpc correlates outbound method calls and subscriptions with the
// server replies that settle them.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/o11y"
	"go.uber.org/zap"
)

// Correlator tracks requests by id. A slot is registered before its
// request is sent and stays retrievable after resolution until the reply is
// consumed by Await, AwaitContext or Call.Reply.
type Correlator struct {
	ids     IDGenerator
	logger  *zap.Logger
	metrics *Metrics

	mu       sync.Mutex
	pending  map[string]*Call // awaiting result, ready or nosub
	settled  map[string]*Call // resolved, reply not yet consumed
	updating map[string]*Call // methods awaiting updated
}

// CorrelatorBuilder provides a fluent interface for building correlators.
type CorrelatorBuilder struct {
	ids             IDGenerator
	logger          *zap.Logger
	metricsProvider o11y.MetricsProvider
}

// NewCorrelator creates a new correlator builder.
func NewCorrelator() *CorrelatorBuilder {
	return &CorrelatorBuilder{
		ids:    SequentialIDs(),
		logger: zap.NewNop(),
	}
}

// WithIDGenerator sets the id generator. Default is SequentialIDs.
func (b *CorrelatorBuilder) WithIDGenerator(ids IDGenerator) *CorrelatorBuilder {
	if ids != nil {
		b.ids = ids
	}
	return b
}

// WithLogger sets the logger for the correlator.
func (b *CorrelatorBuilder) WithLogger(logger *zap.Logger) *CorrelatorBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithMetricsProvider enables correlator metrics.
func (b *CorrelatorBuilder) WithMetricsProvider(provider o11y.MetricsProvider) *CorrelatorBuilder {
	b.metricsProvider = provider
	return b
}

// Build creates the correlator.
func (b *CorrelatorBuilder) Build() (*Correlator, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	return &Correlator{
		ids:      b.ids,
		logger:   b.logger,
		metrics:  NewMetrics(b.metricsProvider),
		pending:  make(map[string]*Call),
		settled:  make(map[string]*Call),
		updating: make(map[string]*Call),
	}, nil
}

// IsValid checks the configuration, filling in defaults.
func (b *CorrelatorBuilder) IsValid() error {
	if b.ids == nil {
		b.ids = SequentialIDs()
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return nil
}

// NewMethod allocates an id, registers a slot for it and returns the method
// message to send.
func (c *Correlator) NewMethod(method string, params []any) (message.Method, *Call, error) {
	id := c.ids.NextID()
	call, err := c.Register(id, Method, method)
	if err != nil {
		return message.Method{}, nil, err
	}
	return message.NewMethod(id, method, params), call, nil
}

// NewSub allocates an id, registers a slot for it and returns the sub
// message to send.
func (c *Correlator) NewSub(name string, params message.Optional[[]any]) (message.Sub, *Call, error) {
	id := c.ids.NextID()
	call, err := c.Register(id, Subscription, name)
	if err != nil {
		return message.Sub{}, nil, err
	}
	return message.NewSub(id, name, params), call, nil
}

// Register creates a slot for an externally chosen id.
func (c *Correlator) Register(id string, kind CallKind, name string) (*Call, error) {
	c.mu.Lock()
	if _, ok := c.pending[id]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	if _, ok := c.settled[id]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}

	call := newCall(c, id, kind, name)
	c.pending[id] = call
	if kind == Method {
		c.updating[id] = call
	}
	count := len(c.pending)
	c.mu.Unlock()

	ctx := context.Background()
	c.metrics.RecordRequest(ctx, kind)
	c.metrics.RecordPending(ctx, count)

	return call, nil
}

// Pending returns the number of unresolved requests.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Lookup returns the call registered under id, resolved or not.
func (c *Correlator) Lookup(id string) (*Call, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookupLocked(id)
}

func (c *Correlator) lookupLocked(id string) (*Call, bool) {
	if call, ok := c.pending[id]; ok {
		return call, true
	}
	call, ok := c.settled[id]
	return call, ok
}

// Forget drops the slot for id without consuming its reply.
func (c *Correlator) Forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	delete(c.settled, id)
	delete(c.updating, id)
	count := len(c.pending)
	c.mu.Unlock()

	c.metrics.RecordPending(context.Background(), count)
}

// Dispatch applies a server message to the pending slots. It returns an
// error wrapping ErrUnknownID for a result nobody is waiting for; all other
// messages are accepted, including ids with no local slot.
func (c *Correlator) Dispatch(msg message.ServerMessage) error {
	switch m := msg.(type) {
	case message.Result:
		return c.dispatchResult(m)

	case message.Ready:
		for _, id := range m.Subs() {
			if !c.resolve(id, Subscription, nil, nil) {
				c.logger.Debug("Ready for subscription with no slot", zap.String("id", id))
			}
		}

	case message.Nosub:
		var err error = ErrNosub
		if value, ok := m.Error().Get(); ok {
			err = newServerError(Subscription, value)
		}
		if !c.resolve(m.ID(), Subscription, nil, err) {
			c.logger.Debug("Nosub for subscription with no slot", zap.String("id", m.ID()))
		}

	case message.Error:
		offending := m.OffendingPod()
		id, _ := offending["id"].(string)
		kind, known := offendingKind(offending)
		if id == "" || !known || !c.resolve(id, kind, nil, &RejectedError{Reason: m.Reason(), Offending: offending}) {
			c.logger.Warn("Server reported an error",
				zap.String("reason", m.Reason()),
				zap.Any("offending", offending))
		}

	case message.Updated:
		for _, id := range m.Methods() {
			c.markUpdated(id)
		}
	}

	return nil
}

func (c *Correlator) dispatchResult(m message.Result) error {
	var (
		result any
		err    error
	)
	if value, ok := m.Error().Get(); ok {
		err = newServerError(Method, value)
	} else {
		result, _ = m.Result().Get()
	}

	if c.resolve(m.ID(), Method, result, err) {
		return nil
	}

	c.logger.Warn("Result for unknown request", zap.String("id", m.ID()))
	c.metrics.RecordAnomaly(context.Background(), string(message.KindResult))
	return fmt.Errorf("%w: result for %q", ErrUnknownID, m.ID())
}

// resolve settles the pending slot for id if it holds a request of the
// given kind. It reports whether a slot was settled.
func (c *Correlator) resolve(id string, kind CallKind, result any, err error) bool {
	c.mu.Lock()
	call, ok := c.pending[id]
	ok = ok && call.Kind == kind
	if ok {
		delete(c.pending, id)
		c.settled[id] = call
	}
	count := len(c.pending)
	c.mu.Unlock()

	if !ok {
		return false
	}

	call.resolve(result, err)

	ctx := context.Background()
	c.metrics.RecordResolved(ctx, call.Kind, time.Since(call.started), err)
	c.metrics.RecordPending(ctx, count)

	return true
}

func (c *Correlator) markUpdated(id string) {
	c.mu.Lock()
	call, ok := c.updating[id]
	delete(c.updating, id)
	c.mu.Unlock()

	if ok {
		call.markUpdated()
	}
}

// release drops a settled call once its reply has been consumed.
func (c *Correlator) release(call *Call) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.settled[call.ID] == call {
		delete(c.settled, call.ID)
	}
	if call.Kind == Method && call.err != nil {
		delete(c.updating, call.ID)
	}
}

// Await blocks until the slot for id is resolved or timeout elapses. A
// non-positive timeout waits indefinitely. On timeout the slot stays
// registered and a later Await observes a late reply.
func (c *Correlator) Await(id string, timeout time.Duration) (any, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.AwaitContext(ctx, id)
}

// AwaitContext is Await bounded by ctx. If ctx ends first the error wraps
// both ErrTimeout and the context's error.
func (c *Correlator) AwaitContext(ctx context.Context, id string) (any, error) {
	call, ok := c.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownID, id)
	}

	select {
	case <-call.Done():
		return call.Reply()
	case <-ctx.Done():
		if call.isDone() {
			return call.Reply()
		}
		c.metrics.RecordTimeout(context.Background(), call.Kind)
		return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}

// CloseAll resolves every pending slot with an error wrapping
// ErrConnectionClosed and cause, if any.
func (c *Correlator) CloseAll(cause error) {
	err := ErrConnectionClosed
	if cause != nil && !errors.Is(cause, ErrConnectionClosed) {
		err = fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
	}

	c.mu.Lock()
	calls := make([]*Call, 0, len(c.pending))
	for id, call := range c.pending {
		calls = append(calls, call)
		c.settled[id] = call
	}
	clear(c.pending)
	clear(c.updating)
	c.mu.Unlock()

	for _, call := range calls {
		call.resolve(nil, err)
	}

	if len(calls) > 0 {
		c.logger.Info("Released pending requests", zap.Int("count", len(calls)), zap.Error(err))
	}
	c.metrics.RecordPending(context.Background(), 0)
}

// offendingKind maps the message named in an error's offendingMessage to the
// kind of request it would have registered.
func offendingKind(offending map[string]any) (CallKind, bool) {
	switch offending["msg"] {
	case string(message.KindMethod):
		return Method, true
	case string(message.KindSub):
		return Subscription, true
	default:
		return 0, false
	}
}
