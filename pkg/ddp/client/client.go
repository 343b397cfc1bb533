// Package client is a high-level DDP client. It wires a session to a
// request correlator so that method calls and subscriptions read as plain
// blocking functions, and routes document changes to handlers by pattern.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/o11y"
	"github.com/tsarna/ddp/pkg/ddp/rpc"
	"github.com/tsarna/ddp/pkg/ddp/session"
	"github.com/tsarna/ddp/pkg/ddp/transport"
	"go.uber.org/zap"
)

// Client is a DDP client connection.
type Client struct {
	url         string
	logger      *zap.Logger
	dialTimeout time.Duration
	callTimeout time.Duration
	handler     Handler
	monitor     Monitor
	tracer      o11y.TracingProvider

	transport  transport.Transport
	session    *session.Session
	correlator *rpc.Correlator
	routes     *routes
}

var (
	_ session.Consumer = (*Client)(nil)
	_ session.Observer = (*Client)(nil)
)

// URL returns the server endpoint, or "" when a custom transport is used
// without a host or URL.
func (c *Client) URL() string {
	return c.url
}

// State returns the session state.
func (c *Client) State() session.State {
	return c.session.State()
}

// SessionToken returns the token from the most recent handshake. It can be
// passed to WithResumeSession on a later client.
func (c *Client) SessionToken() string {
	return c.session.Token()
}

// Pending returns the number of calls and subscriptions awaiting a reply.
func (c *Client) Pending() int {
	return c.correlator.Pending()
}

// Connect dials the server and completes the handshake. The handshake is
// bounded by the dial timeout as well as ctx.
func (c *Client) Connect(ctx context.Context) error {
	ctx, span := o11y.StartSpan(ctx, c.tracer, "ddp.connect", o11y.Label{Key: "ddp.url", Value: c.url})
	defer span.End()

	if err := c.session.Connect(ctx); err != nil {
		span.SetStatus(o11y.SpanStatusError, err.Error())
		return fmt.Errorf("failed to connect: %w", err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	if err := c.session.AwaitReady(readyCtx); err != nil {
		span.SetStatus(o11y.SpanStatusError, err.Error())
		if closeErr := c.session.Close(); closeErr != nil {
			c.logger.Debug("Close after failed handshake", zap.Error(closeErr))
		}
		return fmt.Errorf("handshake: %w", err)
	}

	span.SetStatus(o11y.SpanStatusOK, "")
	c.logger.Info("Connected", zap.String("url", c.url), zap.String("session", c.session.Token()))
	return nil
}

// Close disconnects. Pending calls fail with rpc.ErrConnectionClosed.
func (c *Client) Close() error {
	return c.session.Close()
}

// Run connects, calls fn and closes the client however fn returns.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context, c *Client) error) (err error) {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(ctx, c)
}

// Go sends a method call and returns without waiting for the result.
// Nil params are sent as an empty list.
func (c *Client) Go(ctx context.Context, method string, params ...any) (*rpc.Call, error) {
	if params == nil {
		params = []any{}
	}

	msg, call, err := c.correlator.NewMethod(method, params)
	if err != nil {
		return nil, err
	}

	if err := c.send(ctx, msg); err != nil {
		c.correlator.Forget(call.ID)
		return nil, err
	}
	return call, nil
}

// Call invokes a method and waits for its result. A server error reply is
// returned as a *MethodError.
func (c *Client) Call(ctx context.Context, method string, params ...any) (any, error) {
	ctx, span := o11y.StartSpan(ctx, c.tracer, "ddp.call", o11y.Label{Key: "ddp.method", Value: method})
	defer span.End()

	call, err := c.Go(ctx, method, params...)
	if err != nil {
		span.SetStatus(o11y.SpanStatusError, err.Error())
		return nil, err
	}
	span.SetAttributes(o11y.Label{Key: "ddp.id", Value: call.ID})

	result, err := c.await(ctx, call)
	if err != nil {
		err = asMethodError(method, err)
		span.SetStatus(o11y.SpanStatusError, err.Error())
		return nil, err
	}

	span.SetStatus(o11y.SpanStatusOK, "")
	return result, nil
}

// Subscribe starts a subscription and waits for the server to mark it
// ready. It returns the subscription id to pass to Unsubscribe.
func (c *Client) Subscribe(ctx context.Context, name string, params ...any) (string, error) {
	ctx, span := o11y.StartSpan(ctx, c.tracer, "ddp.subscribe", o11y.Label{Key: "ddp.subscription", Value: name})
	defer span.End()

	opt := message.None[[]any]()
	if len(params) > 0 {
		opt = message.Some(params)
	}

	msg, call, err := c.correlator.NewSub(name, opt)
	if err != nil {
		span.SetStatus(o11y.SpanStatusError, err.Error())
		return "", err
	}
	span.SetAttributes(o11y.Label{Key: "ddp.id", Value: call.ID})

	if err := c.send(ctx, msg); err != nil {
		c.correlator.Forget(call.ID)
		span.SetStatus(o11y.SpanStatusError, err.Error())
		return "", err
	}

	if _, err := c.await(ctx, call); err != nil {
		span.SetStatus(o11y.SpanStatusError, err.Error())
		return "", fmt.Errorf("subscription %s: %w", name, err)
	}

	span.SetStatus(o11y.SpanStatusOK, "")
	return call.ID, nil
}

// Unsubscribe stops a subscription started by Subscribe.
func (c *Client) Unsubscribe(ctx context.Context, id string) error {
	return c.send(ctx, message.NewUnsub(id))
}

// OnData registers a handler for document changes whose "collection/id"
// topic matches pattern. Patterns use MQTT wildcards, and named wildcards
// such as "tasks/+id" are extracted into DataEvent.Fields. The returned
// function removes the handler.
func (c *Client) OnData(pattern string, handler DataHandler) func() {
	return c.routes.add(pattern, handler)
}

func (c *Client) send(ctx context.Context, msg message.ClientMessage) error {
	err := c.session.Send(ctx, msg)
	if errors.Is(err, session.ErrNotReady) {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	return err
}

// await waits for call within the call timeout. A caller that gives up
// abandons the slot, so a late reply is reported as an anomaly.
func (c *Client) await(ctx context.Context, call *rpc.Call) (any, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	result, err := c.correlator.AwaitContext(ctx, call.ID)
	if errors.Is(err, rpc.ErrTimeout) {
		c.correlator.Forget(call.ID)
	}
	return result, err
}

// Consume implements session.Consumer.
func (c *Client) Consume(msg message.ServerMessage) {
	ctx := context.Background()

	if err := c.correlator.Dispatch(msg); err != nil {
		c.logger.Debug("Unmatched reply", zap.Error(err))
	}

	for pattern, err := range c.routes.dispatch(ctx, msg) {
		c.logger.Error("Data handler failed",
			zap.String("pattern", pattern),
			zap.String("msg", string(msg.Kind())),
			zap.Error(err))
	}

	if c.handler != nil {
		if err := c.handler.OnMessage(ctx, msg); err != nil {
			c.logger.Error("Message handler failed", zap.String("msg", string(msg.Kind())), zap.Error(err))
		}
	}
}

// OnStateChange implements session.Observer.
func (c *Client) OnStateChange(from, to session.State, err error) {
	ctx := context.Background()

	switch to {
	case session.Ready:
		if c.monitor != nil {
			c.monitor.OnConnect(ctx, c)
		}

	case session.Failed:
		c.logger.Warn("Handshake failed", zap.Error(err))
		if c.monitor != nil {
			c.monitor.OnFailed(ctx, c, err)
		}

	case session.Disconnected:
		c.correlator.CloseAll(err)

		var closeErr *session.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == transport.CloseNormal {
			err = nil
		}
		if err != nil {
			c.logger.Warn("Disconnected", zap.String("from", from.String()), zap.Error(err))
		} else {
			c.logger.Info("Disconnected", zap.String("from", from.String()))
		}
		if c.monitor != nil {
			c.monitor.OnDisconnect(ctx, c, err)
		}
	}
}
