package client

import (
	"fmt"
	"time"

	"github.com/tsarna/ddp/pkg/ddp/o11y"
	"github.com/tsarna/ddp/pkg/ddp/rpc"
	"github.com/tsarna/ddp/pkg/ddp/session"
	"github.com/tsarna/ddp/pkg/ddp/transport"
	"go.uber.org/zap"
)

const (
	defaultDialTimeout = 30 * time.Second
	defaultCallTimeout = 30 * time.Second
)

// ClientBuilder provides a fluent interface for building DDP clients.
type ClientBuilder struct {
	host            string
	secure          bool
	url             string
	version         string
	support         []string
	resumeSession   string
	logger          *zap.Logger
	dialTimeout     time.Duration
	callTimeout     time.Duration
	ids             rpc.IDGenerator
	handler         Handler
	monitor         Monitor
	metricsProvider o11y.MetricsProvider
	tracingProvider o11y.TracingProvider
	rateLimit       float64
	burst           int
	headers         map[string][]string
	transport       transport.Transport
}

// NewClient creates a new DDP client builder.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		logger:      zap.NewNop(),
		dialTimeout: defaultDialTimeout,
		callTimeout: defaultCallTimeout,
	}
}

// WithHost sets the server host, such as "localhost:3000". The endpoint is
// ws://host/websocket, or wss:// with WithSecure.
func (b *ClientBuilder) WithHost(host string) *ClientBuilder {
	b.host = host
	return b
}

// WithSecure selects wss:// for WithHost.
func (b *ClientBuilder) WithSecure(secure bool) *ClientBuilder {
	b.secure = secure
	return b
}

// WithURL sets the full WebSocket URL, overriding WithHost.
func (b *ClientBuilder) WithURL(url string) *ClientBuilder {
	b.url = url
	return b
}

// WithVersion sets the preferred protocol version. Default is "1".
func (b *ClientBuilder) WithVersion(version string) *ClientBuilder {
	b.version = version
	return b
}

// WithSupport sets the protocol versions offered.
func (b *ClientBuilder) WithSupport(versions ...string) *ClientBuilder {
	b.support = versions
	return b
}

// WithResumeSession offers a session token from an earlier connection.
func (b *ClientBuilder) WithResumeSession(token string) *ClientBuilder {
	b.resumeSession = token
	return b
}

// WithLogger sets the logger for the client and everything it builds.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialTimeout bounds the WebSocket dial and the handshake.
func (b *ClientBuilder) WithDialTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithCallTimeout sets how long Call and Subscribe wait for a reply.
// Zero waits for as long as the context allows.
func (b *ClientBuilder) WithCallTimeout(timeout time.Duration) *ClientBuilder {
	if timeout >= 0 {
		b.callTimeout = timeout
	}
	return b
}

// WithIDGenerator sets the request id generator.
func (b *ClientBuilder) WithIDGenerator(ids rpc.IDGenerator) *ClientBuilder {
	b.ids = ids
	return b
}

// WithHandler sets a handler for every inbound message.
func (b *ClientBuilder) WithHandler(handler Handler) *ClientBuilder {
	b.handler = handler
	return b
}

// WithMonitor sets an optional monitor that will receive client lifecycle events.
func (b *ClientBuilder) WithMonitor(monitor Monitor) *ClientBuilder {
	b.monitor = monitor
	return b
}

// WithMetricsProvider enables metrics for the transport and correlator.
func (b *ClientBuilder) WithMetricsProvider(provider o11y.MetricsProvider) *ClientBuilder {
	b.metricsProvider = provider
	return b
}

// WithTracingProvider enables spans around calls and subscriptions.
func (b *ClientBuilder) WithTracingProvider(provider o11y.TracingProvider) *ClientBuilder {
	b.tracingProvider = provider
	return b
}

// WithRateLimit paces outbound messages.
func (b *ClientBuilder) WithRateLimit(perSecond float64, burst int) *ClientBuilder {
	b.rateLimit = perSecond
	b.burst = burst
	return b
}

// WithHeaders adds HTTP headers to the WebSocket handshake.
func (b *ClientBuilder) WithHeaders(headers map[string][]string) *ClientBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	for key, values := range headers {
		b.headers[key] = values
	}
	return b
}

// WithTransport replaces the WebSocket transport. Headers and rate limit
// are ignored when a transport is given.
func (b *ClientBuilder) WithTransport(t transport.Transport) *ClientBuilder {
	b.transport = t
	return b
}

// Build creates and returns a new client with the configured options.
func (b *ClientBuilder) Build() (*Client, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	c := &Client{
		url:         b.url,
		logger:      b.logger,
		dialTimeout: b.dialTimeout,
		callTimeout: b.callTimeout,
		handler:     b.handler,
		monitor:     b.monitor,
		tracer:      b.tracingProvider,
		transport:   b.transport,
		routes:      &routes{},
	}

	if c.transport == nil {
		ws, err := transport.NewWebSocket().
			WithURL(b.url).
			WithLogger(b.logger).
			WithDialTimeout(b.dialTimeout).
			WithHeaders(b.headers).
			WithRateLimit(b.rateLimit, b.burst).
			WithMetricsProvider(b.metricsProvider).
			Build()
		if err != nil {
			return nil, err
		}
		c.transport = ws
	}

	correlator, err := rpc.NewCorrelator().
		WithIDGenerator(b.ids).
		WithLogger(b.logger).
		WithMetricsProvider(b.metricsProvider).
		Build()
	if err != nil {
		return nil, err
	}
	c.correlator = correlator

	s, err := session.NewSession().
		WithTransport(c.transport).
		WithLogger(b.logger).
		WithVersion(b.version).
		WithSupport(b.support...).
		WithResumeSession(b.resumeSession).
		WithConsumer(c).
		WithObserver(c).
		Build()
	if err != nil {
		return nil, err
	}
	c.session = s

	return c, nil
}

// IsValid checks that all required configuration is present.
func (b *ClientBuilder) IsValid() error {
	if b.url == "" && b.host != "" {
		b.url = transport.ServerURL(b.host, b.secure)
	}
	if b.url == "" && b.transport == nil {
		return fmt.Errorf("host or URL is required")
	}

	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.dialTimeout <= 0 {
		b.dialTimeout = defaultDialTimeout
	}
	if b.callTimeout < 0 {
		b.callTimeout = defaultCallTimeout
	}

	return nil
}
