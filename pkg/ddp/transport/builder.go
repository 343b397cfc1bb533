package transport

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tsarna/ddp/pkg/ddp/o11y"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AuthorizationProvider is a function that returns an authorization header value.
// It receives a context and should return the authorization value (e.g., "Bearer token123")
// or an error if authorization cannot be obtained.
type AuthorizationProvider func(ctx context.Context) (string, error)

const (
	defaultDialTimeout      = 30 * time.Second
	defaultWriteChannelSize = 100
	defaultReadLimit        = 16 << 20
)

// WebSocketBuilder provides a fluent interface for building WebSocket transports.
type WebSocketBuilder struct {
	url              string
	logger           *zap.Logger
	dialTimeout      time.Duration
	writeChannelSize int
	readLimit        int64
	authProvider     AuthorizationProvider
	headers          map[string][]string
	rateLimit        rate.Limit
	burst            int
	metricsProvider  o11y.MetricsProvider
}

// NewWebSocket creates a new WebSocket transport builder.
func NewWebSocket() *WebSocketBuilder {
	return &WebSocketBuilder{
		dialTimeout:      defaultDialTimeout,
		logger:           zap.NewNop(),
		writeChannelSize: defaultWriteChannelSize,
		readLimit:        defaultReadLimit,
	}
}

// WithURL sets the WebSocket URL to connect to, typically from ServerURL.
func (b *WebSocketBuilder) WithURL(url string) *WebSocketBuilder {
	b.url = url
	return b
}

// WithLogger sets the logger for the transport.
func (b *WebSocketBuilder) WithLogger(logger *zap.Logger) *WebSocketBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialTimeout sets the timeout for establishing the WebSocket connection.
func (b *WebSocketBuilder) WithDialTimeout(timeout time.Duration) *WebSocketBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithWriteChannelSize sets the buffer size for the internal write channel.
// Default is 100.
func (b *WebSocketBuilder) WithWriteChannelSize(size int) *WebSocketBuilder {
	if size > 0 {
		b.writeChannelSize = size
	}
	return b
}

// WithReadLimit sets the largest inbound frame accepted, in bytes. Default
// is 16 MiB; larger frames close the connection.
func (b *WebSocketBuilder) WithReadLimit(limit int64) *WebSocketBuilder {
	if limit > 0 {
		b.readLimit = limit
	}
	return b
}

// WithAuthorization sets a static Authorization header value.
func (b *WebSocketBuilder) WithAuthorization(authHeader string) *WebSocketBuilder {
	b.authProvider = func(ctx context.Context) (string, error) {
		return authHeader, nil
	}
	return b
}

// WithAuthorizationProvider sets an authorization provider function.
// It is called on every Connect.
func (b *WebSocketBuilder) WithAuthorizationProvider(provider AuthorizationProvider) *WebSocketBuilder {
	b.authProvider = provider
	return b
}

// WithHeaders adds custom HTTP headers for the WebSocket handshake.
func (b *WebSocketBuilder) WithHeaders(headers map[string][]string) *WebSocketBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	for key, values := range headers {
		b.headers[key] = values
	}
	return b
}

// WithHeader sets a single HTTP header for the WebSocket handshake.
func (b *WebSocketBuilder) WithHeader(key, value string) *WebSocketBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	b.headers[key] = []string{value}
	return b
}

// WithRateLimit paces outbound frames to perSecond with the given burst.
// A non-positive rate disables pacing.
func (b *WebSocketBuilder) WithRateLimit(perSecond float64, burst int) *WebSocketBuilder {
	if perSecond <= 0 {
		b.rateLimit = 0
		b.burst = 0
		return b
	}
	if burst < 1 {
		burst = 1
	}
	b.rateLimit = rate.Limit(perSecond)
	b.burst = burst
	return b
}

// WithMetricsProvider enables transport metrics.
func (b *WebSocketBuilder) WithMetricsProvider(provider o11y.MetricsProvider) *WebSocketBuilder {
	b.metricsProvider = provider
	return b
}

// Build creates and returns a new WebSocket transport with the configured options.
func (b *WebSocketBuilder) Build() (*WebSocket, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	ws := &WebSocket{
		url:              b.url,
		logger:           b.logger,
		dialTimeout:      b.dialTimeout,
		writeChannelSize: b.writeChannelSize,
		readLimit:        b.readLimit,
		authProvider:     b.authProvider,
		headers:          b.headers,
		metrics:          NewMetrics(b.metricsProvider),
	}
	if b.rateLimit > 0 {
		ws.limiter = rate.NewLimiter(b.rateLimit, b.burst)
	}

	return ws, nil
}

// IsValid checks that all required configuration is present.
func (b *WebSocketBuilder) IsValid() error {
	if b.url == "" {
		return fmt.Errorf("URL is required")
	}

	u, err := url.Parse(b.url)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.dialTimeout <= 0 {
		b.dialTimeout = defaultDialTimeout
	}
	if b.writeChannelSize <= 0 {
		b.writeChannelSize = defaultWriteChannelSize
	}
	if b.readLimit <= 0 {
		b.readLimit = defaultReadLimit
	}

	return nil
}
