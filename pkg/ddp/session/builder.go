package session

import (
	"fmt"

	"github.com/tsarna/ddp/pkg/ddp/codec"
	"github.com/tsarna/ddp/pkg/ddp/transport"
	"go.uber.org/zap"
)

// DefaultVersion is the protocol version offered when none is configured.
const DefaultVersion = "1"

// DefaultSupport lists the versions offered when none are configured.
var DefaultSupport = []string{"1", "pre2", "pre1"}

const defaultBufferSize = 256

// SessionBuilder provides a fluent interface for building sessions.
type SessionBuilder struct {
	transport  transport.Transport
	logger     *zap.Logger
	version    string
	support    []string
	token      string
	resume     bool
	bufferSize int
	consumer   Consumer
	observer   Observer
}

// NewSession creates a new session builder.
func NewSession() *SessionBuilder {
	return &SessionBuilder{
		logger:     zap.NewNop(),
		version:    DefaultVersion,
		resume:     true,
		bufferSize: defaultBufferSize,
	}
}

// WithTransport sets the transport the session runs over.
func (b *SessionBuilder) WithTransport(t transport.Transport) *SessionBuilder {
	b.transport = t
	return b
}

// WithLogger sets the logger for the session.
func (b *SessionBuilder) WithLogger(logger *zap.Logger) *SessionBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithVersion sets the preferred protocol version.
func (b *SessionBuilder) WithVersion(version string) *SessionBuilder {
	if version != "" {
		b.version = version
	}
	return b
}

// WithSupport sets the protocol versions offered in order of preference.
func (b *SessionBuilder) WithSupport(versions ...string) *SessionBuilder {
	b.support = append([]string(nil), versions...)
	return b
}

// WithResumeSession offers token on the first connect so that the server
// can resume an earlier session.
func (b *SessionBuilder) WithResumeSession(token string) *SessionBuilder {
	b.token = token
	return b
}

// WithResume controls whether a session token is offered on connect, both
// one set with WithResumeSession and one received from the server. Enabled
// by default.
func (b *SessionBuilder) WithResume(resume bool) *SessionBuilder {
	b.resume = resume
	return b
}

// WithEventBufferSize sets how many transport events may be queued ahead of
// the session goroutine.
func (b *SessionBuilder) WithEventBufferSize(size int) *SessionBuilder {
	if size > 0 {
		b.bufferSize = size
	}
	return b
}

// WithConsumer sets the consumer of inbound server messages.
func (b *SessionBuilder) WithConsumer(consumer Consumer) *SessionBuilder {
	b.consumer = consumer
	return b
}

// WithObserver sets an observer for state transitions.
func (b *SessionBuilder) WithObserver(observer Observer) *SessionBuilder {
	b.observer = observer
	return b
}

// Build creates the session. It starts Disconnected.
func (b *SessionBuilder) Build() (*Session, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	return &Session{
		transport:  b.transport,
		logger:     b.logger,
		version:    b.version,
		support:    b.support,
		resume:     b.resume,
		bufferSize: b.bufferSize,
		token:      b.token,
		consumer:   b.consumer,
		observer:   b.observer,
		server:     codec.Server(),
		client:     codec.Client(),
	}, nil
}

// IsValid checks that all required configuration is present.
func (b *SessionBuilder) IsValid() error {
	if b.transport == nil {
		return fmt.Errorf("transport is required")
	}

	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.version == "" {
		b.version = DefaultVersion
	}
	if len(b.support) == 0 {
		b.support = append([]string(nil), DefaultSupport...)
	}
	if b.bufferSize <= 0 {
		b.bufferSize = defaultBufferSize
	}

	return nil
}
