// Package session drives one DDP connection: it performs the connect
// handshake, encodes outbound messages, and decodes inbound frames for a
// single consumer.
//
// All transport callbacks are queued and handled by one goroutine per
// connection, so state changes and message delivery happen in transport
// order without locks around the consumer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tsarna/ddp/pkg/ddp/codec"
	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/pod"
	"github.com/tsarna/ddp/pkg/ddp/transport"
	"go.uber.org/zap"
)

// State is the connection state of a Session.
type State int32

const (
	Disconnected State = iota
	Connecting
	AwaitingHandshake
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case AwaitingHandshake:
		return "awaiting-handshake"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrNotReady is returned when sending a non-connect message before the
	// handshake has completed.
	ErrNotReady = errors.New("session is not ready")

	// ErrBusy is returned by Connect when the session is not Disconnected.
	ErrBusy = errors.New("session is already connected")

	// ErrDisconnected is wrapped by CloseError.
	ErrDisconnected = errors.New("session disconnected")

	// ErrHandshakeFailed is wrapped by HandshakeError.
	ErrHandshakeFailed = errors.New("handshake failed")
)

// HandshakeError reports a "failed" reply to connect. Version is the
// protocol version the server proposed instead.
type HandshakeError struct {
	Version string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake failed: server proposed version %q", e.Version)
}

func (e *HandshakeError) Unwrap() error {
	return ErrHandshakeFailed
}

// CloseError reports that the transport closed.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("session disconnected (code %d)", e.Code)
	}
	return fmt.Sprintf("session disconnected (code %d): %s", e.Code, e.Reason)
}

func (e *CloseError) Unwrap() error {
	return ErrDisconnected
}

// Consumer receives every decoded server message in arrival order. It is
// called from the session goroutine and must not call Session.Close.
type Consumer interface {
	Consume(msg message.ServerMessage)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(msg message.ServerMessage)

func (f ConsumerFunc) Consume(msg message.ServerMessage) { f(msg) }

// Observer is told about state transitions. err is a *HandshakeError on
// Failed and a *CloseError on Disconnected, nil otherwise.
type Observer interface {
	OnStateChange(from, to State, err error)
}

// Session is a client-side DDP session bound to a Transport.
type Session struct {
	transport  transport.Transport
	logger     *zap.Logger
	version    string
	support    []string
	resume     bool
	bufferSize int
	consumer   Consumer
	observer   Observer
	server     *codec.Router
	client     *codec.Router

	mu        sync.Mutex
	state     State
	token     string
	current   *connection
	settled   chan struct{}
	settleErr error
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Token returns the session token of the most recent handshake, or the
// resume token the session was built with.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Connect opens the transport. The handshake completes asynchronously; use
// AwaitReady to wait for it.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Disconnected {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrBusy, state)
	}
	c := newConnection(s.bufferSize)
	from := s.state
	s.state = Connecting
	s.current = c
	s.settled = make(chan struct{})
	s.settleErr = nil
	s.mu.Unlock()

	s.notify(from, Connecting, nil)
	go s.run(c)

	if err := s.transport.Connect(ctx, c); err != nil {
		c.OnClosed(transport.CloseAbnormal, err.Error())
		<-c.finished
		return fmt.Errorf("failed to open transport: %w", err)
	}

	return nil
}

// AwaitReady blocks until the current handshake settles. It returns nil once
// the session is Ready, a *HandshakeError if the server refused the version,
// or a *CloseError if the transport closed first.
func (s *Session) AwaitReady(ctx context.Context) error {
	s.mu.Lock()
	settled := s.settled
	s.mu.Unlock()

	if settled == nil {
		return ErrNotReady
	}

	select {
	case <-settled:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settleErr != nil {
		return s.settleErr
	}
	if s.state != Ready {
		return fmt.Errorf("%w: session is %s", ErrNotReady, s.state)
	}
	return nil
}

// Send encodes and transmits msg. A connect may only be sent while the
// handshake is in progress; every other message requires the session to be
// Ready. Nothing can be sent once the handshake has Failed.
func (s *Session) Send(ctx context.Context, msg message.ClientMessage) error {
	state := s.State()

	if _, isConnect := msg.(message.Connect); isConnect {
		if state != Connecting && state != AwaitingHandshake {
			return fmt.Errorf("%w: session is %s", ErrNotReady, state)
		}
	} else if state != Ready {
		return fmt.Errorf("%w: session is %s", ErrNotReady, state)
	}

	return s.write(ctx, msg)
}

// Close closes the transport and waits for the session to reach
// Disconnected.
func (s *Session) Close() error {
	s.mu.Lock()
	c := s.current
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	err := s.transport.Close()
	c.OnClosed(transport.CloseNormal, "client disconnect")
	<-c.finished

	return err
}

func (s *Session) write(ctx context.Context, msg message.ClientMessage) error {
	p, err := s.client.Encode(msg)
	if err != nil {
		return err
	}
	data, err := pod.Serialize(p)
	if err != nil {
		return err
	}

	if ce := s.logger.Check(zap.DebugLevel, "Sending DDP message"); ce != nil {
		ce.Write(zap.String("kind", string(msg.Kind())), zap.ByteString("frame", data))
	}

	return s.transport.Send(ctx, data)
}

func (s *Session) setState(to State, err error) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	s.notify(from, to, err)
}

func (s *Session) notify(from, to State, err error) {
	if from == to {
		return
	}

	s.logger.Debug("Session state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to))

	if s.observer != nil {
		s.observer.OnStateChange(from, to, err)
	}
}

// settle releases AwaitReady callers. Only the first call per connection
// has an effect.
func (s *Session) settle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.settled:
	default:
		s.settleErr = err
		close(s.settled)
	}
}
