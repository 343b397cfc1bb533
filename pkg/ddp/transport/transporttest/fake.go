// Package transporttest provides an in-memory Transport for tests. The test
// plays the server: it reads what the client sent with Next and injects
// frames with Deliver.
package transporttest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tsarna/ddp/pkg/ddp/codec"
	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/pod"
	"github.com/tsarna/ddp/pkg/ddp/transport"
)

// Timeout bounds how long Next waits for a frame.
var Timeout = 2 * time.Second

// Responder scripts a server. It is called with every message the client
// sends and returns the replies to deliver.
type Responder func(msg message.Message) []message.ServerMessage

// Accept is a Responder that completes every handshake with the given
// session token.
func Accept(session string) Responder {
	return func(msg message.Message) []message.ServerMessage {
		if msg.Kind() == message.KindConnect {
			return []message.ServerMessage{message.NewConnected(session)}
		}
		return nil
	}
}

// Fake is an in-memory transport.Transport.
type Fake struct {
	// ConnectErr, if set, is returned by Connect.
	ConnectErr error

	// SendErr, if set, is returned by Send.
	SendErr error

	// Responder, if set, answers client messages synchronously from Send.
	Responder Responder

	mu       sync.Mutex
	handler  transport.Handler
	open     bool
	connects int
	sent     chan []byte
}

var _ transport.Transport = (*Fake)(nil)

// NewFake creates a closed fake transport.
func NewFake() *Fake {
	return &Fake{sent: make(chan []byte, 64)}
}

// Connect implements transport.Transport.
func (f *Fake) Connect(ctx context.Context, h transport.Handler) error {
	if f.ConnectErr != nil {
		return f.ConnectErr
	}

	f.mu.Lock()
	if f.open {
		f.mu.Unlock()
		return transport.ErrAlreadyConnected
	}
	f.handler = h
	f.open = true
	f.connects++
	f.mu.Unlock()

	h.OnOpened()
	return nil
}

// Send implements transport.Transport.
func (f *Fake) Send(ctx context.Context, data []byte) error {
	if !f.IsOpen() {
		return transport.ErrNotConnected
	}
	if f.SendErr != nil {
		return f.SendErr
	}

	frame := make([]byte, len(data))
	copy(frame, data)

	if f.Responder != nil {
		return f.respond(frame)
	}

	select {
	case f.sent <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fake) respond(frame []byte) error {
	p, err := pod.Parse(frame)
	if err != nil {
		return err
	}
	m, err := codec.Client().Decode(p)
	if err != nil {
		return err
	}

	for _, reply := range f.Responder(m) {
		p, err := codec.Server().Encode(reply)
		if err != nil {
			return err
		}
		data, err := pod.Serialize(p)
		if err != nil {
			return err
		}
		f.Deliver(string(data))
	}
	return nil
}

// Close implements transport.Transport.
func (f *Fake) Close() error {
	f.Drop(transport.CloseNormal, "client disconnect")
	return nil
}

// IsOpen reports whether the fake is connected.
func (f *Fake) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Connects returns how many times Connect succeeded.
func (f *Fake) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Deliver injects an inbound frame.
func (f *Fake) Deliver(frame string) {
	f.mu.Lock()
	h := f.handler
	open := f.open
	f.mu.Unlock()

	if open {
		h.OnMessage([]byte(frame))
	}
}

// DeliverMessage encodes msg and injects it.
func (f *Fake) DeliverMessage(t testing.TB, msg message.ServerMessage) {
	t.Helper()

	p, err := codec.Server().Encode(msg)
	require.NoError(t, err)
	data, err := pod.Serialize(p)
	require.NoError(t, err)
	f.Deliver(string(data))
}

// Drop simulates the connection closing with the given code.
func (f *Fake) Drop(code int, reason string) {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return
	}
	f.open = false
	h := f.handler
	f.mu.Unlock()

	h.OnClosed(code, reason)
}

// Next returns the next frame the client sent. Frames answered by a
// Responder are not recorded.
func (f *Fake) Next(t testing.TB) string {
	t.Helper()

	select {
	case frame := <-f.sent:
		return string(frame)
	case <-time.After(Timeout):
		require.FailNow(t, "timed out waiting for client frame")
		return ""
	}
}

// NextMessage returns the next message the client sent, decoded.
func (f *Fake) NextMessage(t testing.TB) message.Message {
	t.Helper()

	p, err := pod.Parse([]byte(f.Next(t)))
	require.NoError(t, err)
	m, err := codec.Client().Decode(p)
	require.NoError(t, err)
	return m
}

// Handshake reads the client's connect message and accepts it with the
// given session token. It returns the connect message.
func (f *Fake) Handshake(t testing.TB, session string) message.Connect {
	t.Helper()

	m := f.NextMessage(t)
	connect, ok := m.(message.Connect)
	require.True(t, ok, "expected connect, got %s", m.Kind())

	f.DeliverMessage(t, message.NewConnected(session))
	return connect
}
