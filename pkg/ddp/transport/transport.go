// Package transport carries DDP text frames between client and server.
//
// A Transport opens asynchronously and reports what happens to the
// connection through a Handler. The WebSocket implementation is the one used
// in production; tests substitute in-memory transports.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Close codes reported to Handler.OnClosed, following RFC 6455.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

var (
	// ErrNotConnected is returned by Send when the transport is not open.
	ErrNotConnected = errors.New("transport is not connected")

	// ErrAlreadyConnected is returned by Connect on an open transport.
	ErrAlreadyConnected = errors.New("transport is already connected")
)

// Handler receives connection events. OnOpened is delivered before any
// OnMessage, and OnClosed at most once per successful Connect.
type Handler interface {
	OnOpened()
	OnClosed(code int, reason string)
	OnMessage(data []byte)
}

// Transport is a bidirectional, message-framed text channel.
type Transport interface {
	// Connect opens the connection. On success the handler's OnOpened is
	// called, after which frames are delivered to OnMessage in arrival order.
	Connect(ctx context.Context, h Handler) error

	// Send queues a single text frame.
	Send(ctx context.Context, data []byte) error

	// Close shuts the connection down. Closing a closed transport is a no-op.
	Close() error
}

// ServerURL returns the DDP WebSocket endpoint for a host such as
// "localhost:3000".
func ServerURL(host string, secure bool) string {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/websocket", scheme, host)
}
