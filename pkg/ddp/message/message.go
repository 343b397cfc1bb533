package message

import (
	"errors"
	"reflect"
)

// Kind is the value of the "msg" discriminant field of a DDP message.
type Kind string

// Client to Server message kinds
const (
	KindConnect Kind = "connect"
	KindMethod  Kind = "method"
	KindSub     Kind = "sub"
	KindUnsub   Kind = "unsub"
)

// Server to Client message kinds
const (
	KindAdded       Kind = "added"
	KindAddedBefore Kind = "addedBefore"
	KindChanged     Kind = "changed"
	KindConnected   Kind = "connected"
	KindError       Kind = "error"
	KindFailed      Kind = "failed"
	KindMovedBefore Kind = "movedBefore"
	KindNosub       Kind = "nosub"
	KindReady       Kind = "ready"
	KindRemoved     Kind = "removed"
	KindResult      Kind = "result"
	KindUpdated     Kind = "updated"
)

// Heartbeat kinds, sent in both directions
const (
	KindPing Kind = "ping"
	KindPong Kind = "pong"
)

var (
	// ErrNotPresent is returned when reading an optional field that is absent.
	ErrNotPresent = errors.New("field not present")

	// ErrInvalidMessage is returned when a message is constructed in
	// violation of its invariants.
	ErrInvalidMessage = errors.New("invalid message")
)

// Message is implemented by every DDP message variant.
type Message interface {
	Kind() Kind
}

// ClientMessage is a message a client sends to a server.
type ClientMessage interface {
	Message
	clientMessage()
}

// ServerMessage is a message a server sends to a client.
type ServerMessage interface {
	Message
	serverMessage()
}

// Equal reports whether two messages are the same variant with equal fields.
func Equal(a, b Message) bool {
	return reflect.DeepEqual(a, b)
}
