package client

import (
	"context"
	"strings"
	"sync"

	"github.com/amir-yaghoubi/mqttpattern"
	"github.com/tsarna/ddp/pkg/ddp/message"
)

// Handler receives every message the server sends, after the client has
// applied it to pending calls and data routes. It runs on the session
// goroutine; use handlers.NewAsyncHandler for slow work.
type Handler interface {
	OnMessage(ctx context.Context, msg message.ServerMessage) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg message.ServerMessage) error

func (f HandlerFunc) OnMessage(ctx context.Context, msg message.ServerMessage) error {
	return f(ctx, msg)
}

// Monitor receives client lifecycle events.
type Monitor interface {
	// OnConnect is called when a handshake completes.
	OnConnect(ctx context.Context, client *Client)

	// OnDisconnect is called when the connection closes. err is nil for a
	// normal close.
	OnDisconnect(ctx context.Context, client *Client, err error)

	// OnFailed is called when the server refuses the protocol version.
	OnFailed(ctx context.Context, client *Client, err error)
}

// DataEvent is a document change routed to an OnData handler.
type DataEvent struct {
	Collection string
	ID         string
	Message    message.ServerMessage

	// Fields holds values extracted by named wildcards in the pattern,
	// such as "tasks/+id".
	Fields map[string]string
}

// DataHandler handles document changes matching a pattern.
type DataHandler func(ctx context.Context, event DataEvent) error

// document is implemented by the data messages: added, addedBefore,
// changed, movedBefore and removed.
type document interface {
	Collection() string
	ID() string
}

// Topic returns the routing topic for a document, "collection/id".
func Topic(collection, id string) string {
	return collection + "/" + id
}

type matcher func(topic string) (bool, map[string]string)

func makeMatcher(pattern string) matcher {
	if mqttpattern.HasExtractions(pattern) {
		return func(topic string) (bool, map[string]string) {
			if mqttpattern.Matches(pattern, topic) {
				return true, mqttpattern.Extract(pattern, topic)
			}
			return false, nil
		}
	}

	if !strings.ContainsAny(pattern, "+#") {
		// exact match
		return func(topic string) (bool, map[string]string) {
			return topic == pattern, nil
		}
	}

	return func(topic string) (bool, map[string]string) {
		return mqttpattern.Matches(pattern, topic), nil
	}
}

type route struct {
	id      uint64
	pattern string
	match   matcher
	handler DataHandler
}

// routes dispatches data messages to handlers by topic pattern.
type routes struct {
	mu     sync.RWMutex
	next   uint64
	routes []route
}

func (r *routes) add(pattern string, handler DataHandler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	id := r.next
	r.routes = append(r.routes, route{
		id:      id,
		pattern: pattern,
		match:   makeMatcher(pattern),
		handler: handler,
	})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, rt := range r.routes {
			if rt.id == id {
				r.routes = append(r.routes[:i:i], r.routes[i+1:]...)
				return
			}
		}
	}
}

// dispatch calls every matching handler and returns the errors they
// report, keyed by pattern.
func (r *routes) dispatch(ctx context.Context, msg message.ServerMessage) map[string]error {
	switch msg.Kind() {
	case message.KindAdded, message.KindAddedBefore, message.KindChanged,
		message.KindMovedBefore, message.KindRemoved:
	default:
		return nil
	}

	doc, ok := msg.(document)
	if !ok {
		return nil
	}
	topic := Topic(doc.Collection(), doc.ID())

	r.mu.RLock()
	matched := append([]route(nil), r.routes...)
	r.mu.RUnlock()

	var errs map[string]error
	for _, rt := range matched {
		hit, fields := rt.match(topic)
		if !hit {
			continue
		}
		err := rt.handler(ctx, DataEvent{
			Collection: doc.Collection(),
			ID:         doc.ID(),
			Message:    msg,
			Fields:     fields,
		})
		if err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[rt.pattern] = err
		}
	}
	return errs
}
