package codec

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/pod"
)

// Router classifies pods by discriminant and messages by Go type, and hands
// each to the matching Row. Its tables are built once and never change.
type Router struct {
	decoders map[message.Kind]Row
	encoders map[reflect.Type]Row
}

var (
	serverRouter = NewRouter(append(ServerRows(), HeartbeatRows()...)...)
	clientRouter = NewRouter(append(ClientRows(), HeartbeatRows()...)...)
	allRouter    = NewRouter(append(append(ClientRows(), ServerRows()...), HeartbeatRows()...)...)
)

// Server returns the router for messages a client receives.
func Server() *Router { return serverRouter }

// Client returns the router for messages a client sends.
func Client() *Router { return clientRouter }

// All returns a router that knows every message kind.
func All() *Router { return allRouter }

// NewRouter builds a router from rows. It panics if two rows share a kind or
// a type, since that is a programming error in the table.
func NewRouter(rows ...Row) *Router {
	r := &Router{
		decoders: make(map[message.Kind]Row, len(rows)),
		encoders: make(map[reflect.Type]Row, len(rows)),
	}

	for _, row := range rows {
		if _, exists := r.decoders[row.Kind]; exists {
			panic(fmt.Sprintf("codec: duplicate row for kind %q", row.Kind))
		}
		if _, exists := r.encoders[row.Type]; exists {
			panic(fmt.Sprintf("codec: duplicate row for type %s", row.Type))
		}
		r.decoders[row.Kind] = row
		r.encoders[row.Type] = row
	}

	return r
}

// Decode reconstructs the typed message held by a pod.
func (r *Router) Decode(p *pod.Pod) (message.Message, error) {
	kind, ok := p.Discriminant()
	if !ok {
		return nil, fmt.Errorf("%w: pod has no %q discriminant", ErrClassification, pod.DiscriminantKey)
	}

	row, ok := r.decoders[message.Kind(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrClassification, kind)
	}

	return row.Decode(p)
}

// Encode builds the pod for a message.
func (r *Router) Encode(m message.Message) (*pod.Pod, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", ErrClassification)
	}

	row, ok := r.encoders[reflect.TypeOf(m)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown message type %T", ErrClassification, m)
	}

	return row.Encode(m), nil
}

// Kinds lists the kinds the router can decode, sorted.
func (r *Router) Kinds() []message.Kind {
	kinds := make([]message.Kind, 0, len(r.decoders))
	for kind := range r.decoders {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// AcceptServerPod reports whether an inbound pod is a protocol message.
// Pods without a discriminant, such as the server_id greeting, are noise.
func AcceptServerPod(p *pod.Pod) bool {
	return p.Has(pod.DiscriminantKey)
}
