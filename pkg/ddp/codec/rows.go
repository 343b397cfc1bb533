package codec

import (
	"reflect"

	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/pod"
)

// Row binds one message kind to its Go type and both directions of the pod
// codec. Adding a message kind means adding one Row.
type Row struct {
	Kind   message.Kind
	Type   reflect.Type
	Decode func(p *pod.Pod) (message.Message, error)
	Encode func(m message.Message) *pod.Pod
}

// newRow builds a Row for the message type M. The encoder receives a pod
// that already carries the discriminant and appends fields in wire order.
func newRow[M message.Message](kind message.Kind, decode func(r *fieldReader) M, encode func(m M, p *pod.Pod)) Row {
	return newCheckedRow(kind, func(r *fieldReader) (M, error) { return decode(r), nil }, encode)
}

// newCheckedRow is newRow for messages whose construction can fail.
func newCheckedRow[M message.Message](kind message.Kind, decode func(r *fieldReader) (M, error), encode func(m M, p *pod.Pod)) Row {
	return Row{
		Kind: kind,
		Type: reflect.TypeOf((*M)(nil)).Elem(),
		Decode: func(p *pod.Pod) (message.Message, error) {
			r := newFieldReader(kind, p)
			m, err := decode(r)
			if r.err != nil {
				return nil, r.err
			}
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		Encode: func(m message.Message) *pod.Pod {
			p := pod.New(5)
			p.Set(pod.DiscriminantKey, string(kind))
			encode(m.(M), p)
			return p
		},
	}
}

// ClientRows returns the rows of every message a client sends.
func ClientRows() []Row {
	return []Row{
		newRow(message.KindConnect,
			func(r *fieldReader) message.Connect {
				return message.NewConnect(r.str("version"), r.optStrs("support"), r.optStr("session"))
			},
			func(m message.Connect, p *pod.Pod) {
				p.Set("version", m.Version())
				setOptional(p, "support", m.Support())
				setOptional(p, "session", m.Session())
			}),
		newRow(message.KindMethod,
			func(r *fieldReader) message.Method {
				return message.NewMethod(r.str("id"), r.str("method"), r.list("params"))
			},
			func(m message.Method, p *pod.Pod) {
				p.Set("id", m.ID())
				p.Set("method", m.Method())
				p.Set("params", m.Params())
			}),
		newRow(message.KindSub,
			func(r *fieldReader) message.Sub {
				return message.NewSub(r.str("id"), r.str("name"), r.optList("params"))
			},
			func(m message.Sub, p *pod.Pod) {
				p.Set("id", m.ID())
				p.Set("name", m.Name())
				setOptional(p, "params", m.Params())
			}),
		newRow(message.KindUnsub,
			func(r *fieldReader) message.Unsub {
				return message.NewUnsub(r.str("id"))
			},
			func(m message.Unsub, p *pod.Pod) {
				p.Set("id", m.ID())
			}),
	}
}

// ServerRows returns the rows of every message a server sends.
func ServerRows() []Row {
	return []Row{
		newRow(message.KindAdded,
			func(r *fieldReader) message.Added {
				return message.NewAdded(r.str("collection"), r.str("id"), r.optObject("fields"))
			},
			func(m message.Added, p *pod.Pod) {
				p.Set("collection", m.Collection())
				p.Set("id", m.ID())
				setOptional(p, "fields", m.Fields())
			}),
		newRow(message.KindAddedBefore,
			func(r *fieldReader) message.AddedBefore {
				return message.NewAddedBefore(r.str("collection"), r.str("id"), r.value("before"), r.optObject("fields"))
			},
			func(m message.AddedBefore, p *pod.Pod) {
				p.Set("collection", m.Collection())
				p.Set("id", m.ID())
				p.Set("before", m.Before())
				setOptional(p, "fields", m.Fields())
			}),
		newRow(message.KindChanged,
			func(r *fieldReader) message.Changed {
				return message.NewChanged(r.str("collection"), r.str("id"), r.optStrs("cleared"), r.optObject("fields"))
			},
			func(m message.Changed, p *pod.Pod) {
				p.Set("collection", m.Collection())
				p.Set("id", m.ID())
				setOptional(p, "cleared", m.Cleared())
				setOptional(p, "fields", m.Fields())
			}),
		newRow(message.KindConnected,
			func(r *fieldReader) message.Connected {
				return message.NewConnected(r.str("session"))
			},
			func(m message.Connected, p *pod.Pod) {
				p.Set("session", m.Session())
			}),
		newRow(message.KindError,
			func(r *fieldReader) message.Error {
				return message.NewError(r.str("reason"), r.object("offendingMessage"))
			},
			func(m message.Error, p *pod.Pod) {
				p.Set("reason", m.Reason())
				p.Set("offendingMessage", m.OffendingPod())
			}),
		newRow(message.KindFailed,
			func(r *fieldReader) message.Failed {
				return message.NewFailed(r.str("version"))
			},
			func(m message.Failed, p *pod.Pod) {
				p.Set("version", m.Version())
			}),
		newRow(message.KindMovedBefore,
			func(r *fieldReader) message.MovedBefore {
				return message.NewMovedBefore(r.str("collection"), r.str("id"), r.value("before"))
			},
			func(m message.MovedBefore, p *pod.Pod) {
				p.Set("collection", m.Collection())
				p.Set("id", m.ID())
				p.Set("before", m.Before())
			}),
		newRow(message.KindNosub,
			func(r *fieldReader) message.Nosub {
				return message.NewNosub(r.str("id"), r.optValue("error"))
			},
			func(m message.Nosub, p *pod.Pod) {
				p.Set("id", m.ID())
				setOptional(p, "error", m.Error())
			}),
		newRow(message.KindReady,
			func(r *fieldReader) message.Ready {
				return message.NewReady(r.strs("subs"))
			},
			func(m message.Ready, p *pod.Pod) {
				p.Set("subs", m.Subs())
			}),
		newRow(message.KindRemoved,
			func(r *fieldReader) message.Removed {
				return message.NewRemoved(r.str("collection"), r.str("id"))
			},
			func(m message.Removed, p *pod.Pod) {
				p.Set("collection", m.Collection())
				p.Set("id", m.ID())
			}),
		newResultRow(),
		newRow(message.KindUpdated,
			func(r *fieldReader) message.Updated {
				return message.NewUpdated(r.strs("methods"))
			},
			func(m message.Updated, p *pod.Pod) {
				p.Set("methods", m.Methods())
			}),
	}
}

// HeartbeatRows returns the rows of ping and pong, which both peers send.
func HeartbeatRows() []Row {
	return []Row{
		newRow(message.KindPing,
			func(r *fieldReader) message.Ping {
				return message.NewPing(r.optStr("id"))
			},
			func(m message.Ping, p *pod.Pod) {
				setOptional(p, "id", m.ID())
			}),
		newRow(message.KindPong,
			func(r *fieldReader) message.Pong {
				return message.NewPong(r.optStr("id"))
			},
			func(m message.Pong, p *pod.Pod) {
				setOptional(p, "id", m.ID())
			}),
	}
}

func newResultRow() Row {
	return newCheckedRow(message.KindResult,
		func(r *fieldReader) (message.Result, error) {
			m, err := message.NewResult(r.str("id"), r.optValue("error"), r.optValue("result"))
			if err != nil {
				return m, &DecodeError{Kind: message.KindResult, Field: "result", Reason: "or error must be present, but not both"}
			}
			return m, nil
		},
		func(m message.Result, p *pod.Pod) {
			p.Set("id", m.ID())
			setOptional(p, "error", m.Error())
			setOptional(p, "result", m.Result())
		})
}
