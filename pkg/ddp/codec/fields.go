package codec

import (
	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/pod"
)

// fieldReader extracts typed fields from a pod, remembering the first
// failure so that a decoder can read every field and check once.
type fieldReader struct {
	kind message.Kind
	pod  *pod.Pod
	err  error
}

func newFieldReader(kind message.Kind, p *pod.Pod) *fieldReader {
	return &fieldReader{kind: kind, pod: p}
}

func (r *fieldReader) fail(field, reason string) {
	if r.err == nil {
		r.err = &DecodeError{Kind: r.kind, Field: field, Reason: reason}
	}
}

func (r *fieldReader) required(field string) (any, bool) {
	v, ok := r.pod.Get(field)
	if !ok {
		r.fail(field, "is missing")
	}
	return v, ok
}

func (r *fieldReader) value(field string) any {
	v, _ := r.required(field)
	return v
}

func (r *fieldReader) optValue(field string) message.Optional[any] {
	if v, ok := r.pod.Get(field); ok {
		return message.Some(v)
	}
	return message.None[any]()
}

func (r *fieldReader) str(field string) string {
	v, ok := r.required(field)
	if !ok {
		return ""
	}
	return r.asString(field, v)
}

func (r *fieldReader) optStr(field string) message.Optional[string] {
	v, ok := r.pod.Get(field)
	if !ok {
		return message.None[string]()
	}
	return message.Some(r.asString(field, v))
}

func (r *fieldReader) strs(field string) []string {
	v, ok := r.required(field)
	if !ok {
		return nil
	}
	return r.asStrings(field, v)
}

func (r *fieldReader) optStrs(field string) message.Optional[[]string] {
	v, ok := r.pod.Get(field)
	if !ok {
		return message.None[[]string]()
	}
	return message.Some(r.asStrings(field, v))
}

func (r *fieldReader) list(field string) []any {
	v, ok := r.required(field)
	if !ok {
		return nil
	}
	return r.asList(field, v)
}

func (r *fieldReader) optList(field string) message.Optional[[]any] {
	v, ok := r.pod.Get(field)
	if !ok {
		return message.None[[]any]()
	}
	return message.Some(r.asList(field, v))
}

func (r *fieldReader) object(field string) map[string]any {
	v, ok := r.required(field)
	if !ok {
		return nil
	}
	return r.asObject(field, v)
}

func (r *fieldReader) optObject(field string) message.Optional[map[string]any] {
	v, ok := r.pod.Get(field)
	if !ok {
		return message.None[map[string]any]()
	}
	return message.Some(r.asObject(field, v))
}

func (r *fieldReader) asString(field string, v any) string {
	s, ok := v.(string)
	if !ok {
		r.fail(field, "must be a string")
	}
	return s
}

func (r *fieldReader) asStrings(field string, v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				r.fail(field, "must be a list of strings")
				return nil
			}
			out[i] = s
		}
		return out
	default:
		r.fail(field, "must be a list of strings")
		return nil
	}
}

func (r *fieldReader) asList(field string, v any) []any {
	l, ok := v.([]any)
	if !ok {
		r.fail(field, "must be a list")
	}
	return l
}

func (r *fieldReader) asObject(field string, v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case *pod.Pod:
		return t.Map()
	default:
		r.fail(field, "must be an object")
		return nil
	}
}

// setOptional stores a present optional value under field.
func setOptional[T any](p *pod.Pod, field string, o message.Optional[T]) {
	if v, ok := o.Get(); ok {
		p.Set(field, v)
	}
}
