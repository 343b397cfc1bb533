// Package pod provides the generic, ordered key/value form of a DDP message
// and its JSON text encoding.
package pod

import (
	"encoding/json"
	"reflect"
)

// DiscriminantKey is the key holding a message's kind.
const DiscriminantKey = "msg"

// Pod is an ordered string-keyed mapping. Keys keep the order in which they
// were first set. The zero value is an empty pod ready to use.
type Pod struct {
	keys   []string
	values map[string]any
}

// New returns an empty pod with room for n keys.
func New(n int) *Pod {
	return &Pod{
		keys:   make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// FromMap builds a pod from a map. Keys are inserted in the order given by
// keys first, then any remaining map keys in unspecified order.
func FromMap(m map[string]any, keys ...string) *Pod {
	p := New(len(m))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			p.Set(k, v)
		}
	}
	for k, v := range m {
		if !p.Has(k) {
			p.Set(k, v)
		}
	}
	return p
}

// Set stores v under key, appending the key if it is new.
func (p *Pod) Set(key string, v any) *Pod {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
	return p
}

// Get returns the value stored under key and whether it is present.
func (p *Pod) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is present.
func (p *Pod) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Delete removes key.
func (p *Pod) Delete(key string) {
	if !p.Has(key) {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in order.
func (p *Pod) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of keys.
func (p *Pod) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Map returns the contents as a plain map. The map shares values with the
// pod.
func (p *Pod) Map() map[string]any {
	out := make(map[string]any, p.Len())
	if p == nil {
		return out
	}
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Discriminant returns the "msg" value if it is a string.
func (p *Pod) Discriminant() (string, bool) {
	v, ok := p.Get(DiscriminantKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Equal reports whether two pods hold the same keys and equivalent values,
// ignoring key order. Values are equivalent when they are deeply equal or
// encode to the same JSON, so a []string and the []any parsed from it match.
func (p *Pod) Equal(other *Pod) bool {
	if p.Len() != other.Len() {
		return false
	}
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		ov, ok := other.Get(k)
		if !ok || !equivalent(v, ov) {
			return false
		}
	}
	return true
}

func equivalent(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}
