package pod

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotObject is returned by Parse when a frame is valid JSON but not an
// object.
var ErrNotObject = errors.New("frame is not a JSON object")

// Serialize encodes a pod as a JSON object, keeping key order.
func Serialize(p *Pod) ([]byte, error) {
	return p.MarshalJSON()
}

// Parse decodes a JSON object frame into a pod, keeping the order of the
// top-level keys. Nested objects decode to map[string]any and numbers to
// float64.
func Parse(data []byte) (*Pod, error) {
	p := New(8)
	if err := p.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return p, nil
}

// MarshalJSON implements json.Marshaler.
func (p *Pod) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		v, _ := p.Get(k)
		value, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal field %q: %w", k, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Existing keys are kept and
// overwritten by keys present in data.
func (p *Pod) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrNotObject
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("invalid frame: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("invalid frame: unexpected token %v", tok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("invalid value for %q: %w", key, err)
		}
		p.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("invalid frame: trailing data")
	}
	return nil
}
