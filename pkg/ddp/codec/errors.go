package codec

import (
	"errors"
	"fmt"

	"github.com/tsarna/ddp/pkg/ddp/message"
)

var (
	// ErrDecode is wrapped by every error caused by a malformed pod.
	ErrDecode = errors.New("decode error")

	// ErrClassification is returned when no table row matches a pod's
	// discriminant or a message's type.
	ErrClassification = errors.New("unclassified message")
)

// DecodeError reports a required field that is missing or has the wrong type.
type DecodeError struct {
	Kind   message.Kind
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s message: field %q %s", e.Kind, e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}
