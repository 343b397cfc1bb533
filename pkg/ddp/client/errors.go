package client

import (
	"errors"
	"fmt"

	"github.com/tsarna/ddp/pkg/ddp/rpc"
)

var (
	// ErrNotConnected is returned by calls made before Connect or after Close.
	ErrNotConnected = errors.New("client not connected")
)

// MethodError is returned by Call when the server answers with an error.
type MethodError struct {
	Method string
	Err    *rpc.ServerError
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("method %s: %s", e.Method, e.Err)
}

func (e *MethodError) Unwrap() error {
	return e.Err
}

// asMethodError converts a server error reply into a *MethodError and
// leaves every other error alone.
func asMethodError(method string, err error) error {
	var serverErr *rpc.ServerError
	if errors.As(err, &serverErr) && serverErr.Kind == rpc.Method {
		return &MethodError{Method: method, Err: serverErr}
	}
	return err
}
