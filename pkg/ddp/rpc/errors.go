package rpc

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownID is returned when an id has no slot: a Result for a request
	// that was never registered, or an Await on a consumed id.
	ErrUnknownID = errors.New("unknown request id")

	// ErrDuplicateID is returned when registering an id that is still in use.
	ErrDuplicateID = errors.New("duplicate request id")

	// ErrTimeout is returned when an await ends before the reply arrives.
	// The slot stays registered.
	ErrTimeout = errors.New("timed out waiting for reply")

	// ErrConnectionClosed resolves every pending slot when the session
	// disconnects.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrPending is returned by Call.Reply before the call is resolved.
	ErrPending = errors.New("call is still pending")

	// ErrMethodFailed is wrapped by a ServerError resolving a method call.
	ErrMethodFailed = errors.New("method failed")

	// ErrNosub is returned when the server refuses or ends a subscription.
	ErrNosub = errors.New("subscription stopped")

	// ErrRejected is wrapped by RejectedError.
	ErrRejected = errors.New("request rejected")
)

// ServerError carries the error value a server attached to a result or
// nosub. Meteor servers send an object with "error", "reason" and
// "details"; those are extracted when present.
type ServerError struct {
	Kind    CallKind
	Value   any
	Code    string
	Reason  string
	Details string
}

func newServerError(kind CallKind, value any) *ServerError {
	e := &ServerError{Kind: kind, Value: value}
	if m, ok := value.(map[string]any); ok {
		e.Code = stringify(m["error"])
		e.Reason = stringify(m["reason"])
		e.Details = stringify(m["details"])
	} else {
		e.Reason = stringify(value)
	}
	return e
}

func (e *ServerError) Error() string {
	switch {
	case e.Code != "" && e.Reason != "":
		return fmt.Sprintf("%s [%s]", e.Reason, e.Code)
	case e.Reason != "":
		return e.Reason
	case e.Code != "":
		return fmt.Sprintf("error %s", e.Code)
	default:
		return e.Unwrap().Error()
	}
}

func (e *ServerError) Unwrap() error {
	if e.Kind == Subscription {
		return ErrNosub
	}
	return ErrMethodFailed
}

// RejectedError reports an "error" message from the server naming the
// request as the offending message.
type RejectedError struct {
	Reason    string
	Offending map[string]any
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("request rejected: %s", e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
