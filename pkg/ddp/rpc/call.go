package rpc

import (
	"sync"
	"time"
)

// CallKind distinguishes method calls from subscriptions.
type CallKind int

const (
	Method CallKind = iota
	Subscription
)

func (k CallKind) String() string {
	if k == Subscription {
		return "sub"
	}
	return "method"
}

// Call is the one-shot handle for a registered request.
type Call struct {
	ID   string
	Kind CallKind
	Name string

	owner   *Correlator
	started time.Time

	done        chan struct{}
	updated     chan struct{}
	resolveOnce sync.Once
	updateOnce  sync.Once

	result any
	err    error
}

func newCall(owner *Correlator, id string, kind CallKind, name string) *Call {
	return &Call{
		ID:      id,
		Kind:    kind,
		Name:    name,
		owner:   owner,
		started: time.Now(),
		done:    make(chan struct{}),
		updated: make(chan struct{}),
	}
}

// Done is closed when the call is resolved.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Updated is closed when the server reports that the writes of a method
// call are visible to this client.
func (c *Call) Updated() <-chan struct{} {
	return c.updated
}

// Reply returns the outcome of a resolved call and releases its slot. A
// method returns the server's result; a subscription returns nil once ready.
func (c *Call) Reply() (any, error) {
	select {
	case <-c.done:
	default:
		return nil, ErrPending
	}

	if c.owner != nil {
		c.owner.release(c)
	}
	return c.result, c.err
}

func (c *Call) resolve(result any, err error) bool {
	resolved := false
	c.resolveOnce.Do(func() {
		c.result = result
		c.err = err
		close(c.done)
		resolved = true
	})
	return resolved
}

func (c *Call) markUpdated() {
	c.updateOnce.Do(func() {
		close(c.updated)
	})
}

func (c *Call) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
