package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/transport"
	"github.com/tsarna/ddp/pkg/ddp/transport/transporttest"
	"go.uber.org/zap/zaptest"
)

type recordingConsumer struct {
	messages chan message.ServerMessage
}

func newRecordingConsumer() *recordingConsumer {
	return &recordingConsumer{messages: make(chan message.ServerMessage, 32)}
}

func (c *recordingConsumer) Consume(msg message.ServerMessage) {
	c.messages <- msg
}

func (c *recordingConsumer) next(t *testing.T) message.ServerMessage {
	t.Helper()
	select {
	case m := <-c.messages:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

type transition struct {
	from, to State
	err      error
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []transition
}

func (o *recordingObserver) OnStateChange(from, to State, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, transition{from, to, err})
}

func (o *recordingObserver) states() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []State
	for _, tr := range o.transitions {
		out = append(out, tr.to)
	}
	return out
}

func (o *recordingObserver) last() transition {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transitions[len(o.transitions)-1]
}

type fixture struct {
	fake     *transporttest.Fake
	consumer *recordingConsumer
	observer *recordingObserver
	session  *Session
}

func newFixture(t *testing.T, configure ...func(*SessionBuilder)) *fixture {
	t.Helper()

	f := &fixture{
		fake:     transporttest.NewFake(),
		consumer: newRecordingConsumer(),
		observer: &recordingObserver{},
	}

	builder := NewSession().
		WithTransport(f.fake).
		WithLogger(zaptest.NewLogger(t)).
		WithConsumer(f.consumer).
		WithObserver(f.observer)
	for _, c := range configure {
		c(builder)
	}

	s, err := builder.Build()
	require.NoError(t, err)
	f.session = s
	t.Cleanup(func() { s.Close() })

	return f
}

func (f *fixture) connect(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, f.session.Connect(context.Background()))
	f.fake.Handshake(t, token)
	require.NoError(t, f.session.AwaitReady(context.Background()))
}

func TestSessionBuilder(t *testing.T) {
	t.Run("transport is required", func(t *testing.T) {
		_, err := NewSession().Build()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "transport is required")
	})

	t.Run("defaults", func(t *testing.T) {
		s, err := NewSession().WithTransport(transporttest.NewFake()).WithVersion("").Build()
		require.NoError(t, err)
		assert.Equal(t, DefaultVersion, s.version)
		assert.Equal(t, DefaultSupport, s.support)
		assert.True(t, s.resume)
		assert.Equal(t, Disconnected, s.State())
	})

	t.Run("fluent interface returns same builder", func(t *testing.T) {
		b := NewSession()
		assert.Same(t, b, b.WithTransport(transporttest.NewFake()))
		assert.Same(t, b, b.WithVersion("1"))
		assert.Same(t, b, b.WithSupport("1"))
		assert.Same(t, b, b.WithResumeSession("x"))
		assert.Same(t, b, b.WithResume(false))
		assert.Same(t, b, b.WithEventBufferSize(4))
		assert.Same(t, b, b.WithLogger(nil))
	})
}

func TestHandshake(t *testing.T) {
	t.Run("connected makes the session ready", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.session.Connect(context.Background()))
		assert.Equal(t, `{"msg":"connect","version":"1","support":["pre2","pre1"]}`, f.fake.Next(t))

		f.fake.Deliver(`{"msg":"connected","session":"abc"}`)
		require.NoError(t, f.session.AwaitReady(context.Background()))

		assert.Equal(t, Ready, f.session.State())
		assert.Equal(t, "abc", f.session.Token())
		assert.Equal(t, []State{Connecting, AwaitingHandshake, Ready}, f.observer.states())

		assert.Equal(t, message.NewConnected("abc"), f.consumer.next(t))
	})

	t.Run("failed surfaces the proposed version", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.session.Connect(context.Background()))
		f.fake.Next(t)
		f.fake.Deliver(`{"msg":"failed","version":"2"}`)

		err := f.session.AwaitReady(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrHandshakeFailed)

		var handshakeErr *HandshakeError
		require.ErrorAs(t, err, &handshakeErr)
		assert.Equal(t, "2", handshakeErr.Version)
		assert.Equal(t, Failed, f.session.State())

		err = f.session.Send(context.Background(), message.NewMethod("1", "m", nil))
		assert.ErrorIs(t, err, ErrNotReady)

		err = f.session.Send(context.Background(), message.NewConnect("1", message.None[[]string](), message.None[string]()))
		assert.ErrorIs(t, err, ErrNotReady)

		assert.ErrorIs(t, f.session.Connect(context.Background()), ErrBusy)
	})

	t.Run("failed after ready is ignored", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t, "abc")
		f.consumer.next(t)

		f.fake.Deliver(`{"msg":"failed","version":"2"}`)
		f.consumer.next(t)

		assert.Equal(t, Ready, f.session.State())
		assert.Equal(t, []State{Connecting, AwaitingHandshake, Ready}, f.observer.states())
		require.NoError(t, f.session.Send(context.Background(), message.NewMethod("1", "m", nil)))
	})

	t.Run("connect cannot be resent once ready", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t, "abc")

		err := f.session.Send(context.Background(), message.NewConnect("1", message.None[[]string](), message.None[string]()))
		assert.ErrorIs(t, err, ErrNotReady)
	})

	t.Run("connect that cannot be written closes the transport", func(t *testing.T) {
		f := newFixture(t)
		f.fake.SendErr = errors.New("broken pipe")

		require.NoError(t, f.session.Connect(context.Background()))

		err := f.session.AwaitReady(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken pipe")

		assert.Eventually(t, func() bool {
			return f.session.State() == Disconnected
		}, 2*time.Second, 5*time.Millisecond)
		assert.False(t, f.fake.IsOpen())

		f.fake.SendErr = nil
		f.connect(t, "later")
		assert.Equal(t, Ready, f.session.State())
	})

	t.Run("concurrent connects", func(t *testing.T) {
		f := newFixture(t)

		const n = 8
		errs := make(chan error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- f.session.Connect(context.Background())
			}()
		}
		wg.Wait()
		close(errs)

		var ok, busy int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrBusy):
				busy++
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, n-1, busy)
		assert.Equal(t, 1, f.fake.Connects())
	})

	t.Run("transport closing before handshake", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.session.Connect(context.Background()))
		f.fake.Next(t)
		f.fake.Drop(transport.CloseAbnormal, "reset")

		err := f.session.AwaitReady(context.Background())
		assert.ErrorIs(t, err, ErrDisconnected)

		var closeErr *CloseError
		require.ErrorAs(t, err, &closeErr)
		assert.Equal(t, transport.CloseAbnormal, closeErr.Code)
		assert.Equal(t, "reset", closeErr.Reason)
	})

	t.Run("transport fails to open", func(t *testing.T) {
		f := newFixture(t)
		f.fake.ConnectErr = errors.New("refused")

		err := f.session.Connect(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "refused")
		assert.Equal(t, Disconnected, f.session.State())

		f.fake.ConnectErr = nil
		f.connect(t, "later")
		assert.Equal(t, Ready, f.session.State())
	})

	t.Run("await ready respects context", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.session.Connect(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, f.session.AwaitReady(ctx), context.DeadlineExceeded)
	})

	t.Run("await ready before connect", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.session.AwaitReady(context.Background()), ErrNotReady)
	})
}

func TestSend(t *testing.T) {
	f := newFixture(t)

	err := f.session.Send(context.Background(), message.NewSub("1", "tasks", message.None[[]any]()))
	assert.ErrorIs(t, err, ErrNotReady)

	f.connect(t, "abc")

	require.NoError(t, f.session.Send(context.Background(), message.NewMethod("7", "add", []any{1.0, 2.0})))
	assert.Equal(t, `{"msg":"method","id":"7","method":"add","params":[1,2]}`, f.fake.Next(t))
}

func TestInbound(t *testing.T) {
	t.Run("ping is answered with pong", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t, "abc")
		f.consumer.next(t)

		f.fake.Deliver(`{"msg":"ping","id":"p1"}`)
		assert.Equal(t, `{"msg":"pong","id":"p1"}`, f.fake.Next(t))
		assert.Equal(t, message.NewPing(message.Some("p1")), f.consumer.next(t))

		f.fake.Deliver(`{"msg":"ping"}`)
		assert.Equal(t, `{"msg":"pong"}`, f.fake.Next(t))
	})

	t.Run("noise is discarded and the connection stays up", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t, "abc")
		f.consumer.next(t)

		f.fake.Deliver(`{"server_id":"0"}`)
		f.fake.Deliver(`not json`)
		f.fake.Deliver(`{"msg":"teleport"}`)
		f.fake.Deliver(`{"msg":"result","result":1}`)
		f.fake.Deliver(`{"msg":"sub","id":"1","name":"tasks"}`)
		f.fake.Deliver(`{"msg":"ready","subs":["1"]}`)

		assert.Equal(t, message.NewReady([]string{"1"}), f.consumer.next(t))
		assert.Equal(t, Ready, f.session.State())
		assert.True(t, f.fake.IsOpen())
	})

	t.Run("messages arrive in transport order", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t, "abc")
		f.consumer.next(t)

		for _, id := range []string{"a", "b", "c"} {
			f.fake.DeliverMessage(t, message.NewAdded("tasks", id, message.None[map[string]any]()))
		}
		for _, id := range []string{"a", "b", "c"} {
			added, ok := f.consumer.next(t).(message.Added)
			require.True(t, ok)
			assert.Equal(t, id, added.ID())
		}
	})
}

func TestDisconnect(t *testing.T) {
	t.Run("close ends disconnected", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t, "abc")

		require.NoError(t, f.session.Close())
		assert.Equal(t, Disconnected, f.session.State())
		assert.False(t, f.fake.IsOpen())

		last := f.observer.last()
		assert.Equal(t, Disconnected, last.to)
		assert.ErrorIs(t, last.err, ErrDisconnected)

		assert.NoError(t, f.session.Close())
	})

	t.Run("transport loss from ready", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t, "abc")

		f.fake.Drop(transport.CloseAbnormal, "gone")
		require.Eventually(t, func() bool {
			return f.session.State() == Disconnected
		}, time.Second, 5*time.Millisecond)

		var closeErr *CloseError
		require.ErrorAs(t, f.observer.last().err, &closeErr)
		assert.Equal(t, "gone", closeErr.Reason)

		err := f.session.Send(context.Background(), message.NewUnsub("1"))
		assert.ErrorIs(t, err, ErrNotReady)
	})
}

func TestResume(t *testing.T) {
	t.Run("token from the server is offered on reconnect", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t, "abc")
		f.fake.Drop(transport.CloseAbnormal, "gone")
		require.Eventually(t, func() bool {
			return f.session.State() == Disconnected
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, f.session.Connect(context.Background()))
		connect := f.fake.Handshake(t, "def")
		session, err := connect.Session().Value()
		require.NoError(t, err)
		assert.Equal(t, "abc", session)

		require.NoError(t, f.session.AwaitReady(context.Background()))
		assert.Equal(t, "def", f.session.Token())
	})

	t.Run("configured token is offered on first connect", func(t *testing.T) {
		f := newFixture(t, func(b *SessionBuilder) { b.WithResumeSession("old") })

		require.NoError(t, f.session.Connect(context.Background()))
		assert.Equal(t, `{"msg":"connect","version":"1","support":["pre2","pre1"],"session":"old"}`, f.fake.Next(t))
	})

	t.Run("resume disabled", func(t *testing.T) {
		f := newFixture(t, func(b *SessionBuilder) {
			b.WithResumeSession("old").WithResume(false).WithVersion("pre2").WithSupport("pre2", "pre1")
		})

		require.NoError(t, f.session.Connect(context.Background()))
		assert.Equal(t, `{"msg":"connect","version":"pre2","support":["pre1"]}`, f.fake.Next(t))
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting-handshake", AwaitingHandshake.String())
	assert.Equal(t, "state(9)", State(9).String())
}
