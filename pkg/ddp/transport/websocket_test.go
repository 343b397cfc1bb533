package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/ddp/pkg/ddp/o11y"
	"go.uber.org/zap"
)

type closeEvent struct {
	code   int
	reason string
}

type recordingHandler struct {
	opened     chan struct{}
	messages   chan string
	closed     chan closeEvent
	closeCount int32
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		opened:   make(chan struct{}, 4),
		messages: make(chan string, 16),
		closed:   make(chan closeEvent, 4),
	}
}

func (h *recordingHandler) OnOpened() {
	h.opened <- struct{}{}
}

func (h *recordingHandler) OnClosed(code int, reason string) {
	atomic.AddInt32(&h.closeCount, 1)
	h.closed <- closeEvent{code: code, reason: reason}
}

func (h *recordingHandler) OnMessage(data []byte) {
	h.messages <- string(data)
}

func (h *recordingHandler) nextMessage(t *testing.T) string {
	t.Helper()
	select {
	case m := <-h.messages:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return ""
	}
}

func (h *recordingHandler) nextClose(t *testing.T) closeEvent {
	t.Helper()
	select {
	case e := <-h.closed:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
		return closeEvent{}
	}
}

// newEchoServer echoes every frame back, and closes with 1001 "bye" when it
// receives the frame "bye".
func newEchoServer(t *testing.T, headers chan<- http.Header) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if headers != nil {
			select {
			case headers <- r.Header.Clone():
			default:
			}
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if string(data) == "bye" {
				conn.Close(websocket.StatusGoingAway, "bye")
				return
			}
			if err := conn.Write(ctx, typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/websocket"
}

func TestServerURL(t *testing.T) {
	tests := []struct {
		host   string
		secure bool
		want   string
	}{
		{"localhost:3000", false, "ws://localhost:3000/websocket"},
		{"example.com", true, "wss://example.com/websocket"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ServerURL(tt.host, tt.secure))
		})
	}
}

func TestWebSocketBuilder(t *testing.T) {
	logger := zap.NewNop()

	t.Run("successful build with all parameters", func(t *testing.T) {
		ws, err := NewWebSocket().
			WithURL("ws://localhost:3000/websocket").
			WithLogger(logger).
			WithDialTimeout(5 * time.Second).
			WithWriteChannelSize(10).
			WithReadLimit(1024).
			WithRateLimit(50, 5).
			Build()

		require.NoError(t, err)
		assert.Equal(t, "ws://localhost:3000/websocket", ws.URL())
		assert.Equal(t, logger, ws.logger)
		assert.Equal(t, 5*time.Second, ws.dialTimeout)
		assert.Equal(t, 10, ws.writeChannelSize)
		assert.Equal(t, int64(1024), ws.readLimit)
		require.NotNil(t, ws.limiter)
		assert.Equal(t, 5, ws.limiter.Burst())
		assert.Nil(t, ws.metrics)
	})

	t.Run("fluent interface returns same builder", func(t *testing.T) {
		builder := NewWebSocket()
		assert.Same(t, builder, builder.WithURL("ws://localhost:3000/websocket"))
		assert.Same(t, builder, builder.WithLogger(logger))
		assert.Same(t, builder, builder.WithDialTimeout(time.Second))
		assert.Same(t, builder, builder.WithWriteChannelSize(5))
		assert.Same(t, builder, builder.WithAuthorization("Bearer t"))
		assert.Same(t, builder, builder.WithHeader("X-Api-Key", "k"))
		assert.Same(t, builder, builder.WithHeaders(map[string][]string{"User-Agent": {"ddp"}}))
		assert.Same(t, builder, builder.WithRateLimit(1, 1))
	})

	t.Run("default values", func(t *testing.T) {
		builder := NewWebSocket().WithDialTimeout(-1).WithWriteChannelSize(0).WithLogger(nil)
		assert.Equal(t, 30*time.Second, builder.dialTimeout)
		assert.Equal(t, 100, builder.writeChannelSize)
		assert.NotNil(t, builder.logger)
	})

	t.Run("rate limit disabled by non-positive rate", func(t *testing.T) {
		ws, err := NewWebSocket().
			WithURL("ws://localhost:3000/websocket").
			WithRateLimit(5, 1).
			WithRateLimit(0, 10).
			Build()
		require.NoError(t, err)
		assert.Nil(t, ws.limiter)
	})

	t.Run("build fails with missing URL", func(t *testing.T) {
		_, err := NewWebSocket().Build()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "URL is required")
	})

	t.Run("build fails with unsupported scheme", func(t *testing.T) {
		_, err := NewWebSocket().WithURL("ftp://localhost/websocket").Build()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported URL scheme")
	})

	t.Run("metrics provider enables metrics", func(t *testing.T) {
		ws, err := NewWebSocket().
			WithURL("ws://localhost:3000/websocket").
			WithMetricsProvider(newCountingProvider()).
			Build()
		require.NoError(t, err)
		assert.NotNil(t, ws.metrics)
	})
}

func TestWebSocketRoundTrip(t *testing.T) {
	url := newEchoServer(t, nil)
	provider := newCountingProvider()

	ws, err := NewWebSocket().WithURL(url).WithMetricsProvider(provider).Build()
	require.NoError(t, err)

	h := newRecordingHandler()
	require.NoError(t, ws.Connect(context.Background(), h))
	<-h.opened

	assert.ErrorIs(t, ws.Connect(context.Background(), h), ErrAlreadyConnected)

	require.NoError(t, ws.Send(context.Background(), []byte(`{"msg":"ping"}`)))
	assert.Equal(t, `{"msg":"ping"}`, h.nextMessage(t))

	require.NoError(t, ws.Close())
	assert.Equal(t, closeEvent{code: CloseNormal, reason: "client disconnect"}, h.nextClose(t))
	assert.NoError(t, ws.Close())
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.closeCount))

	assert.ErrorIs(t, ws.Send(context.Background(), []byte("late")), ErrNotConnected)

	assert.Equal(t, int64(1), provider.count("ddp_transport_connections_total"))
	assert.Eventually(t, func() bool {
		return provider.count("ddp_transport_frames_sent_total") == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), provider.count("ddp_transport_frames_received_total"))
}

func TestWebSocketServerClose(t *testing.T) {
	url := newEchoServer(t, nil)

	ws, err := NewWebSocket().WithURL(url).Build()
	require.NoError(t, err)

	h := newRecordingHandler()
	require.NoError(t, ws.Connect(context.Background(), h))
	<-h.opened

	require.NoError(t, ws.Send(context.Background(), []byte("bye")))
	assert.Equal(t, closeEvent{code: int(websocket.StatusGoingAway), reason: "bye"}, h.nextClose(t))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&ws.started) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.closeCount))

	t.Run("reconnect after close", func(t *testing.T) {
		require.NoError(t, ws.Connect(context.Background(), h))
		<-h.opened

		require.NoError(t, ws.Send(context.Background(), []byte("again")))
		assert.Equal(t, "again", h.nextMessage(t))
		require.NoError(t, ws.Close())
		h.nextClose(t)
	})
}

func TestWebSocketHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	url := newEchoServer(t, headers)

	ws, err := NewWebSocket().
		WithURL(url).
		WithHeader("X-Api-Key", "key123").
		WithHeader("Authorization", "overridden").
		WithAuthorizationProvider(func(ctx context.Context) (string, error) {
			return "Bearer dynamic", nil
		}).
		Build()
	require.NoError(t, err)

	h := newRecordingHandler()
	require.NoError(t, ws.Connect(context.Background(), h))
	defer ws.Close()

	got := <-headers
	assert.Equal(t, "key123", got.Get("X-Api-Key"))
	assert.Equal(t, "Bearer dynamic", got.Get("Authorization"))
}

func TestWebSocketConnectFailures(t *testing.T) {
	t.Run("dial failure resets state", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/websocket"

		ws, err := NewWebSocket().WithURL(url).WithDialTimeout(time.Second).Build()
		require.NoError(t, err)

		err = ws.Connect(context.Background(), newRecordingHandler())
		assert.Error(t, err)
		assert.Equal(t, int32(0), atomic.LoadInt32(&ws.started))
		srv.Close()
	})

	t.Run("authorization failure", func(t *testing.T) {
		ws, err := NewWebSocket().
			WithURL("ws://127.0.0.1:1/websocket").
			WithAuthorizationProvider(func(ctx context.Context) (string, error) {
				return "", assert.AnError
			}).
			Build()
		require.NoError(t, err)

		err = ws.Connect(context.Background(), newRecordingHandler())
		assert.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "failed to get authorization")
	})

	t.Run("nil handler", func(t *testing.T) {
		ws, err := NewWebSocket().WithURL("ws://127.0.0.1:1/websocket").Build()
		require.NoError(t, err)
		assert.Error(t, ws.Connect(context.Background(), nil))
	})

	t.Run("send before connect", func(t *testing.T) {
		ws, err := NewWebSocket().WithURL("ws://127.0.0.1:1/websocket").Build()
		require.NoError(t, err)
		assert.ErrorIs(t, ws.Send(context.Background(), []byte("x")), ErrNotConnected)
		assert.NoError(t, ws.Close())
	})
}

func TestWebSocketRateLimit(t *testing.T) {
	url := newEchoServer(t, nil)

	ws, err := NewWebSocket().WithURL(url).WithRateLimit(20, 1).Build()
	require.NoError(t, err)

	h := newRecordingHandler()
	require.NoError(t, ws.Connect(context.Background(), h))
	defer ws.Close()

	start := time.Now()
	for _, frame := range []string{"a", "b", "c"} {
		require.NoError(t, ws.Send(context.Background(), []byte(frame)))
	}
	for _, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, h.nextMessage(t))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

type countingProvider struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newCountingProvider() *countingProvider {
	return &countingProvider{counts: make(map[string]int64)}
}

func (p *countingProvider) count(name string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[name]
}

func (p *countingProvider) add(name string, v int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[name] += v
}

func (p *countingProvider) Counter(name string) o11y.Counter     { return &countingInstrument{p, name} }
func (p *countingProvider) Histogram(name string) o11y.Histogram { return &countingInstrument{p, name} }
func (p *countingProvider) Gauge(name string) o11y.Gauge         { return &countingInstrument{p, name} }

type countingInstrument struct {
	p    *countingProvider
	name string
}

func (i *countingInstrument) Add(ctx context.Context, value int64, labels ...o11y.Label) {
	i.p.add(i.name, value)
}

func (i *countingInstrument) Record(ctx context.Context, value float64, labels ...o11y.Label) {
	i.p.add(i.name, 1)
}

func (i *countingInstrument) Set(ctx context.Context, value float64, labels ...o11y.Label) {
	i.p.add(i.name, 1)
}
