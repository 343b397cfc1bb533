package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// WebSocket is a Transport over a single WebSocket connection. It can be
// reconnected after it closes.
type WebSocket struct {
	// Configuration
	url              string
	logger           *zap.Logger
	dialTimeout      time.Duration
	writeChannelSize int
	readLimit        int64
	authProvider     AuthorizationProvider
	headers          map[string][]string
	limiter          *rate.Limiter
	metrics          *Metrics

	// Connection state
	conn     *websocket.Conn
	handler  Handler
	ctx      context.Context
	cancel   context.CancelFunc
	openedAt time.Time
	mu       sync.RWMutex
	started  int32
	stopping int32

	writeChannel chan []byte
	done         chan struct{}
}

var _ Transport = (*WebSocket)(nil)

// URL returns the endpoint this transport dials.
func (w *WebSocket) URL() string {
	return w.url
}

// Connect dials the server and starts the read and write loops. The
// connection outlives ctx; only the dial is bounded by it.
func (w *WebSocket) Connect(ctx context.Context, h Handler) error {
	if h == nil {
		return fmt.Errorf("handler is required")
	}
	if !atomic.CompareAndSwapInt32(&w.started, 0, 1) {
		return ErrAlreadyConnected
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, w.dialTimeout)
	defer dialCancel()

	dialOptions, err := w.dialOptions(dialCtx)
	if err != nil {
		atomic.StoreInt32(&w.started, 0)
		return err
	}

	conn, _, err := websocket.Dial(dialCtx, w.url, dialOptions)
	if err != nil {
		atomic.StoreInt32(&w.started, 0)
		w.metrics.RecordConnectionError(ctx, "dial")
		return fmt.Errorf("failed to connect to %s: %w", w.url, err)
	}
	conn.SetReadLimit(w.readLimit)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	writeChannel := make(chan []byte, w.writeChannelSize)
	done := make(chan struct{})

	w.mu.Lock()
	w.conn = conn
	w.handler = h
	w.ctx = loopCtx
	w.cancel = cancel
	w.writeChannel = writeChannel
	w.done = done
	w.openedAt = time.Now()
	w.mu.Unlock()

	w.logger.Info("WebSocket transport connected", zap.String("url", w.url))
	w.metrics.RecordConnectionStart(loopCtx)

	h.OnOpened()

	go w.readLoop(loopCtx, conn, h, done)
	go w.writeLoop(loopCtx, conn, writeChannel)

	return nil
}

func (w *WebSocket) dialOptions(ctx context.Context) (*websocket.DialOptions, error) {
	dialOptions := &websocket.DialOptions{}

	if w.headers != nil {
		dialOptions.HTTPHeader = make(map[string][]string, len(w.headers))
		for key, values := range w.headers {
			dialOptions.HTTPHeader[key] = values
		}
	}

	// The provider wins over a custom Authorization header.
	if w.authProvider != nil {
		authValue, err := w.authProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get authorization: %w", err)
		}
		if authValue != "" {
			if dialOptions.HTTPHeader == nil {
				dialOptions.HTTPHeader = make(map[string][]string)
			}
			dialOptions.HTTPHeader["Authorization"] = []string{authValue}
		}
	}

	return dialOptions, nil
}

// Send queues data for the write loop. It blocks while the write channel is
// full, until ctx is done or the connection closes.
func (w *WebSocket) Send(ctx context.Context, data []byte) error {
	if atomic.LoadInt32(&w.stopping) == 1 {
		return ErrNotConnected
	}

	w.mu.RLock()
	conn := w.conn
	loopCtx := w.ctx
	writeChannel := w.writeChannel
	w.mu.RUnlock()

	if conn == nil || loopCtx.Err() != nil {
		return ErrNotConnected
	}

	select {
	case writeChannel <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-loopCtx.Done():
		return ErrNotConnected
	}
}

// Close sends a normal close frame and waits for the loops to finish. The
// handler's OnClosed is called before Close returns.
func (w *WebSocket) Close() error {
	if atomic.LoadInt32(&w.started) == 0 {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&w.stopping, 0, 1) {
		return nil // Already stopping
	}

	w.logger.Info("Closing WebSocket transport", zap.String("url", w.url))
	w.shutdown(websocket.StatusNormalClosure, CloseNormal, "client disconnect")

	return nil
}

// shutdown closes the connection, waits for the read loop, notifies the
// handler and leaves the transport ready for another Connect. The caller
// must have won the stopping flag.
func (w *WebSocket) shutdown(status websocket.StatusCode, code int, reason string) {
	w.mu.Lock()
	conn := w.conn
	cancel := w.cancel
	done := w.done
	handler := w.handler
	openedAt := w.openedAt
	w.conn = nil
	w.mu.Unlock()

	if conn != nil {
		_ = conn.Close(status, reason)
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	w.metrics.RecordConnectionEnd(context.Background(), time.Since(openedAt))

	if handler != nil {
		handler.OnClosed(code, reason)
	}

	atomic.StoreInt32(&w.started, 0)
	atomic.StoreInt32(&w.stopping, 0)
}

// notifyDisconnect tears the connection down after a read or write failure.
func (w *WebSocket) notifyDisconnect(code int, reason string) {
	if !atomic.CompareAndSwapInt32(&w.stopping, 0, 1) {
		return
	}

	status := websocket.StatusNormalClosure
	if code == CloseAbnormal {
		status = websocket.StatusInternalError
		w.metrics.RecordConnectionError(context.Background(), "abnormal_close")
	}

	// shutdown waits for the loop that called us to exit.
	go w.shutdown(status, code, reason)
}

// readLoop delivers incoming frames to the handler.
func (w *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn, h Handler, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && atomic.LoadInt32(&w.stopping) == 0 {
				code, reason := closeStatus(err)
				if code == CloseAbnormal {
					w.logger.Error("Failed to read from WebSocket", zap.Error(err))
				} else {
					w.logger.Info("WebSocket closed by server",
						zap.Int("code", code),
						zap.String("reason", reason))
				}
				w.notifyDisconnect(code, reason)
			}
			return
		}

		w.metrics.RecordFrameReceived(ctx, len(data))
		h.OnMessage(data)
	}
}

// writeLoop writes queued frames, pacing them through the limiter if one is
// configured.
func (w *WebSocket) writeLoop(ctx context.Context, conn *websocket.Conn, writeChannel chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-writeChannel:
			if w.limiter != nil {
				start := time.Now()
				if err := w.limiter.Wait(ctx); err != nil {
					return
				}
				w.metrics.RecordThrottle(ctx, time.Since(start))
			}

			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				if ctx.Err() == nil && atomic.LoadInt32(&w.stopping) == 0 {
					w.logger.Error("Failed to write to WebSocket", zap.Error(err))
					w.metrics.RecordWriteError(ctx)
					w.notifyDisconnect(CloseAbnormal, err.Error())
				}
				return
			}
			w.metrics.RecordFrameSent(ctx, len(data))
		}
	}
}

func closeStatus(err error) (int, string) {
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) {
		return int(closeErr.Code), closeErr.Reason
	}
	return CloseAbnormal, err.Error()
}
