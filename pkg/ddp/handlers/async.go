// Package handlers provides client.Handler and client.DataHandler wrappers.
package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tsarna/ddp/pkg/ddp/client"
	"github.com/tsarna/ddp/pkg/ddp/message"
	"go.uber.org/zap"
)

var (
	ErrQueueFull     = errors.New("handler queue is full")
	ErrHandlerClosed = errors.New("handler is closed")
)

type job struct {
	ctx   context.Context
	msg   message.ServerMessage
	event *client.DataEvent
}

// AsyncHandler wraps a handler and runs it on its own goroutine through a
// buffered queue, so the session goroutine returns immediately. Errors from
// the wrapped handler are logged.
type AsyncHandler struct {
	handler   client.Handler
	data      client.DataHandler
	logger    *zap.Logger
	queue     chan job
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	ticker    *time.Ticker
	onTick    func(ctx context.Context)
}

// NewAsyncHandler creates an AsyncHandler for a message handler. Call Start
// to begin processing and Close to drain the queue.
//
// Example:
//
//	async := handlers.NewAsyncHandler(slowHandler, 100).Start()
//	defer async.Close()
//	c, err := client.NewClient().WithHost(host).WithHandler(async).Build()
func NewAsyncHandler(handler client.Handler, queueSize int) *AsyncHandler {
	return newAsync(handler, nil, queueSize)
}

// NewAsyncDataHandler creates an AsyncHandler for a data handler. Pass its
// OnData method to client.OnData.
func NewAsyncDataHandler(handler client.DataHandler, queueSize int) *AsyncHandler {
	return newAsync(nil, handler, queueSize)
}

func newAsync(handler client.Handler, data client.DataHandler, queueSize int) *AsyncHandler {
	if queueSize <= 0 {
		queueSize = 100
	}

	return &AsyncHandler{
		handler: handler,
		data:    data,
		logger:  zap.NewNop(),
		queue:   make(chan job, queueSize),
		done:    make(chan struct{}),
	}
}

// WithLogger sets the logger used to report handler errors.
func (a *AsyncHandler) WithLogger(logger *zap.Logger) *AsyncHandler {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithTicker calls onTick on the processing goroutine at the given interval,
// between queued messages. Must be called before Start; later calls are
// ignored.
func (a *AsyncHandler) WithTicker(interval time.Duration, onTick func(ctx context.Context)) *AsyncHandler {
	if interval > 0 && onTick != nil && a.ticker == nil {
		a.ticker = time.NewTicker(interval)
		a.onTick = onTick
	}
	return a
}

// Start begins processing queued messages.
func (a *AsyncHandler) Start() *AsyncHandler {
	a.wg.Add(1)
	go a.processQueue()
	return a
}

func (a *AsyncHandler) process(j job) {
	var err error
	switch {
	case j.event != nil:
		err = a.data(j.ctx, *j.event)
	case a.handler != nil:
		err = a.handler.OnMessage(j.ctx, j.msg)
	}
	if err != nil {
		a.logger.Error("Async handler failed", zap.String("msg", string(j.msg.Kind())), zap.Error(err))
	}
}

func (a *AsyncHandler) processQueue() {
	defer a.wg.Done()

	var tickerChan <-chan time.Time
	if a.ticker != nil {
		tickerChan = a.ticker.C
	}

	for {
		select {
		case j := <-a.queue:
			a.process(j)
		case <-tickerChan:
			a.onTick(context.Background())
		case <-a.done:
			a.drainQueue()
			return
		}
	}
}

func (a *AsyncHandler) drainQueue() {
	for {
		select {
		case j := <-a.queue:
			a.process(j)
		default:
			return
		}
	}
}

func (a *AsyncHandler) enqueue(j job) error {
	if a.IsClosed() {
		return ErrHandlerClosed
	}

	select {
	case a.queue <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// OnMessage queues msg for the wrapped handler and returns immediately.
func (a *AsyncHandler) OnMessage(ctx context.Context, msg message.ServerMessage) error {
	if a.handler == nil {
		return nil
	}
	return a.enqueue(job{ctx: ctx, msg: msg})
}

// OnData queues a data event for the wrapped data handler and returns
// immediately.
func (a *AsyncHandler) OnData(ctx context.Context, event client.DataEvent) error {
	if a.data == nil {
		return nil
	}
	return a.enqueue(job{ctx: ctx, msg: event.Message, event: &event})
}

// Close stops the ticker, processes everything still queued and waits for
// the processing goroutine to exit.
func (a *AsyncHandler) Close() error {
	a.closeOnce.Do(func() {
		if a.ticker != nil {
			a.ticker.Stop()
		}
		close(a.done)
		a.wg.Wait()
	})
	return nil
}

// QueueSize returns the current number of messages in the queue
func (a *AsyncHandler) QueueSize() int {
	return len(a.queue)
}

// QueueCapacity returns the maximum capacity of the queue
func (a *AsyncHandler) QueueCapacity() int {
	return cap(a.queue)
}

// IsClosed returns true if the handler has been closed
func (a *AsyncHandler) IsClosed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}
