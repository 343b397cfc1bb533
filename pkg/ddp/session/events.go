package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/tsarna/ddp/pkg/ddp/codec"
	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/pod"
	"github.com/tsarna/ddp/pkg/ddp/transport"
	"go.uber.org/zap"
)

type eventKind int

const (
	eventOpened eventKind = iota
	eventMessage
	eventClosed
)

type event struct {
	kind   eventKind
	data   []byte
	code   int
	reason string
}

// connection is the transport.Handler for one Connect. It only queues
// events; the session goroutine does the work.
type connection struct {
	events    chan event
	finished  chan struct{}
	closeOnce sync.Once
}

func newConnection(bufferSize int) *connection {
	return &connection{
		events:   make(chan event, bufferSize),
		finished: make(chan struct{}),
	}
}

func (c *connection) push(ev event) {
	select {
	case c.events <- ev:
	case <-c.finished:
	}
}

func (c *connection) OnOpened() {
	c.push(event{kind: eventOpened})
}

func (c *connection) OnMessage(data []byte) {
	c.push(event{kind: eventMessage, data: data})
}

func (c *connection) OnClosed(code int, reason string) {
	c.closeOnce.Do(func() {
		c.push(event{kind: eventClosed, code: code, reason: reason})
	})
}

// run handles one connection's events until it closes.
func (s *Session) run(c *connection) {
	defer close(c.finished)

	for ev := range c.events {
		switch ev.kind {
		case eventOpened:
			s.handleOpened()
		case eventMessage:
			s.handleFrame(ev.data)
		case eventClosed:
			s.handleClosed(ev.code, ev.reason)
			return
		}
	}
}

func (s *Session) handleOpened() {
	session := message.None[string]()
	if token := s.Token(); s.resume && token != "" {
		session = message.Some(token)
	}

	connect := message.NewConnect(s.version, message.Some(s.support), session)
	if err := s.write(context.Background(), connect); err != nil {
		s.logger.Error("Failed to send connect", zap.Error(err))
		s.settle(fmt.Errorf("failed to send connect: %w", err))
		// The transport reports the close back through this goroutine.
		go func() {
			if closeErr := s.transport.Close(); closeErr != nil {
				s.logger.Debug("Close after failed connect", zap.Error(closeErr))
			}
		}()
		return
	}

	s.setState(AwaitingHandshake, nil)
}

func (s *Session) handleFrame(data []byte) {
	p, err := pod.Parse(data)
	if err != nil {
		s.logger.Warn("Discarding malformed frame", zap.Error(err), zap.ByteString("frame", data))
		return
	}

	if !codec.AcceptServerPod(p) {
		s.logger.Debug("Ignoring frame without message kind", zap.ByteString("frame", data))
		return
	}

	decoded, err := s.server.Decode(p)
	if err != nil {
		s.logger.Warn("Discarding undecodable message", zap.Error(err), zap.ByteString("frame", data))
		return
	}

	msg, ok := decoded.(message.ServerMessage)
	if !ok {
		s.logger.Warn("Discarding non-server message", zap.String("kind", string(decoded.Kind())))
		return
	}

	switch m := msg.(type) {
	case message.Connected:
		s.handleConnected(m)
	case message.Failed:
		s.handleFailed(m)
	case message.Ping:
		s.handlePing(m)
	}

	if s.consumer != nil {
		s.consumer.Consume(msg)
	}
}

func (s *Session) handleConnected(m message.Connected) {
	if state := s.State(); state != AwaitingHandshake {
		s.logger.Warn("Unexpected connected message", zap.Stringer("state", state))
		return
	}

	s.mu.Lock()
	s.token = m.Session()
	s.mu.Unlock()

	s.logger.Info("DDP session established", zap.String("session", m.Session()))
	s.setState(Ready, nil)
	s.settle(nil)
}

func (s *Session) handleFailed(m message.Failed) {
	if state := s.State(); state != AwaitingHandshake {
		s.logger.Warn("Unexpected failed message",
			zap.Stringer("state", state),
			zap.String("proposed", m.Version()))
		return
	}

	err := &HandshakeError{Version: m.Version()}

	s.logger.Warn("DDP handshake failed",
		zap.String("offered", s.version),
		zap.String("proposed", m.Version()))
	s.setState(Failed, err)
	s.settle(err)
}

func (s *Session) handlePing(m message.Ping) {
	pong := message.NewPong(m.ID())
	if err := s.write(context.Background(), pong); err != nil {
		s.logger.Warn("Failed to answer ping", zap.Error(err))
	}
}

func (s *Session) handleClosed(code int, reason string) {
	err := &CloseError{Code: code, Reason: reason}

	if code == transport.CloseNormal {
		s.logger.Info("DDP session closed", zap.String("reason", reason))
	} else {
		s.logger.Warn("DDP session lost", zap.Int("code", code), zap.String("reason", reason))
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	s.settle(err)
	s.setState(Disconnected, err)
}
