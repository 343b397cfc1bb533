package handlers

import (
	"context"

	"github.com/tsarna/ddp/pkg/ddp/client"
	"github.com/tsarna/ddp/pkg/ddp/codec"
	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/pod"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingHandler logs every message and then calls the wrapped handler, if
// any.
type LoggingHandler struct {
	wrapped  client.Handler
	logger   *zap.Logger
	logLevel zapcore.Level
	name     string
}

// NewLoggingHandler creates a LoggingHandler. wrapped may be nil.
func NewLoggingHandler(wrapped client.Handler, logger *zap.Logger, logLevel zapcore.Level) *LoggingHandler {
	return NewNamedLoggingHandler(wrapped, logger, logLevel, "LoggingHandler")
}

// NewNamedLoggingHandler creates a LoggingHandler that identifies itself by
// name in log entries.
func NewNamedLoggingHandler(wrapped client.Handler, logger *zap.Logger, logLevel zapcore.Level, name string) *LoggingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingHandler{
		wrapped:  wrapped,
		logger:   logger,
		logLevel: logLevel,
		name:     name,
	}
}

func (l *LoggingHandler) OnMessage(ctx context.Context, msg message.ServerMessage) error {
	if ce := l.logger.Check(l.logLevel, "DDP message received"); ce != nil {
		ce.Write(
			zap.String("handler", l.name),
			zap.String("msg", string(msg.Kind())),
			zap.String("frame", frame(msg)),
			zap.Bool("hasWrapped", l.wrapped != nil),
		)
	}

	if l.wrapped != nil {
		return l.wrapped.OnMessage(ctx, msg)
	}
	return nil
}

// OnData logs a routed document change. It has the client.DataHandler
// signature.
func (l *LoggingHandler) OnData(ctx context.Context, event client.DataEvent) error {
	l.logger.Log(l.logLevel, "DDP document changed",
		zap.String("handler", l.name),
		zap.String("topic", client.Topic(event.Collection, event.ID)),
		zap.String("msg", string(event.Message.Kind())),
		zap.Any("extractedFields", event.Fields),
	)
	return nil
}

// frame renders msg in its wire form for logging.
func frame(msg message.ServerMessage) string {
	p, err := codec.Server().Encode(msg)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	data, err := pod.Serialize(p)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(data)
}
