package websocket

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"prolink-chat/pkg/logger"
)

// Logger provides structured logging for connection lifecycle events.
type Logger struct {
	logger *zap.Logger
}

func NewLogger(base *logger.Logger) *Logger {
	return &Logger{logger: base.Named("websocket").Logger}
}

func (l *Logger) Info(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, userID, clientID, fields)...)
}

func (l *Logger) Warn(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, userID, clientID, fields)...)
}

func (l *Logger) Error(event string, userID uuid.UUID, clientID string, err error, fields ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, userID, clientID, append(fields, zap.Error(err)))...)
}

func (l *Logger) fields(event string, userID uuid.UUID, clientID string, extra []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID),
	}, extra...)
}
