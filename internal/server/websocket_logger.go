package server

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SocketLogger scopes structured logging to the websocket component.
type SocketLogger struct {
	logger *zap.Logger
}

func NewSocketLogger() *SocketLogger {
	return &SocketLogger{
		logger: zap.L().With(zap.String("component", "websocket")),
	}
}

func (l *SocketLogger) Info(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID),
	}, fields...)
	l.logger.Info("websocket_event", allFields...)
}

func (l *SocketLogger) Warn(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID),
	}, fields...)
	l.logger.Warn("websocket_warning", allFields...)
}

func (l *SocketLogger) Error(event string, userID uuid.UUID, clientID string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID),
		zap.Error(err),
	}, fields...)
	l.logger.Error("websocket_error", allFields...)
}
