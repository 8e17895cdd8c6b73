// Package log provides the ceremony engine's structured logger: a thin
// chainable wrapper over go.uber.org/zap, scoped per ceremony/scheme/stage
// the way a Runner's fields accumulate as it descends into a stage.
package log

import (
	"go.uber.org/zap"
)

// Logger wraps a *zap.SugaredLogger, accumulating fields via With.
type Logger struct {
	z *zap.SugaredLogger
}

// New builds a production JSON logger.
func New() (*Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z.Sugar()}, nil
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop().Sugar()}
}

// With returns a child logger with additional key-value fields attached.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{z: l.z.With(kv...)}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.z.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.z.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.z.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.z.Errorw(msg, kv...) }

// Sync flushes buffered log entries; call before process exit.
func (l *Logger) Sync() error {
	return l.z.Sync()
}
