package substrate

import (
	"log/slog"
)

// Logger defines the interface for structured logging across the
// substrate. All components log through this interface using key-value
// pairs so the host application controls how substrate logs appear.
//
// The variadic arguments are alternating keys and values:
//
//	logger.Info("subscription registered", "topic", "beat.*", "id", subID)
//
// This shape is compatible with slog, zap's SugaredLogger, logrus, and
// similar structured logging libraries.
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, args ...any)
}

// NewSlogLogger adapts a log/slog logger to the Logger interface. Passing
// nil uses slog.Default. Components fall back to this adapter when no
// logger is configured.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{logger: l}
}

type slogLogger struct {
	logger *slog.Logger
}

func (s *slogLogger) Info(msg string, args ...any)  { s.logger.Info(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.logger.Error(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.logger.Warn(msg, args...) }
func (s *slogLogger) Debug(msg string, args ...any) { s.logger.Debug(msg, args...) }
