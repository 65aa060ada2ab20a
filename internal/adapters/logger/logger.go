// Package logger implements a logging adapter using log/slog.
package logger

import (
	"io"
	"log/slog"
	"os"

	"go.trai.ch/floe/internal/core/ports"
)

// Logger implements ports.Logger using log/slog.
type Logger struct {
	logger *slog.Logger
}

// New creates a logger writing human-readable output to stderr.
func New() ports.Logger {
	return NewWithOutput(os.Stderr, slog.LevelInfo)
}

// NewWithOutput creates a logger with a fixed output and level. The output
// is set at construction; there is no reason to swap it at runtime.
func NewWithOutput(w io.Writer, level slog.Level) ports.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{logger: slog.New(handler)}
}

// Debug logs a debug message with key-value context.
func (l *Logger) Debug(msg string, kv ...any) {
	l.logger.Debug(msg, kv...)
}

// Info logs an informational message with key-value context.
func (l *Logger) Info(msg string, kv ...any) {
	l.logger.Info(msg, kv...)
}

// Error logs an error with key-value context.
func (l *Logger) Error(err error, kv ...any) {
	l.logger.Error("operation failed", append([]any{"error", err}, kv...)...)
}
