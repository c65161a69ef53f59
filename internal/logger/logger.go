package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	intentIDKey  ctxKey = "payment_id"
)

var defaultLogger = slog.New(slog.NewTextHandler(os.Stdout, nil))

// Init initializes the global logger
func Init(level, format string) {
	InitWithWriter(os.Stdout, level, format)
}

// InitWithWriter initializes the global logger writing to w
func InitWithWriter(w io.Writer, level, format string) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}

	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// parseLevel converts string level to slog.Level
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID stores the request id used by WithContext
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithIntentID stores the payment intent id used by WithContext
func WithIntentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, intentIDKey, id)
}

// WithContext returns a logger with context values
func WithContext(ctx context.Context) *slog.Logger {
	l := defaultLogger
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		l = l.With(string(requestIDKey), v)
	}
	if v, ok := ctx.Value(intentIDKey).(string); ok && v != "" {
		l = l.With(string(intentIDKey), v)
	}
	return l
}

// Info logs an info message
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
	os.Exit(1)
}
