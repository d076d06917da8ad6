package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger.WithComponent(ComponentHTTP))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// StructuredLogger provides domain-level log lines with consistent fields.
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogLedgerImported logs a successful ledger import
func (sl *StructuredLogger) LogLedgerImported(ctx context.Context, importID int64, records int, source string) {
	fields := NewFields().
		WithImport(importID, records, source).
		WithOperation(OpImport)

	sl.logger.WithComponent(ComponentLedger).InfoContext(ctx, "Ledger imported", fields.ToSlice()...)
}

// LogGoalComputed logs a finished goal computation
func (sl *StructuredLogger) LogGoalComputed(ctx context.Context, start string, ratePercent, declared float64) {
	fields := NewFields().
		WithGoal(start, ratePercent, declared).
		WithOperation(OpCompute)

	sl.logger.WithComponent(ComponentGoal).InfoContext(ctx, "Goal computed", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation)

	sl.logger.WithComponent(component).ErrorContext(ctx, msg, allFields.ToSlice()...)
}
