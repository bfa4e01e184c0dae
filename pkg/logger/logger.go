package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	// UserIDKey is the context key for the caller's user scope
	UserIDKey ContextKey = "user_id"
	// ContractIDKey is the context key for the contract being processed
	ContractIDKey ContextKey = "contract_id"
)

// Config holds logger configuration
type Config struct {
	Level  string    // debug, info, warn, error
	Format string    // json, text
	Output io.Writer // defaults to stdout
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init initializes the global slog logger with the given configuration
func Init(cfg *Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// WithContractID returns a copy of ctx carrying the contract ID for log lines.
func WithContractID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContractIDKey, id)
}

// WithContext returns a logger with context values extracted
func WithContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	for _, key := range []ContextKey{RequestIDKey, UserIDKey, ContractIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			logger = logger.With(string(key), v)
		}
	}

	return logger
}

// Info logs at info level with context
func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

// Debug logs at debug level with context
func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

// Warn logs at warn level with context
func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

// Error logs at error level with context
func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}
