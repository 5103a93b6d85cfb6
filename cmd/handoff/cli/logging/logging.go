// Package logging provides structured logging for handoff.
//
// Loggers are values, not globals: a *slog.Logger is attached to a context
// with WithLogger and every helper in this package logs through the logger
// found on the context it is given. Contexts without a logger discard output.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevelEnvVar overrides the configured log level when set.
const LogLevelEnvVar = "HANDOFF_LOG_LEVEL"

type contextKey int

const (
	loggerKey contextKey = iota
	componentKey
	sessionKey
	hookKey
)

var discard = slog.New(slog.DiscardHandler)

// ParseLevel converts a level name to a slog.Level.
// Unknown or empty names map to info.
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

// ResolveLevel picks the effective level. debug forces the debug level;
// otherwise HANDOFF_LOG_LEVEL wins over the configured name.
func ResolveLevel(configured string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	if env := os.Getenv(LogLevelEnvVar); env != "" {
		return ParseLevel(env)
	}
	return ParseLevel(configured)
}

// New creates a text logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithComponent tags log records with the emitting component.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WithSession tags log records with the host session key.
func WithSession(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKey, key)
}

// WithHook tags log records with the lifecycle event name being handled.
func WithHook(ctx context.Context, hook string) context.Context {
	return context.WithValue(ctx, hookKey, hook)
}

// FromContext returns the logger attached to ctx, or a discarding logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return discard
	}
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return discard
}

// Enabled reports whether records at level would be emitted for ctx.
func Enabled(ctx context.Context, level slog.Level) bool {
	return FromContext(ctx).Enabled(ctx, level)
}

// Debug logs at debug level.
func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs at info level.
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs at warn level.
func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs at error level.
func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelError, msg, attrs...)
}

// LogDuration logs msg with a duration_ms attribute measured from start.
func LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...slog.Attr) {
	attrs = append(attrs, slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	log(ctx, level, msg, attrs...)
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	logger := FromContext(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+3)
	if v, ok := ctx.Value(componentKey).(string); ok && v != "" {
		all = append(all, slog.String("component", v))
	}
	if v, ok := ctx.Value(hookKey).(string); ok && v != "" {
		all = append(all, slog.String("hook", v))
	}
	if v, ok := ctx.Value(sessionKey).(string); ok && v != "" {
		all = append(all, slog.String("session_key", v))
	}
	all = append(all, attrs...)
	logger.LogAttrs(ctx, level, msg, all...)
}
