package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// New returns a JSON structured logger writing to stdout.
// Debug level is enabled for local and dev environments.
func New(appEnv string) *slog.Logger {
	return NewWithWriter(appEnv, os.Stdout)
}

// NewWithWriter is New with an explicit sink, used by tests and the CLI.
func NewWithWriter(appEnv string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", "telecom-inbound")
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// ForEvent scopes the context logger to one inbound delivery.
func ForEvent(ctx context.Context, accountID, externalID string) *slog.Logger {
	l := From(ctx)
	if accountID != "" {
		l = l.With("account_id", accountID)
	}
	if externalID != "" {
		l = l.With("external_id", externalID)
	}
	return l
}

// ShutdownFlush is a placeholder for future log flushing (if a buffered logger is used).
func ShutdownFlush(_ context.Context, _ time.Duration) error { return nil }
