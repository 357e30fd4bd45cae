package logger

import (
	"context"
	"log/slog"
)

type emailIDKey struct{}

type workerIDKey struct{}

// WithEmailID stores the email id so every record logged with ctx carries it.
func WithEmailID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, emailIDKey{}, id)
}

// WithWorkerID stores the worker id so every record logged with ctx carries it.
func WithWorkerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, workerIDKey{}, id)
}

func emailIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if id, ok := ctx.Value(emailIDKey{}).(string); ok && id != "" {
		return slog.String("email_id", id), true
	}
	return slog.Attr{}, false
}

func workerIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if id, ok := ctx.Value(workerIDKey{}).(string); ok && id != "" {
		return slog.String("worker_id", id), true
	}
	return slog.Attr{}, false
}
