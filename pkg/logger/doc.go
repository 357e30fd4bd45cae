// Package logger builds *slog.Logger instances for the mail queue services.
//
// New applies functional options (format, level, static attributes, context
// extractors) and wraps the concrete slog handler in LogHandlerDecorator,
// which copies request-scoped values from context.Context into each record.
// The email id and worker id set with WithEmailID and WithWorkerID are always
// extracted, so dispatcher logs can be correlated per message.
//
//	log := logger.NewFromConfig(cfg)
//	ctx = logger.WithEmailID(ctx, email.ID.String())
//	log.InfoContext(ctx, "email sent", logger.Attempt(2), logger.Duration(d))
//
// Attribute helpers in attr.go keep key names stable across packages. Error
// and Errors return an empty attribute for nil errors, so they can be passed
// unconditionally.
package logger
