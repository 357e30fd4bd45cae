package adminapi

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/mailqueue/pkg/audit"
	"github.com/dmitrymomot/mailqueue/pkg/ratelimiter"
	"github.com/dmitrymomot/mailqueue/pkg/tracking"
)

// Option configures an API.
type Option func(*API)

// WithAudit mounts the audit trail routes.
func WithAudit(l *audit.Log) Option {
	return func(a *API) {
		a.audit = l
	}
}

// WithTracker mounts tracking stats and the Postmark webhook.
func WithTracker(t *tracking.Tracker) Option {
	return func(a *API) {
		if t != nil {
			a.tracker = t
			a.webhook = tracking.NewWebhook(t)
		}
	}
}

// WithRateLimiter throttles admin routes per client address.
func WithRateLimiter(l ratelimiter.RateLimiter) Option {
	return func(a *API) {
		a.limiter = l
	}
}

// WithReadinessCheck adds a dependency probed by /health/ready.
func WithReadinessCheck(check func(context.Context) error) Option {
	return func(a *API) {
		if check != nil {
			a.checks = append(a.checks, check)
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}
