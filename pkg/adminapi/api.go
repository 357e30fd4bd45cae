package adminapi

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/mailqueue/pkg/audit"
	"github.com/dmitrymomot/mailqueue/pkg/binder"
	"github.com/dmitrymomot/mailqueue/pkg/dispatcher"
	"github.com/dmitrymomot/mailqueue/pkg/httpserver"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/ratelimiter"
	"github.com/dmitrymomot/mailqueue/pkg/tracking"
)

// API exposes the admin control surface over HTTP.
type API struct {
	cfg        Config
	queue      *queue.Service
	dispatcher *dispatcher.Dispatcher
	audit      *audit.Log
	tracker    *tracking.Tracker
	webhook    *tracking.Webhook
	limiter    ratelimiter.RateLimiter
	checks     []func(context.Context) error
	log        *slog.Logger
	onError    ErrorHandler
}

// New creates the adapter. Audit and tracking routes are mounted only when
// the matching option is given.
func New(q *queue.Service, d *dispatcher.Dispatcher, cfg Config, opts ...Option) (*API, error) {
	if q == nil {
		return nil, ErrQueueNil
	}
	if d == nil {
		return nil, ErrDispatcherNil
	}
	if cfg.DefaultActor == "" {
		cfg.DefaultActor = "admin"
	}

	a := &API{
		cfg:        cfg,
		queue:      q,
		dispatcher: d,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.onError = NewErrorHandler(a.log)
	return a, nil
}

// Router returns the routes. Health probes and the provider webhook sit
// outside the bearer token check.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/health/live", httpserver.HealthCheckHandler(a.log))
	r.Get("/health/ready", httpserver.HealthCheckHandler(a.log, a.checks...))

	if a.webhook != nil {
		r.With(a.webhookAuth).Post("/webhooks/postmark", Wrap(a.postmarkWebhook, a.onError, readPayload))
	}

	path := binder.Path(chi.URLParam)
	r.Group(func(r chi.Router) {
		r.Use(a.authenticate)
		if a.limiter != nil {
			r.Use(ratelimiter.Middleware(a.limiter, clientKey))
		}

		r.Route("/emails", func(r chi.Router) {
			r.Get("/", Wrap(a.listEmails, a.onError, binder.Query()))
			r.Post("/", Wrap(a.enqueue, a.onError, binder.JSON()))
			r.Post("/bulk-delete", Wrap(a.bulkDelete, a.onError, binder.JSON()))
			r.Post("/bulk-update", Wrap(a.bulkUpdate, a.onError, binder.JSON()))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", Wrap(a.getEmail, a.onError, path))
				r.Patch("/", Wrap(a.updateEmail, a.onError, path, binder.JSON()))
				r.Delete("/", Wrap(a.deleteEmail, a.onError, path))
				r.Post("/duplicate", Wrap(a.duplicate, a.onError, path, binder.OptionalJSON()))
				r.Post("/approve", Wrap(a.approve, a.onError, path, binder.OptionalJSON()))
				r.Post("/reject", Wrap(a.reject, a.onError, path, binder.OptionalJSON()))
				r.Post("/cancel", Wrap(a.cancel, a.onError, path))
				r.Post("/retry", Wrap(a.retry, a.onError, path, binder.OptionalJSON()))
				r.Post("/deliver", Wrap(a.deliver, a.onError, path))
				if a.tracker != nil {
					r.Get("/tracking", Wrap(a.emailTracking, a.onError, path))
				}
				if a.audit != nil {
					r.Get("/audit", Wrap(a.emailAudit, a.onError, path))
				}
			})
		})

		r.Post("/queue/process", Wrap(a.processQueue, a.onError))
		r.Get("/queue/config", Wrap(a.queueConfig, a.onError))
		r.Get("/stats", Wrap(a.stats, a.onError))

		if a.audit != nil {
			r.Get("/audit", Wrap(a.findAudit, a.onError, binder.Query()))
			r.Get("/audit/verify", Wrap(a.verifyAudit, a.onError))
		}
	})
	return r
}

func (a *API) authenticate(next http.Handler) http.Handler {
	if a.cfg.Token == "" {
		return next
	}
	want := []byte("Bearer " + a.cfg.Token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), want) != 1 {
			a.onError(&httpContext{w: w, r: r}, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) webhookAuth(next http.Handler) http.Handler {
	if a.cfg.WebhookUser == "" {
		return next
	}
	return middleware.BasicAuth("postmark", map[string]string{a.cfg.WebhookUser: a.cfg.WebhookPassword})(next)
}

// clientKey limits each client address separately. RealIP has already
// replaced RemoteAddr when a proxy header is present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "adminapi:" + host
}

// actor names who performed an admin action.
func (a *API) actor(ctx Context, by string) string {
	if by != "" {
		return by
	}
	if h := ctx.Request().Header.Get("X-Admin-Actor"); h != "" {
		return h
	}
	return a.cfg.DefaultActor
}
