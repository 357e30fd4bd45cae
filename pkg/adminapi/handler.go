package adminapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/mailqueue/pkg/binder"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// Context is the request context handed to handlers.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
}

type httpContext struct {
	w http.ResponseWriter
	r *http.Request
}

func (c *httpContext) Request() *http.Request {
	return c.r
}

func (c *httpContext) ResponseWriter() http.ResponseWriter {
	return c.w
}

func (c *httpContext) Deadline() (time.Time, bool) {
	return c.r.Context().Deadline()
}

func (c *httpContext) Done() <-chan struct{} {
	return c.r.Context().Done()
}

func (c *httpContext) Err() error {
	return c.r.Context().Err()
}

func (c *httpContext) Value(key any) any {
	return c.r.Context().Value(key)
}

// HandlerFunc handles a request already bound into R.
type HandlerFunc[R any] func(ctx Context, req R) Response

// ErrorHandler renders binding and rendering failures.
type ErrorHandler func(ctx Context, err error)

// NewErrorHandler logs the failure with request details and renders it as JSON.
// Client errors log at warn, server errors at error.
func NewErrorHandler(log *slog.Logger) ErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx Context, err error) {
		resp := JSONError(err)
		status, _ := classify(err)

		level := slog.LevelError
		if status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		r := ctx.Request()
		log.LogAttrs(r.Context(), level, "request error",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Error(err),
			slog.Int("status_code", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("adminapi"))

		if renderErr := resp.Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.ErrorContext(r.Context(), "failed to render error response", logger.Error(renderErr))
		}
	}
}

// Wrap adapts h to net/http. Binders run in order and fill one R value.
func Wrap[R any](h HandlerFunc[R], onError ErrorHandler, binders ...binder.Func) http.HandlerFunc {
	if onError == nil {
		onError = NewErrorHandler(nil)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := &httpContext{w: w, r: r}

		var req R
		for _, bind := range binders {
			if err := bind(r, &req); err != nil {
				onError(ctx, err)
				return
			}
		}

		resp := h(ctx, req)
		if resp == nil {
			onError(ctx, ErrNilResponse)
			return
		}
		if err := resp.Render(w, r); err != nil {
			onError(ctx, err)
		}
	}
}

// fail hands err to the error handler when rendered.
func fail(err error) Response {
	return errorResponse{err: err}
}

type errorResponse struct {
	err error
}

func (e errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.err
}
