package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/mailqueue/pkg/attachment"
	"github.com/dmitrymomot/mailqueue/pkg/binder"
	"github.com/dmitrymomot/mailqueue/pkg/dispatcher"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/tracking"
	"github.com/dmitrymomot/mailqueue/pkg/validator"
)

// Response renders itself to the client.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Envelope is the body of every JSON response.
type Envelope struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type jsonResponse struct {
	status  int
	headers http.Header
	body    Envelope
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	for k, v := range j.headers {
		w.Header()[k] = v
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithStatus overrides the status code.
func WithStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

// WithMeta attaches metadata such as list totals.
func WithMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) {
		r.body.Meta = meta
	}
}

// JSON wraps v in an Envelope with status 200.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: Envelope{Data: v}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err with the status its classification maps to.
func JSONError(err error, opts ...JSONOption) Response {
	status, detail := classify(err)
	r := &jsonResponse{status: status, body: Envelope{Error: &detail}}

	var rateErr *dispatcher.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
		r.headers = http.Header{}
		r.headers.Set("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds()+0.999)))
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type emptyResponse struct {
	status int
}

func (e emptyResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.WriteHeader(e.status)
	return nil
}

// Empty responds 204 No Content.
func Empty() Response {
	return emptyResponse{status: http.StatusNoContent}
}

// classify maps domain errors to a status and an error body. Messages of
// server errors are not exposed.
func classify(err error) (int, ErrorDetail) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, ErrorDetail{Code: httpErr.Key, Message: http.StatusText(httpErr.Code)}
	}

	status, code := http.StatusInternalServerError, ErrInternalServerError.Key
	switch {
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		status, code = http.StatusUnsupportedMediaType, ErrUnsupportedMediaType.Key
	case errors.Is(err, binder.ErrFailedToParseJSON),
		errors.Is(err, binder.ErrFailedToParseQuery),
		errors.Is(err, binder.ErrFailedToParsePath),
		errors.Is(err, queue.ErrEmptyIDs):
		status, code = http.StatusBadRequest, ErrBadRequest.Key
	case errors.Is(err, queue.ErrNotFound), errors.Is(err, tracking.ErrNotTracked):
		status, code = http.StatusNotFound, ErrNotFound.Key
	case errors.Is(err, queue.ErrValidation),
		errors.Is(err, queue.ErrInvalidPriority),
		errors.Is(err, queue.ErrInvalidConfig),
		errors.Is(err, validator.ErrValidationFailed),
		errors.Is(err, dispatcher.ErrInvalidRetryOptions),
		errors.Is(err, tracking.ErrInvalidRecord),
		errors.Is(err, tracking.ErrUnknownEmail),
		errors.Is(err, tracking.ErrUnsupportedEvent),
		errors.Is(err, attachment.ErrInvalidReference):
		status, code = http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, queue.ErrAlreadyClaimed),
		errors.Is(err, queue.ErrNotClaimable),
		errors.Is(err, queue.ErrInvalidStateTransition),
		errors.Is(err, queue.ErrRetriesExhausted),
		errors.Is(err, queue.ErrRejected):
		status, code = http.StatusConflict, ErrConflict.Key
	case errors.Is(err, dispatcher.ErrSizeLimitExceeded):
		status, code = http.StatusRequestEntityTooLarge, ErrRequestEntityTooLarge.Key
	case errors.Is(err, dispatcher.ErrRateLimitExceeded):
		status, code = http.StatusTooManyRequests, ErrTooManyRequests.Key
	case errors.Is(err, queue.ErrQueueFull):
		status, code = http.StatusServiceUnavailable, "queue_full"
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError && code == ErrInternalServerError.Key {
		msg = http.StatusText(status)
	}
	return status, ErrorDetail{Code: code, Message: msg}
}
