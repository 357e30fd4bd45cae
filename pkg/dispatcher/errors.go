package dispatcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueNil            = errors.New("dispatcher: queue service cannot be nil")
	ErrDispatcherNil       = errors.New("dispatcher: dispatcher cannot be nil")
	ErrSizeLimitExceeded   = errors.New("dispatcher: message exceeds the size limit")
	ErrRateLimitExceeded   = errors.New("dispatcher: provider rate limit exceeded")
	ErrNoValidRecipients   = errors.New("dispatcher: no valid recipients")
	ErrContentUnavailable  = errors.New("dispatcher: message content could not be built")
	ErrPoolAlreadyStarted  = errors.New("dispatcher: pool already started")
	ErrPoolNotStarted      = errors.New("dispatcher: pool not started")
	ErrHandlerPanicked     = errors.New("dispatcher: delivery panicked")
	ErrInvalidRetryOptions = errors.New("dispatcher: invalid retry options")
)

// SizeLimitError is returned when the serialized message is larger than
// the configured ceiling. The provider is never called.
type SizeLimitError struct {
	EmailID uuid.UUID
	Size    int64
	Limit   int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s: %s is %d bytes, limit %d", ErrSizeLimitExceeded, e.EmailID, e.Size, e.Limit)
}

func (e *SizeLimitError) Unwrap() error {
	return ErrSizeLimitExceeded
}

// RateLimitError is returned by non-blocking delivery when the provider
// budget is spent. Callers back off for RetryAfter.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrRateLimitExceeded, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimitExceeded
}
