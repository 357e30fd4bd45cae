package email

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidConfig  = errors.New("email: invalid config")
	ErrInvalidMessage = errors.New("email: invalid message")
	ErrTransport      = errors.New("email: transport error")
	ErrUnknownSender  = errors.New("email: unknown sender")
)

// SendError describes a failed provider call. Retryable marks failures
// worth another attempt (timeouts, throttling, 5xx); RetryAfter is the
// provider's hint, zero when it gave none.
type SendError struct {
	Provider   string
	Code       int
	Retryable  bool
	RetryAfter time.Duration
	Err        error
}

func (e *SendError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d): %v", ErrTransport, e.Provider, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.Provider, e.Err)
}

func (e *SendError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// IsRetryable reports whether err is a SendError marked retryable.
func IsRetryable(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// RetryAfter returns the provider's retry hint carried by err, if any.
func RetryAfter(err error) time.Duration {
	var se *SendError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}
