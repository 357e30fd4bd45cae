package clock

import (
	"context"
	"time"
)

// Clock abstracts time so backoff and throttling can be driven by a virtual clock in tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done. Returns ctx.Err() when interrupted.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// New returns a Clock backed by the system time.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OrDefault returns c or the system clock when c is nil.
func OrDefault(c Clock) Clock {
	if c == nil {
		return New()
	}
	return c
}
