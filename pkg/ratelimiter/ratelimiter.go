package ratelimiter

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/mailqueue/pkg/clock"
)

// RateLimiter is implemented by Bucket.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	AllowN(ctx context.Context, key string, n int) (*Result, error)
}

// Bucket is a token bucket limiter over a Store.
type Bucket struct {
	store  Store
	config Config
	clock  clock.Clock
}

// BucketOption configures a Bucket.
type BucketOption func(*Bucket)

// WithClock sets the clock used for retry hints and Wait.
// Stores that track time should share the same clock.
func WithClock(c clock.Clock) BucketOption {
	return func(b *Bucket) {
		b.clock = clock.OrDefault(c)
	}
}

// NewBucket creates a token bucket limiter.
func NewBucket(store Store, config Config, opts ...BucketOption) (*Bucket, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrInvalidConfig)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	b := &Bucket{store: store, config: config, clock: clock.New()}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// WithConfig returns a bucket sharing the same store and clock with a different config.
func (tb *Bucket) WithConfig(config Config) (*Bucket, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Bucket{store: tb.store, config: config, clock: tb.clock}, nil
}

// Config returns the bucket configuration.
func (tb *Bucket) Config() Config {
	return tb.config
}

func (tb *Bucket) Allow(ctx context.Context, key string) (*Result, error) {
	return tb.AllowN(ctx, key, 1)
}

func (tb *Bucket) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenCount, n)
	}
	if n > tb.config.Capacity {
		return nil, fmt.Errorf("%w: %d exceeds capacity %d", ErrInvalidTokenCount, n, tb.config.Capacity)
	}
	return tb.consume(ctx, key, n)
}

// Status returns the bucket state without consuming tokens.
func (tb *Bucket) Status(ctx context.Context, key string) (*Result, error) {
	return tb.consume(ctx, key, 0)
}

func (tb *Bucket) Reset(ctx context.Context, key string) error {
	return tb.store.Reset(ctx, key)
}

// Wait blocks on the bucket's clock until a token is available and consumes it.
func (tb *Bucket) Wait(ctx context.Context, key string) (*Result, error) {
	return tb.WaitN(ctx, key, 1)
}

// WaitN is Wait for n tokens.
func (tb *Bucket) WaitN(ctx context.Context, key string, n int) (*Result, error) {
	for {
		res, err := tb.AllowN(ctx, key, n)
		if err != nil {
			return nil, err
		}
		if res.Allowed() {
			return res, nil
		}
		if err := tb.clock.Sleep(ctx, max(res.RetryAfter(), tb.config.RefillInterval/100, 1)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}
}

func (tb *Bucket) consume(ctx context.Context, key string, n int) (*Result, error) {
	remaining, resetAt, err := tb.store.ConsumeTokens(ctx, key, n, tb.config)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Limit:     tb.config.Capacity,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !res.Allowed() {
		res.RetryIn = resetAt.Sub(tb.clock.Now())
	}
	return res, nil
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}
