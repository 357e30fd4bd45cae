package ratelimiter

import (
	"context"
	"time"
)

// Store persists bucket state.
type Store interface {
	// ConsumeTokens takes tokens from the bucket when enough are available.
	// A denied request consumes nothing and returns a negative remaining
	// count equal to the deficit, and the time the deficit is refilled.
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, resetAt time.Time, err error)

	// Reset clears the state for key.
	Reset(ctx context.Context, key string) error
}

// refill advances a bucket to now and returns the new token count and
// refill timestamp. Whole intervals are added so the schedule does not drift.
func refill(tokens int, lastRefill, now time.Time, cfg Config) (int, time.Time) {
	if !now.After(lastRefill) {
		return tokens, lastRefill
	}
	intervals := int64(now.Sub(lastRefill) / cfg.RefillInterval)
	if intervals <= 0 {
		return tokens, lastRefill
	}
	maxIntervals := int64(cfg.Capacity/cfg.RefillRate + 1)
	if intervals > maxIntervals {
		return cfg.Capacity, now
	}
	tokens = min(tokens+int(intervals)*cfg.RefillRate, cfg.Capacity)
	return tokens, lastRefill.Add(time.Duration(intervals) * cfg.RefillInterval)
}

// readyAt returns when a bucket holding tokens will hold need tokens.
func readyAt(tokens, need int, lastRefill time.Time, cfg Config) time.Time {
	deficit := need - tokens
	if deficit <= 0 {
		return lastRefill.Add(cfg.RefillInterval)
	}
	intervals := (deficit + cfg.RefillRate - 1) / cfg.RefillRate
	return lastRefill.Add(time.Duration(intervals) * cfg.RefillInterval)
}
