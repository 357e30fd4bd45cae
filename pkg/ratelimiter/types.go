package ratelimiter

import "time"

// Result contains the outcome of a rate limit check.
type Result struct {
	Limit     int       // bucket capacity
	Remaining int       // tokens left; negative means the request was denied
	ResetAt   time.Time // when enough tokens for the request will be available
	RetryIn   time.Duration
}

// Allowed reports whether the request consumed its tokens.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait before retrying. Zero when allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(r.RetryIn, 0)
}

// Config defines the token bucket.
type Config struct {
	Capacity       int           // burst size
	RefillRate     int           // tokens added per interval
	RefillInterval time.Duration // refill period
}

// PerInterval spreads n tokens evenly across interval with a burst of n.
// PerInterval(60, time.Minute) refills one token every second.
func PerInterval(n int, interval time.Duration) Config {
	if n <= 0 {
		return Config{}
	}
	return Config{
		Capacity:       n,
		RefillRate:     1,
		RefillInterval: interval / time.Duration(n),
	}
}
