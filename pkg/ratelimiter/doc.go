// Package ratelimiter implements token bucket rate limiting.
//
// A Bucket consumes tokens from a Store. MemoryStore keeps state in
// process; RedisStore keeps it in Redis so several processes share the
// same limit. Both take their time from a clock.Clock, which lets tests
// drive refills with a virtual clock.
//
// Denied requests consume nothing. Result.RetryAfter reports how long to
// wait until enough tokens are available, and Bucket.Wait sleeps on the
// bucket's clock until then.
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.PerInterval(50, time.Second))
//	if err != nil {
//		return err
//	}
//	if _, err := limiter.Wait(ctx, "provider"); err != nil {
//		return err
//	}
//
// Middleware applies a bucket to HTTP handlers and sets the usual
// X-RateLimit-* and Retry-After headers.
package ratelimiter
