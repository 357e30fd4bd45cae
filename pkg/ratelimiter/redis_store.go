package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/mailqueue/pkg/clock"
)

// consumeScript mirrors MemoryStore: whole-interval refill, no deduction on denial.
// Times are unix milliseconds supplied by the caller's clock.
var consumeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate     = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now      = tonumber(ARGV[4])
local need     = tonumber(ARGV[5])
local ttl      = tonumber(ARGV[6])

local state  = redis.call('HMGET', KEYS[1], 'tokens', 'last')
local tokens = tonumber(state[1])
local last   = tonumber(state[2])
if tokens == nil or last == nil then
  tokens = capacity
  last = now
end

if now > last then
  local intervals = math.floor((now - last) / interval)
  if intervals > 0 then
    if intervals > math.floor(capacity / rate) + 1 then
      tokens = capacity
      last = now
    else
      tokens = math.min(tokens + intervals * rate, capacity)
      last = last + intervals * interval
    end
  end
end

local remaining
local deficit = need - tokens
if deficit > 0 then
  remaining = -deficit
else
  tokens = tokens - need
  remaining = tokens
  deficit = 1 - tokens
end

local wait = 1
if deficit > 0 then
  wait = math.ceil(deficit / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last', last)
redis.call('PEXPIRE', KEYS[1], ttl)
return {remaining, last + wait * interval}
`)

// RedisStore keeps buckets in Redis so several processes share one limit.
type RedisStore struct {
	client redis.Scripter
	prefix string
	clock  clock.Clock
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the key prefix. Default "ratelimit:".
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisClock sets the clock whose time is sent to the script.
func WithRedisClock(c clock.Clock) RedisStoreOption {
	return func(s *RedisStore) {
		s.clock = clock.OrDefault(c)
	}
}

// NewRedisStore creates a store on top of any go-redis client.
func NewRedisStore(client redis.Scripter, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "ratelimit:", clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (int, time.Time, error) {
	interval := config.RefillInterval.Milliseconds()
	if interval <= 0 {
		return 0, time.Time{}, fmt.Errorf("%w: refill interval below 1ms", ErrInvalidConfig)
	}
	ttl := max(interval*int64(config.Capacity/config.RefillRate+1)*2, time.Second.Milliseconds())

	vals, err := consumeScript.Run(ctx, s.client, []string{s.prefix + key},
		config.Capacity, config.RefillRate, interval, s.clock.Now().UnixMilli(), tokens, ttl,
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(vals) != 2 {
		return 0, time.Time{}, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, vals)
	}
	return int(vals[0]), time.UnixMilli(vals[1]), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if c, ok := s.client.(redis.Cmdable); ok {
		if err := c.Del(ctx, s.prefix+key).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}
	return s.client.Eval(ctx, "return redis.call('DEL', KEYS[1])", []string{s.prefix + key}).Err()
}
