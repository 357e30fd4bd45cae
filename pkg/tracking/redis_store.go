package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// appendScript pushes the record, bumps the counters and refreshes the TTL
// in one round trip.
var appendScript = redis.NewScript(`
redis.call('RPUSH', KEYS[1], ARGV[1])
redis.call('HINCRBY', KEYS[2], ARGV[2], 1)
if ARGV[3] ~= '' then
	redis.call('HINCRBY', KEYS[2], ARGV[3], 1)
end
local ttl = tonumber(ARGV[4])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return redis.call('LLEN', KEYS[1])
`)

// RedisClient is the subset of go-redis the store needs. *redis.Client
// and *redis.ClusterClient satisfy it.
type RedisClient interface {
	redis.Scripter
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// RedisStore keeps each email's history in a Redis list and the totals in a hash.
type RedisStore struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the key prefix. Default "mailqueue:tracking:".
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRetention expires a history this long after its last record.
// Zero keeps histories forever.
func WithRetention(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.ttl = max(ttl, 0)
	}
}

func NewRedisStore(client RedisClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "mailqueue:tracking:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Append(ctx context.Context, emailID uuid.UUID, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	counter, sub := counterFields(r)

	err = appendScript.Run(ctx, s.client,
		[]string{s.historyKey(emailID), s.totalsKey()},
		string(data), counter, sub, s.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Records(ctx context.Context, emailID uuid.UUID) ([]Record, error) {
	raw, err := s.client.LRange(ctx, s.historyKey(emailID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		var r Record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("%w: decode %s history: %v", ErrInvalidRecord, emailID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) Totals(ctx context.Context) (Totals, error) {
	fields, err := s.client.HGetAll(ctx, s.totalsKey()).Result()
	if err != nil {
		return Totals{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return parseTotals(fields)
}

func (s *RedisStore) historyKey(id uuid.UUID) string {
	return s.prefix + "email:" + id.String()
}

func (s *RedisStore) totalsKey() string {
	return s.prefix + "totals"
}

const (
	fieldAttempts         = "attempts"
	fieldEvents           = "events"
	fieldBounces          = "bounces"
	fieldPermanentBounces = "bounces_permanent"
	fieldTransientBounces = "bounces_transient"
	fieldComplaints       = "complaints"
)

func counterFields(r Record) (string, string) {
	switch r.Kind {
	case KindAttempt:
		return fieldAttempts, ""
	case KindEvent:
		return fieldEvents, ""
	case KindBounce:
		if r.Bounce != nil && r.Bounce.Type == BouncePermanent {
			return fieldBounces, fieldPermanentBounces
		}
		return fieldBounces, fieldTransientBounces
	case KindComplaint:
		return fieldComplaints, ""
	}
	return string(r.Kind), ""
}

func parseTotals(fields map[string]string) (Totals, error) {
	var t Totals
	targets := map[string]*int64{
		fieldAttempts:         &t.Attempts,
		fieldEvents:           &t.Events,
		fieldBounces:          &t.Bounces,
		fieldPermanentBounces: &t.PermanentBounces,
		fieldTransientBounces: &t.TransientBounces,
		fieldComplaints:       &t.Complaints,
	}
	for name, raw := range fields {
		dst, ok := targets[name]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Totals{}, fmt.Errorf("%w: counter %s=%q", ErrInvalidRecord, name, raw)
		}
		*dst = n
	}
	return t, nil
}
