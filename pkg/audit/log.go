package audit

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/clock"
)

// Log is the append-only delivery audit trail. Entries are hash chained in
// append order.
type Log struct {
	storage Storage
	hasher  Hasher
	clock   clock.Clock
	logger  *slog.Logger

	mu       sync.Mutex
	seeded   bool
	lastSeq  int64
	lastHash string
}

// Option configures a Log.
type Option func(*Log)

// WithClock sets the time source for entry timestamps and pruning.
func WithClock(c clock.Clock) Option {
	return func(l *Log) {
		l.clock = clock.OrDefault(c)
	}
}

// WithHasher replaces the sha256 chain hasher.
func WithHasher(h Hasher) Option {
	return func(l *Log) {
		if h != nil {
			l.hasher = h
		}
	}
}

// WithLogger sets the logger used for storage errors that are not returned.
func WithLogger(log *slog.Logger) Option {
	return func(l *Log) {
		if log != nil {
			l.logger = log
		}
	}
}

// NewLog creates an audit log over storage.
func NewLog(storage Storage, opts ...Option) (*Log, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	l := &Log{
		storage: storage,
		hasher:  NewSHA256Hasher(),
		clock:   clock.New(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Append assigns id, sequence, timestamp and chain hash to e and stores it.
// Appends are serialized through Store, so every entry links to the last
// entry that was actually persisted.
func (l *Log) Append(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.seeded {
		last, err := l.storage.Last(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageNotAvailable, err)
		}
		l.lastSeq, l.lastHash = 0, ""
		if last != nil {
			l.lastSeq, l.lastHash = last.Seq, last.Hash
		}
		l.seeded = true
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.clock.Now()
	}
	// millisecond precision survives every storage backend
	e.Timestamp = e.Timestamp.UTC().Truncate(time.Millisecond)
	e.Recipients = slices.Clone(e.Recipients)
	e.Seq = l.lastSeq + 1
	e.PrevHash = l.lastHash
	e.Hash = l.hasher.Hash(e, l.lastHash)

	// Store runs to completion so the chain head always matches storage
	if err := l.storage.Store(context.WithoutCancel(ctx), e); err != nil {
		// the write may still have landed; read the head again on the next append
		l.seeded = false
		return err
	}
	l.lastSeq, l.lastHash = e.Seq, e.Hash
	return nil
}

// Find returns matching entries in append order.
func (l *Log) Find(ctx context.Context, f Filter) ([]Entry, error) {
	return l.storage.Query(ctx, f)
}

// Count returns the number of matching entries.
func (l *Log) Count(ctx context.Context, f Filter) (int64, error) {
	return l.storage.Count(ctx, f)
}

// Prune deletes entries older than olderThan. It is the only way entries are removed.
func (l *Log) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	n, err := l.storage.DeleteBefore(ctx, l.clock.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.logger.InfoContext(ctx, "audit entries pruned", slog.Int64("deleted", n))
	}
	return n, nil
}

// Verify reads the whole trail and checks the hash chain.
func (l *Log) Verify(ctx context.Context) error {
	entries, err := l.storage.Query(ctx, Filter{})
	if err != nil {
		return err
	}
	return VerifyChain(l.hasher, entries)
}
