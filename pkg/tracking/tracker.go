package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/clock"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

// StatsSource provides the queue summary. *queue.Service satisfies it.
type StatsSource interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// Tracker records per-message delivery history and reports aggregates.
type Tracker struct {
	store Store
	queue StatsSource
	clock clock.Clock
	log   *slog.Logger
}

type Option func(*Tracker)

func WithClock(c clock.Clock) Option {
	return func(t *Tracker) {
		t.clock = clock.OrDefault(c)
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

func NewTracker(store Store, stats StatsSource, opts ...Option) (*Tracker, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if stats == nil {
		return nil, ErrStatsSourceNil
	}

	t := &Tracker{store: store, queue: stats, clock: clock.New(), log: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With(logger.Component("tracking"))
	return t, nil
}

// RecordAttempt appends a dispatch attempt.
func (t *Tracker) RecordAttempt(ctx context.Context, id uuid.UUID, a Attempt) error {
	if a.Status == "" {
		return fmt.Errorf("%w: attempt status is required", ErrInvalidRecord)
	}
	a.At = t.stamp(a.At)
	return t.append(ctx, id, Record{Kind: KindAttempt, Attempt: &a})
}

// RecordEvent appends a provider event such as delivered or opened.
func (t *Tracker) RecordEvent(ctx context.Context, id uuid.UUID, e Event) error {
	if e.Type == "" {
		return fmt.Errorf("%w: event type is required", ErrInvalidRecord)
	}
	e.Recipient = normalize(e.Recipient)
	e.At = t.stamp(e.At)
	return t.append(ctx, id, Record{Kind: KindEvent, Event: &e})
}

// RecordBounce appends a bounce, keeping the provider's classification.
func (t *Tracker) RecordBounce(ctx context.Context, id uuid.UUID, b Bounce) error {
	switch b.Type {
	case BouncePermanent, BounceTransient:
	default:
		return fmt.Errorf("%w: bounce type %q", ErrInvalidRecord, b.Type)
	}
	b.Recipients = normalizeAll(b.Recipients)
	b.At = t.stamp(b.At)
	if err := t.append(ctx, id, Record{Kind: KindBounce, Bounce: &b}); err != nil {
		return err
	}

	t.log.WarnContext(ctx, "email bounced",
		logger.EmailID(id),
		slog.String("bounce_type", string(b.Type)),
		logger.Recipients(len(b.Recipients)))
	return nil
}

// RecordComplaint appends a recipient complaint.
func (t *Tracker) RecordComplaint(ctx context.Context, id uuid.UUID, c Complaint) error {
	switch c.Category {
	case ComplaintAbuse, ComplaintOther:
	default:
		return fmt.Errorf("%w: complaint category %q", ErrInvalidRecord, c.Category)
	}
	c.Recipients = normalizeAll(c.Recipients)
	c.At = t.stamp(c.At)
	if err := t.append(ctx, id, Record{Kind: KindComplaint, Complaint: &c}); err != nil {
		return err
	}

	t.log.WarnContext(ctx, "complaint received",
		logger.EmailID(id),
		slog.String("category", string(c.Category)))
	return nil
}

// GetStats merges the history of one email. ErrNotTracked when it has none.
func (t *Tracker) GetStats(ctx context.Context, id uuid.UUID) (*DeliveryStats, error) {
	records, err := t.store.Records(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotTracked, id)
	}
	return merge(id, records), nil
}

// QueueStats returns the queue summary plus bounce and complaint totals.
func (t *Tracker) QueueStats(ctx context.Context) (QueueStats, error) {
	stats, err := t.queue.Stats(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	totals, err := t.store.Totals(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	return QueueStats{
		Stats:            stats,
		Bounces:          totals.Bounces,
		PermanentBounces: totals.PermanentBounces,
		Complaints:       totals.Complaints,
	}, nil
}

func (t *Tracker) append(ctx context.Context, id uuid.UUID, r Record) error {
	if id == uuid.Nil {
		return ErrInvalidEmailID
	}
	return t.store.Append(ctx, id, r)
}

func (t *Tracker) stamp(at time.Time) time.Time {
	if at.IsZero() {
		return t.clock.Now().UTC()
	}
	return at.UTC()
}

func merge(id uuid.UUID, records []Record) *DeliveryStats {
	ds := &DeliveryStats{
		EmailID:    id,
		Attempts:   []Attempt{},
		Events:     []Event{},
		Bounces:    []Bounce{},
		Complaints: []Complaint{},
	}
	for _, r := range records {
		switch r.Kind {
		case KindAttempt:
			ds.Attempts = append(ds.Attempts, *r.Attempt)
			if r.Attempt.Status == "success" {
				ds.SentAt = earliest(ds.SentAt, r.Attempt.At)
			}
		case KindEvent:
			ds.Events = append(ds.Events, *r.Event)
			switch r.Event.Type {
			case EventSent:
				ds.SentAt = earliest(ds.SentAt, r.Event.At)
			case EventDelivered:
				ds.DeliveredAt = earliest(ds.DeliveredAt, r.Event.At)
			case EventOpened:
				ds.OpenedAt = earliest(ds.OpenedAt, r.Event.At)
			}
		case KindBounce:
			ds.Bounces = append(ds.Bounces, *r.Bounce)
		case KindComplaint:
			ds.Complaints = append(ds.Complaints, *r.Complaint)
		}
	}
	return ds
}

func earliest(cur *time.Time, at time.Time) *time.Time {
	if cur != nil && !at.Before(*cur) {
		return cur
	}
	return &at
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func normalizeAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		if a = normalize(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
