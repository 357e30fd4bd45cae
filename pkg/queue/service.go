package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/audit"
	"github.com/dmitrymomot/mailqueue/pkg/clock"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// Auditor receives write-once audit entries.
type Auditor interface {
	Append(ctx context.Context, e audit.Entry) error
}

type nopAuditor struct{}

func (nopAuditor) Append(context.Context, audit.Entry) error { return nil }

// Service is the queue store: every read and mutation of queued emails goes through it.
type Service struct {
	store  Storage
	config ConfigSource
	clock  clock.Clock
	log    *slog.Logger

	mu       sync.RWMutex
	notifier Notifier
	auditor  Auditor
}

// NewService creates a queue service over store. A nil config source means DefaultConfig.
func NewService(store Storage, cfg ConfigSource, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, ErrStorageNil
	}
	if cfg == nil {
		cfg = StaticConfigSource(DefaultConfig())
	}

	s := &Service{
		store:    store,
		config:   cfg,
		clock:    clock.New(),
		log:      slog.Default(),
		notifier: nopNotifier{},
		auditor:  nopAuditor{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("queue"))
	return s, nil
}

// SetNotifier replaces the notifier. Used when the notifier itself enqueues through s.
func (s *Service) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// Config returns the current policy.
func (s *Service) Config(ctx context.Context) (Config, error) {
	return s.config.Current(ctx)
}

// Now returns the service clock time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Add validates and enqueues a new email. Its status is draft when the policy
// requires approval for its type, pending otherwise.
func (s *Service) Add(ctx context.Context, p EnqueueParams) (*QueuedEmail, error) {
	cfg, err := s.config.Current(ctx)
	if err != nil {
		return nil, err
	}

	e, err := newEmail(p, s.clock.Now())
	if err != nil {
		return nil, err
	}
	e.MaxRetries = cfg.MaxRetries
	e.Status = StatusPending
	if cfg.RequiresApproval(e.Type) && !p.SkipApproval {
		e.Status = StatusDraft
	}

	backlog, err := s.admit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "email enqueued",
		logger.EmailID(e.ID),
		logger.Status(e.Status),
		slog.String("type", string(e.Type)),
		logger.Recipients(len(e.Recipients())))

	if e.Type != TypeAdminAlert && cfg.LargeQueueThreshold > 0 && backlog+1 == cfg.LargeQueueThreshold {
		s.Notify(ctx, Alert{Kind: AlertLargeQueue, Count: backlog + 1, At: e.CreatedAt})
	}
	return e, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*QueuedEmail, error) {
	return s.store.Get(ctx, id)
}

// List returns records ordered priority desc, scheduledFor asc (unscheduled first), createdAt asc.
func (s *Service) List(ctx context.Context, f Filter) ([]*QueuedEmail, error) {
	return s.store.List(ctx, f)
}

func (s *Service) Count(ctx context.Context, f Filter) (int, error) {
	return s.store.Count(ctx, f)
}

// Update merges p into the record. Claimed records cannot be edited.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p Patch) (*QueuedEmail, error) {
	now := s.clock.Now()
	return s.store.Update(ctx, id, func(e *QueuedEmail) error {
		if e.IsClaimed(now) {
			return fmt.Errorf("%w: held by %s", ErrAlreadyClaimed, e.ClaimedBy)
		}
		return p.Apply(e, now)
	})
}

// Delete removes a record unless a worker holds it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.IsClaimed(s.clock.Now()) {
		return fmt.Errorf("%w: held by %s", ErrAlreadyClaimed, e.ClaimedBy)
	}
	return s.store.Delete(ctx, id)
}

// BulkDelete deletes each id independently and reports per-item outcomes.
func (s *Service) BulkDelete(ctx context.Context, ids []uuid.UUID) (BulkResult, error) {
	if len(ids) == 0 {
		return BulkResult{}, ErrEmptyIDs
	}
	var res BulkResult
	for _, id := range ids {
		res.add(id, s.Delete(ctx, id))
	}
	return res, nil
}

// BulkUpdate applies p to each id independently and reports per-item outcomes.
func (s *Service) BulkUpdate(ctx context.Context, ids []uuid.UUID, p Patch) (BulkResult, error) {
	if len(ids) == 0 {
		return BulkResult{}, ErrEmptyIDs
	}
	var res BulkResult
	for _, id := range ids {
		_, err := s.Update(ctx, id, p)
		res.add(id, err)
	}
	return res, nil
}

// Duplicate copies the content of id into a new draft, or a pending email when
// resetToPending is set. Delivery state and approval fields start empty.
func (s *Service) Duplicate(ctx context.Context, id uuid.UUID, resetToPending bool) (*QueuedEmail, error) {
	cfg, err := s.config.Current(ctx)
	if err != nil {
		return nil, err
	}
	src, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	dup := &QueuedEmail{
		ID:           uuid.New(),
		Status:       StatusDraft,
		Type:         src.Type,
		Priority:     src.Priority,
		To:           src.To,
		CC:           src.CC,
		BCC:          src.BCC,
		Subject:      src.Subject,
		HTMLBody:     src.HTMLBody,
		TextBody:     src.TextBody,
		TemplateID:   src.TemplateID,
		TemplateData: src.TemplateData,
		Attachments:  src.Attachments,
		Metadata:     src.Metadata,
		MaxRetries:   cfg.MaxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if resetToPending {
		dup.Status = StatusPending
	}

	if _, err := s.admit(ctx, cfg); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, dup); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "email duplicated",
		logger.EmailID(dup.ID),
		slog.String("source_id", id.String()),
		logger.Status(dup.Status))
	return dup, nil
}

// Stats summarizes the queue as of now.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx, WindowAt(s.clock.Now()))
}

// Approve releases a draft for delivery after AutoSendDelay and records who approved it.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, by string) (*QueuedEmail, error) {
	cfg, err := s.config.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	e, err := s.store.Update(ctx, id, func(e *QueuedEmail) error {
		if e.Status == StatusDraft && e.RejectedAt != nil {
			return fmt.Errorf("%w: by %s", ErrRejected, e.RejectedBy)
		}
		if err := Transition(e, StatusPending); err != nil {
			return err
		}
		e.ApprovedBy = by
		e.ApprovedAt = &now
		e.ScheduledFor = nil
		if cfg.AutoSendDelay > 0 {
			at := now.Add(cfg.AutoSendDelay)
			e.ScheduledFor = &at
		}
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, e, audit.StatusPending, "approved by "+by, by)
	s.log.InfoContext(ctx, "email approved", logger.EmailID(id), slog.String("approved_by", by))
	return e, nil
}

// Reject records a rejection. A draft stays a draft and can no longer be
// approved; a pending email is cancelled.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, by, reason string) (*QueuedEmail, error) {
	now := s.clock.Now()
	e, err := s.store.Update(ctx, id, func(e *QueuedEmail) error {
		switch e.Status {
		case StatusDraft:
		case StatusPending:
			if e.IsClaimed(now) {
				return fmt.Errorf("%w: held by %s", ErrAlreadyClaimed, e.ClaimedBy)
			}
			if err := Transition(e, StatusCancelled); err != nil {
				return err
			}
		default:
			return &TransitionError{From: e.Status, To: StatusCancelled}
		}
		e.RejectedBy = by
		e.RejectedAt = &now
		e.RejectionReason = reason
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "email rejected",
		logger.EmailID(id),
		logger.Status(e.Status),
		slog.String("rejected_by", by))
	return e, nil
}

// Cancel moves a pending email to cancelled. ErrAlreadyClaimed while a worker holds it.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*QueuedEmail, error) {
	now := s.clock.Now()
	e, err := s.store.Update(ctx, id, func(e *QueuedEmail) error {
		if e.IsClaimed(now) {
			return fmt.Errorf("%w: held by %s", ErrAlreadyClaimed, e.ClaimedBy)
		}
		if err := Transition(e, StatusCancelled); err != nil {
			return err
		}
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "email cancelled", logger.EmailID(id))
	return e, nil
}

// Retry moves a failed email back to pending, due immediately, when retries remain.
func (s *Service) Retry(ctx context.Context, id uuid.UUID, by string) (*QueuedEmail, error) {
	now := s.clock.Now()
	e, err := s.store.Update(ctx, id, func(e *QueuedEmail) error {
		if err := Transition(e, StatusPending); err != nil {
			return err
		}
		e.ScheduledFor = nil
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, e, audit.StatusRetry, "manual retry by "+by, by)
	s.log.InfoContext(ctx, "email requeued",
		logger.EmailID(id),
		logger.RetryCount(e.RetryCount),
		slog.String("requeued_by", by))
	return e, nil
}

// ClaimNext claims the next eligible email for workerID.
func (s *Service) ClaimNext(ctx context.Context, workerID string, ttl time.Duration) (*QueuedEmail, error) {
	return s.store.Claim(ctx, workerID, s.clock.Now(), ttl)
}

// ClaimByID claims a specific email for workerID.
func (s *Service) ClaimByID(ctx context.Context, id uuid.UUID, workerID string, ttl time.Duration) (*QueuedEmail, error) {
	return s.store.ClaimByID(ctx, id, workerID, s.clock.Now(), ttl)
}

// Release drops workerID's claim on id.
func (s *Service) Release(ctx context.Context, id uuid.UUID, workerID string) error {
	return s.store.Release(ctx, id, workerID)
}

// RenewClaim extends workerID's claim on id by ttl. It fails with
// ErrClaimLost when the claim was released or taken by another worker.
func (s *Service) RenewClaim(ctx context.Context, id uuid.UUID, workerID string, ttl time.Duration) (*QueuedEmail, error) {
	now := s.clock.Now()
	return s.store.Update(ctx, id, func(e *QueuedEmail) error {
		if e.Status != StatusPending || e.ClaimedBy != workerID {
			return fmt.Errorf("%w: %s", ErrClaimLost, id)
		}
		until := now.Add(ttl)
		e.ClaimedUntil = &until
		return nil
	})
}

// ReleaseExpired makes records with lapsed claims claimable again.
func (s *Service) ReleaseExpired(ctx context.Context) (int, error) {
	return s.store.ReleaseExpired(ctx, s.clock.Now())
}

// DeleteOlderThan removes records in status not updated for age.
func (s *Service) DeleteOlderThan(ctx context.Context, status Status, age time.Duration) (int, error) {
	return s.store.DeleteOlderThan(ctx, status, s.clock.Now().Add(-age))
}

// Mutate runs fn on the record inside the storage update path and bumps updatedAt.
// Delivery code uses it to record outcomes.
func (s *Service) Mutate(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*QueuedEmail, error) {
	now := s.clock.Now()
	return s.store.Update(ctx, id, func(e *QueuedEmail) error {
		if err := fn(e); err != nil {
			return err
		}
		e.UpdatedAt = now
		return nil
	})
}

// Notify sends an alert. Notifier errors are logged, not returned.
func (s *Service) Notify(ctx context.Context, a Alert) {
	if a.At.IsZero() {
		a.At = s.clock.Now()
	}
	s.mu.RLock()
	n := s.notifier
	s.mu.RUnlock()

	if err := n.Notify(ctx, a); err != nil {
		s.log.ErrorContext(ctx, "admin notification failed",
			logger.Event(string(a.Kind)),
			logger.Error(err))
	}
}

// NotifyFailure raises the alerts for an email that failed permanently.
// Admin alert emails never raise further alerts.
func (s *Service) NotifyFailure(ctx context.Context, e *QueuedEmail) {
	if e.Type == TypeAdminAlert {
		return
	}
	s.Notify(ctx, Alert{Kind: AlertDeliveryFailed, EmailID: e.ID, Subject: e.Subject, LastError: e.LastError})

	cfg, err := s.config.Current(ctx)
	if err != nil || cfg.FailureNotifyThreshold <= 0 {
		return
	}
	failed, err := s.store.Count(ctx, Filter{Statuses: []Status{StatusFailed}})
	if err != nil {
		s.log.ErrorContext(ctx, "failed to count failed emails", logger.Error(err))
		return
	}
	if failed == cfg.FailureNotifyThreshold {
		s.Notify(ctx, Alert{Kind: AlertFailureThreshold, Count: failed})
	}
}

// admit enforces MaxQueueSize and returns the current backlog.
func (s *Service) admit(ctx context.Context, cfg Config) (int, error) {
	backlog, err := s.store.Count(ctx, Filter{Statuses: []Status{StatusPending, StatusDraft}})
	if err != nil {
		return 0, err
	}
	if cfg.MaxQueueSize > 0 && backlog >= cfg.MaxQueueSize {
		return backlog, fmt.Errorf("%w: %d of %d", ErrQueueFull, backlog, cfg.MaxQueueSize)
	}
	return backlog, nil
}

func (s *Service) audit(ctx context.Context, e *QueuedEmail, status audit.Status, msg, actor string) {
	s.mu.RLock()
	a := s.auditor
	s.mu.RUnlock()

	err := a.Append(ctx, audit.Entry{
		EmailID:    e.ID,
		Status:     status,
		Subject:    e.Subject,
		Recipients: e.Recipients(),
		Message:    msg,
		Attempt:    e.RetryCount,
		Actor:      actor,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "failed to append audit entry", logger.EmailID(e.ID), logger.Error(err))
	}
}

func newEmail(p EnqueueParams, now time.Time) (*QueuedEmail, error) {
	var errs []error

	to := normalizeAddresses(p.To)
	if len(to) == 0 {
		errs = append(errs, errors.New("at least one recipient is required"))
	}
	if p.Subject == "" && p.TemplateID == "" {
		errs = append(errs, errors.New("subject or template id is required"))
	}
	priority := PriorityDefault
	if p.Priority != nil {
		priority = *p.Priority
	}
	if !priority.Valid() {
		errs = append(errs, ErrInvalidPriority)
	}
	for i, a := range p.Attachments {
		if a.Filename == "" {
			errs = append(errs, fmt.Errorf("attachment %d: filename is required", i))
		}
		if len(a.Content) == 0 && a.Reference == "" {
			errs = append(errs, fmt.Errorf("attachment %q: content or reference is required", a.Filename))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidation, errors.Join(errs...))
	}

	typ := p.Type
	if typ == "" {
		typ = TypeCustom
	}

	e := (&QueuedEmail{
		ID:           uuid.New(),
		Type:         typ,
		Priority:     priority,
		To:           to,
		CC:           normalizeAddresses(p.CC),
		BCC:          normalizeAddresses(p.BCC),
		Subject:      p.Subject,
		HTMLBody:     p.HTMLBody,
		TextBody:     p.TextBody,
		TemplateID:   p.TemplateID,
		TemplateData: p.TemplateData,
		Attachments:  p.Attachments,
		Metadata:     p.Metadata,
		ScheduledFor: cloneTime(p.ScheduledFor),
		CreatedAt:    now,
		UpdatedAt:    now,
	}).Clone()
	for i := range e.Attachments {
		if e.Attachments[i].Size == 0 {
			e.Attachments[i].Size = int64(len(e.Attachments[i].Content))
		}
	}
	return e, nil
}
