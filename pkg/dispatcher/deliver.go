package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/attachment"
	"github.com/dmitrymomot/mailqueue/pkg/audit"
	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/email/templates"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/ratelimiter"
	"github.com/dmitrymomot/mailqueue/pkg/tracking"
	"github.com/dmitrymomot/mailqueue/pkg/validator"
)

// admitFunc takes one provider token or reports why it could not.
type admitFunc func(ctx context.Context) error

func allowNow(limiter *ratelimiter.Bucket) admitFunc {
	return func(ctx context.Context) error {
		res, err := limiter.Allow(ctx, ProviderKey)
		if err != nil {
			return err
		}
		if !res.Allowed() {
			return &RateLimitError{RetryAfter: res.RetryAfter()}
		}
		return nil
	}
}

func waitFor(limiter *ratelimiter.Bucket) admitFunc {
	return func(ctx context.Context) error {
		_, err := limiter.Wait(ctx, ProviderKey)
		return err
	}
}

// attempt delivers a claimed email once. Every outcome that reaches the
// provider releases the claim and writes exactly one audit entry. A message
// over the size ceiling is returned with its claim still held; the caller
// decides between releasing it and parking it.
func (d *Dispatcher) attempt(ctx context.Context, cfg queue.Config, e *queue.QueuedEmail, workerID string, admit admitFunc) DeliveryResult {
	res := DeliveryResult{EmailID: e.ID, Status: e.Status}

	msg, invalid, err := d.compose(ctx, e)
	res.InvalidRecipients = invalid
	if err != nil {
		return d.fail(ctx, cfg, e, workerID, res, err, contentRetryable(err))
	}

	size, err := email.MessageSize(msg)
	if err != nil {
		return d.fail(ctx, cfg, e, workerID, res, fmt.Errorf("%w: %w", ErrContentUnavailable, err), false)
	}
	if cfg.MaxMessageSize > 0 && int64(size) > cfg.MaxMessageSize {
		serr := &SizeLimitError{EmailID: e.ID, Size: int64(size), Limit: cfg.MaxMessageSize}
		d.log.WarnContext(ctx, "email exceeds size limit",
			logger.EmailID(e.ID),
			slog.Int64("size", serr.Size),
			slog.Int64("limit", serr.Limit))
		res.Err = serr
		return res
	}

	if err := admit(ctx); err != nil {
		d.release(ctx, e.ID, workerID)
		res.Err = err
		return res
	}
	// the limiter may have kept us waiting past ClaimTTL
	if _, err := d.queue.RenewClaim(ctx, e.ID, workerID, cfg.ClaimTTL); err != nil {
		d.log.WarnContext(ctx, "claim lost before send", logger.EmailID(e.ID), logger.WorkerID(workerID), logger.Error(err))
		res.Err = err
		return res
	}

	var (
		sendCtx context.Context
		cancel  context.CancelFunc
	)
	if cfg.ProviderTimeout > 0 {
		sendCtx, cancel = context.WithTimeout(ctx, cfg.ProviderTimeout)
	} else {
		sendCtx, cancel = context.WithCancel(ctx)
	}
	started := d.clock.Now()
	providerID, err := d.sender.Send(sendCtx, msg)
	timedOut := errors.Is(sendCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	if err != nil {
		var se *email.SendError
		if timedOut && !errors.As(err, &se) {
			err = &email.SendError{
				Provider:  "dispatcher",
				Retryable: true,
				Err:       fmt.Errorf("no response within %s: %w", cfg.ProviderTimeout, err),
			}
		}
		return d.fail(ctx, cfg, e, workerID, res, err, sendRetryable(err))
	}
	return d.succeed(ctx, e, workerID, res, providerID, len(msg.Recipients()), d.clock.Now().Sub(started))
}

// compose validates recipients, renders content and loads attachments.
// Invalid recipients are dropped and reported; the rest still get the message.
func (d *Dispatcher) compose(ctx context.Context, e *queue.QueuedEmail) (*email.Message, []string, error) {
	to := validator.ValidateEmailListWith(e.To, d.emailOptions)
	cc := validator.ValidateEmailListWith(e.CC, d.emailOptions)
	bcc := validator.ValidateEmailListWith(e.BCC, d.emailOptions)

	invalid := slices.Concat(to.Invalid, cc.Invalid, bcc.Invalid)
	if len(invalid) == 0 {
		invalid = nil
	}
	if len(to.Valid)+len(cc.Valid)+len(bcc.Valid) == 0 {
		return nil, invalid, fmt.Errorf("%w: %s", ErrNoValidRecipients, strings.Join(invalid, ", "))
	}

	subject, html, text := e.Subject, e.HTMLBody, e.TextBody
	if e.TemplateID != "" {
		content, err := d.renderer.Render(ctx, e.TemplateID, templates.Data(e.TemplateData), d.templateOptions)
		if err != nil {
			return nil, invalid, err
		}
		if subject == "" {
			subject = content.Subject
		}
		html, text = content.HTMLBody, content.TextBody
	}

	files, err := d.attachments.Load(ctx, e.Attachments)
	if err != nil {
		return nil, invalid, err
	}

	metadata := maps.Clone(e.Metadata)
	if metadata == nil {
		metadata = make(map[string]string, 1)
	}
	metadata[tracking.MetadataEmailID] = e.ID.String()

	msg := &email.Message{
		From:        d.from,
		ReplyTo:     d.replyTo,
		To:          to.Valid,
		CC:          cc.Valid,
		BCC:         bcc.Valid,
		Subject:     subject,
		HTMLBody:    html,
		TextBody:    text,
		Attachments: files,
		Tag:         string(e.Type),
		Metadata:    metadata,
	}
	if err := msg.Validate(); err != nil {
		return nil, invalid, err
	}
	return msg, invalid, nil
}

func (d *Dispatcher) succeed(ctx context.Context, e *queue.QueuedEmail, workerID string, res DeliveryResult, providerID string, recipients int, took time.Duration) DeliveryResult {
	store := context.WithoutCancel(ctx)
	now := d.clock.Now()
	attemptNo := e.RetryCount + 1

	lost := false
	_, err := d.queue.Mutate(store, e.ID, func(rec *queue.QueuedEmail) error {
		// the provider took the message, so sent is recorded even without the claim
		lost = rec.ClaimedBy != workerID
		if err := queue.Transition(rec, queue.StatusSent); err != nil {
			return err
		}
		rec.SentAt = &now
		rec.ProviderMessageID = providerID
		rec.LastError = ""
		rec.ScheduledFor = nil
		clearClaim(rec)
		return nil
	})

	res.Status = queue.StatusSent
	res.ProviderMessageID = providerID
	res.Attempts = 1
	if lost {
		d.log.WarnContext(ctx, "email sent after its claim lapsed", logger.EmailID(e.ID), logger.WorkerID(workerID))
	}
	if err != nil {
		// the provider accepted the message; only the record is stale
		d.log.ErrorContext(ctx, "failed to record delivery", logger.EmailID(e.ID), logger.Error(err))
		res.Err = fmt.Errorf("record delivery of %s: %w", e.ID, err)
	}

	msg := "delivered"
	if len(res.InvalidRecipients) > 0 {
		msg = "delivered, skipped invalid recipients: " + strings.Join(res.InvalidRecipients, ", ")
	}
	d.record(ctx, e, workerID, audit.StatusSuccess, attemptNo, msg, "", providerID)

	d.log.InfoContext(ctx, "email sent",
		logger.EmailID(e.ID),
		logger.ProviderMessageID(providerID),
		logger.Attempt(attemptNo),
		logger.Recipients(recipients),
		logger.Duration(took))
	return res
}

// fail records a failed attempt. When retry is set and the record has
// retries left it goes back to pending with a backoff schedule; otherwise
// it ends in failed and admins are notified.
func (d *Dispatcher) fail(ctx context.Context, cfg queue.Config, e *queue.QueuedEmail, workerID string, res DeliveryResult, cause error, retry bool) DeliveryResult {
	store := context.WithoutCancel(ctx)
	now := d.clock.Now()
	attemptNo := e.RetryCount + 1
	limit := e.MaxRetries

	var retryAt *time.Time
	updated, err := d.queue.Mutate(store, e.ID, func(rec *queue.QueuedEmail) error {
		retryAt = nil
		if rec.ClaimedBy != workerID {
			return fmt.Errorf("%w: %s", queue.ErrClaimLost, e.ID)
		}
		if err := queue.Transition(rec, queue.StatusFailed); err != nil {
			return err
		}
		rec.LastError = cause.Error()
		clearClaim(rec)

		if retry && rec.RetryCount < min(limit, rec.MaxRetries) {
			delay := max(cfg.Backoff(rec.RetryCount), email.RetryAfter(cause))
			if err := queue.Transition(rec, queue.StatusPending); err != nil {
				return err
			}
			rec.RetryCount++
			at := now.Add(delay)
			rec.ScheduledFor = &at
			retryAt = &at
		}
		return nil
	})

	res.Attempts = 1
	res.Err = cause
	if err != nil {
		d.log.ErrorContext(ctx, "failed to record delivery failure", logger.EmailID(e.ID), logger.Error(err))
		d.release(ctx, e.ID, workerID)
		res.Err = errors.Join(cause, fmt.Errorf("record failure of %s: %w", e.ID, err))
		retryAt = nil
	} else {
		res.Status = updated.Status
		res.RetryAt = retryAt
	}

	msg := fmt.Sprintf("attempt %d failed", attemptNo)
	if retryAt != nil {
		msg = fmt.Sprintf("attempt %d failed, retry scheduled for %s", attemptNo, retryAt.UTC().Format(time.RFC3339))
	}
	d.record(ctx, e, workerID, audit.StatusError, attemptNo, msg, cause.Error(), "")

	if retryAt != nil {
		d.log.WarnContext(ctx, "email delivery failed, will retry",
			logger.EmailID(e.ID),
			logger.Attempt(attemptNo),
			slog.Time("retry_at", *retryAt),
			logger.Error(cause))
		return res
	}

	d.log.ErrorContext(ctx, "email delivery failed",
		logger.EmailID(e.ID),
		logger.Attempt(attemptNo),
		logger.Error(cause))
	if err == nil {
		d.queue.NotifyFailure(store, updated)
	}
	return res
}

// refuseOversized answers a direct delivery of an email over the size
// ceiling: the claim is dropped, the stored record is left as it was and
// admins are alerted.
func (d *Dispatcher) refuseOversized(ctx context.Context, e *queue.QueuedEmail, workerID string, serr error) {
	d.release(ctx, e.ID, workerID)
	d.queue.Notify(context.WithoutCancel(ctx), queue.Alert{Kind: queue.AlertSizeLimit, EmailID: e.ID, Subject: e.Subject, LastError: serr.Error()})
}

// parkOversized keeps an email over the size ceiling pending but moves it out
// of the claim path for OversizedRecheck. Admins are alerted on the first
// refusal only; later rechecks that still fail stay quiet.
func (d *Dispatcher) parkOversized(ctx context.Context, cfg queue.Config, e *queue.QueuedEmail, workerID string, serr error) {
	store := context.WithoutCancel(ctx)
	wait := cfg.OversizedRecheck
	if wait <= 0 {
		wait = cfg.ClaimTTL
	}
	until := d.clock.Now().Add(wait)

	first := false
	_, err := d.queue.Mutate(store, e.ID, func(rec *queue.QueuedEmail) error {
		if rec.ClaimedBy != workerID {
			return fmt.Errorf("%w: %s", queue.ErrClaimLost, e.ID)
		}
		first = !strings.HasPrefix(rec.LastError, ErrSizeLimitExceeded.Error())
		rec.LastError = serr.Error()
		rec.ScheduledFor = &until
		clearClaim(rec)
		return nil
	})
	if err != nil {
		d.log.ErrorContext(ctx, "failed to park oversized email", logger.EmailID(e.ID), logger.Error(err))
		d.release(ctx, e.ID, workerID)
		return
	}
	if first {
		d.queue.Notify(store, queue.Alert{Kind: queue.AlertSizeLimit, EmailID: e.ID, Subject: e.Subject, LastError: serr.Error()})
	}
}

func (d *Dispatcher) record(ctx context.Context, e *queue.QueuedEmail, workerID string, status audit.Status, attemptNo int, msg, details, providerID string) {
	store := context.WithoutCancel(ctx)

	err := d.auditor.Append(store, audit.Entry{
		EmailID:           e.ID,
		Status:            status,
		Subject:           e.Subject,
		Recipients:        e.Recipients(),
		Message:           msg,
		ErrorDetails:      details,
		Attempt:           attemptNo,
		Actor:             workerID,
		ProviderMessageID: providerID,
	})
	if err != nil {
		d.log.ErrorContext(ctx, "failed to append audit entry", logger.EmailID(e.ID), logger.Error(err))
	}

	err = d.recorder.RecordAttempt(store, e.ID, tracking.Attempt{
		Number:            attemptNo,
		Status:            string(status),
		Error:             details,
		ProviderMessageID: providerID,
		At:                d.clock.Now(),
	})
	if err != nil {
		d.log.WarnContext(ctx, "failed to track attempt", logger.EmailID(e.ID), logger.Error(err))
	}
}

func (d *Dispatcher) release(ctx context.Context, id uuid.UUID, workerID string) {
	if err := d.queue.Release(context.WithoutCancel(ctx), id, workerID); err != nil {
		d.log.WarnContext(ctx, "failed to release claim", logger.EmailID(id), logger.Error(err))
	}
}

func clearClaim(e *queue.QueuedEmail) {
	e.ClaimedBy = ""
	e.ClaimedUntil = nil
}

// contentRetryable reports whether building the message may succeed later.
func contentRetryable(err error) bool {
	return errors.Is(err, attachment.ErrServiceUnavailable) ||
		errors.Is(err, attachment.ErrOperationTimeout)
}

// sendRetryable trusts the provider's classification and treats any other
// transport failure as transient.
func sendRetryable(err error) bool {
	var se *email.SendError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return !errors.Is(err, email.ErrInvalidMessage)
}
