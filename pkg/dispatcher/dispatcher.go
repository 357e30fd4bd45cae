package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/mailqueue/pkg/attachment"
	"github.com/dmitrymomot/mailqueue/pkg/audit"
	"github.com/dmitrymomot/mailqueue/pkg/clock"
	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/email/templates"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/ratelimiter"
	"github.com/dmitrymomot/mailqueue/pkg/tracking"
	"github.com/dmitrymomot/mailqueue/pkg/validator"
)

// ProviderKey is the rate limiter key shared by every worker calling the provider.
const ProviderKey = "provider"

// Renderer produces message content from a registered template.
// *templates.Processor satisfies it.
type Renderer interface {
	Render(ctx context.Context, id string, data templates.Data, opts templates.Options) (templates.Content, error)
}

// AttachmentLoader turns queued attachments into inline ones.
// *attachment.Loader satisfies it.
type AttachmentLoader interface {
	Load(ctx context.Context, list []queue.Attachment) ([]email.Attachment, error)
}

// AttemptRecorder receives one record per provider attempt.
// *tracking.Tracker satisfies it.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, id uuid.UUID, a tracking.Attempt) error
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(context.Context, uuid.UUID, tracking.Attempt) error { return nil }

type nopAuditor struct{}

func (nopAuditor) Append(context.Context, audit.Entry) error { return nil }

// DeliveryResult is the outcome of delivering one email.
type DeliveryResult struct {
	EmailID           uuid.UUID
	Status            queue.Status
	ProviderMessageID string
	InvalidRecipients []string
	Attempts          int
	RetryAt           *time.Time
	Err               error
}

// Delivered reports whether the provider accepted the message.
func (r DeliveryResult) Delivered() bool {
	return r.Status == queue.StatusSent
}

// RetryOptions tune DeliverWithRetry. Zero fields fall back to the policy;
// MaxRetries can lower the record's own limit but never raise it.
type RetryOptions struct {
	MaxRetries        int
	BackoffMultiplier float64
	InitialDelay      time.Duration
}

// BatchOptions tune DeliverBatch. Zero fields fall back to the policy.
type BatchOptions struct {
	RateLimit int
	Interval  time.Duration
	BatchSize int
}

// BatchResult reports a batch. Delivered plus Failed always equals the number of ids.
type BatchResult struct {
	Delivered int
	Failed    int
	Results   []DeliveryResult
}

// CycleResult summarizes one ProcessQueue run.
type CycleResult struct {
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Retried int `json:"retried"`
	Parked  int `json:"parked"`
}

// Dispatcher claims queued emails and drives them through validation,
// rendering, size checks, rate limiting and the provider call.
type Dispatcher struct {
	queue       *queue.Service
	sender      email.Sender
	renderer    Renderer
	attachments AttachmentLoader
	auditor     queue.Auditor
	recorder    AttemptRecorder
	limiter     *ratelimiter.Bucket
	clock       clock.Clock
	log         *slog.Logger

	workerID        string
	from            string
	replyTo         string
	templateOptions templates.Options
	emailOptions    validator.EmailOptions
}

// New creates a dispatcher over the queue service. Without a sender it uses
// email.SimulateSender; without a limiter it keeps an in-memory token bucket.
func New(q *queue.Service, cfg Config, opts ...Option) (*Dispatcher, error) {
	if q == nil {
		return nil, ErrQueueNil
	}

	d := &Dispatcher{
		queue:       q,
		sender:      email.NewSimulateSender(),
		renderer:    templates.NewProcessor(),
		attachments: attachment.NewLoader(),
		auditor:     nopAuditor{},
		recorder:    nopRecorder{},
		clock:       clock.New(),
		log:         slog.Default(),
		workerID:    "dispatcher-" + uuid.NewString(),
		from:        cfg.From,
		replyTo:     cfg.ReplyTo,
	}
	d.emailOptions = validator.EmailOptions{
		AllowRoleEmails: true,
		CheckDisposable: cfg.RejectDisposable,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With(logger.Component("dispatcher"))

	if d.limiter == nil {
		policy := queue.DefaultConfig()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithMemoryClock(d.clock))
		bucket, err := ratelimiter.NewBucket(store,
			ratelimiter.PerInterval(policy.RateLimit, policy.RateInterval),
			ratelimiter.WithClock(d.clock))
		if err != nil {
			return nil, err
		}
		d.limiter = bucket
	}
	return d, nil
}

// WorkerID is the claim owner used by direct deliveries.
func (d *Dispatcher) WorkerID() string {
	return d.workerID
}

// DeliverOne claims id and makes one delivery attempt. It does not wait for
// the rate limiter: a spent budget returns *RateLimitError and the claim is dropped.
func (d *Dispatcher) DeliverOne(ctx context.Context, id uuid.UUID) (DeliveryResult, error) {
	cfg, limiter, err := d.cycle(ctx)
	if err != nil {
		return DeliveryResult{EmailID: id}, err
	}

	e, err := d.queue.ClaimByID(ctx, id, d.workerID, cfg.ClaimTTL)
	if err != nil {
		return DeliveryResult{EmailID: id, Err: err}, err
	}

	res := d.attempt(ctx, cfg, e, d.workerID, allowNow(limiter))
	if errors.Is(res.Err, ErrSizeLimitExceeded) {
		d.refuseOversized(ctx, e, d.workerID, res.Err)
	}
	return res, res.Err
}

// DeliverWithRetry delivers id, sleeping on the dispatcher clock between
// attempts until it is sent, fails permanently or runs out of retries.
func (d *Dispatcher) DeliverWithRetry(ctx context.Context, id uuid.UUID, opts RetryOptions) (DeliveryResult, error) {
	if opts.MaxRetries < 0 || opts.InitialDelay < 0 || (opts.BackoffMultiplier != 0 && opts.BackoffMultiplier < 1) {
		return DeliveryResult{EmailID: id}, ErrInvalidRetryOptions
	}

	attempts := 0
	for {
		cfg, limiter, err := d.cycle(ctx)
		if err != nil {
			return DeliveryResult{EmailID: id, Attempts: attempts}, err
		}
		cfg = opts.apply(cfg)

		e, err := d.queue.ClaimByID(ctx, id, d.workerID, cfg.ClaimTTL)
		if err != nil {
			return DeliveryResult{EmailID: id, Attempts: attempts, Err: err}, err
		}
		if opts.MaxRetries > 0 && opts.MaxRetries < e.MaxRetries {
			e.MaxRetries = opts.MaxRetries
		}

		res := d.attempt(ctx, cfg, e, d.workerID, waitFor(limiter))
		attempts += res.Attempts
		res.Attempts = attempts

		if res.RetryAt == nil {
			if errors.Is(res.Err, ErrSizeLimitExceeded) {
				d.refuseOversized(ctx, e, d.workerID, res.Err)
			}
			return res, res.Err
		}
		if err := d.clock.Sleep(ctx, res.RetryAt.Sub(d.clock.Now())); err != nil {
			return res, err
		}
	}
}

// DeliverBatch delivers ids in chunks of BatchSize, fanning each chunk out
// concurrently and pacing chunks so the batch never outruns RateLimit per
// Interval. N ids therefore take at least N/RateLimit intervals.
func (d *Dispatcher) DeliverBatch(ctx context.Context, ids []uuid.UUID, opts BatchOptions) (BatchResult, error) {
	cfg, limiter, err := d.cycle(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	opts = opts.withDefaults(cfg)

	res := BatchResult{Results: make([]DeliveryResult, len(ids))}
	began := d.clock.Now()

	for start := 0; start < len(ids); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return d.abortBatch(res, ids, start, err), err
		}
		end := min(start+opts.BatchSize, len(ids))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				res.Results[i] = d.deliverByID(gctx, cfg, ids[i], limiter)
				return nil
			})
		}
		_ = g.Wait()

		// the first end messages may not finish before end/RateLimit intervals
		due := began.Add(time.Duration(end) * opts.Interval / time.Duration(opts.RateLimit))
		if rest := due.Sub(d.clock.Now()); rest > 0 {
			if err := d.clock.Sleep(ctx, rest); err != nil {
				return d.abortBatch(res, ids, end, err), err
			}
		}
	}

	for _, r := range res.Results {
		if r.Delivered() {
			res.Delivered++
		} else {
			res.Failed++
		}
	}
	d.log.InfoContext(ctx, "batch delivered",
		slog.Int("total", len(ids)),
		slog.Int("delivered", res.Delivered),
		slog.Int("failed", res.Failed))
	return res, nil
}

// ProcessQueue runs one "process now" cycle: it claims eligible emails in
// dispatch order until none remain or the policy's CycleLimit is reached.
func (d *Dispatcher) ProcessQueue(ctx context.Context) (CycleResult, error) {
	cfg, limiter, err := d.cycle(ctx)
	if err != nil {
		return CycleResult{}, err
	}

	var out CycleResult
	for cfg.CycleLimit <= 0 || out.Claimed < cfg.CycleLimit {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		e, err := d.queue.ClaimNext(ctx, d.workerID, cfg.ClaimTTL)
		if errors.Is(err, queue.ErrNoEmailToClaim) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("claim next email: %w", err)
		}
		out.Claimed++
		out.add(d.deliverClaim(ctx, &claimed{email: e, cfg: cfg, limiter: limiter}, d.workerID))
	}

	if out.Claimed > 0 {
		d.log.InfoContext(ctx, "queue processed",
			slog.Int("claimed", out.Claimed),
			slog.Int("sent", out.Sent),
			slog.Int("failed", out.Failed),
			slog.Int("retried", out.Retried),
			slog.Int("parked", out.Parked))
	}
	return out, nil
}

// Cancel cancels a pending email. queue.ErrAlreadyClaimed while a worker holds it.
func (d *Dispatcher) Cancel(ctx context.Context, id uuid.UUID) error {
	_, err := d.queue.Cancel(ctx, id)
	return err
}

// claimed is an email held by a pool worker together with the cycle it was claimed in.
type claimed struct {
	email   *queue.QueuedEmail
	cfg     queue.Config
	limiter *ratelimiter.Bucket
}

// claimNext claims the next eligible email for a pool worker. Nil when none is due.
func (d *Dispatcher) claimNext(ctx context.Context, workerID string) (*claimed, error) {
	cfg, limiter, err := d.cycle(ctx)
	if err != nil {
		return nil, err
	}
	e, err := d.queue.ClaimNext(ctx, workerID, cfg.ClaimTTL)
	if errors.Is(err, queue.ErrNoEmailToClaim) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next email: %w", err)
	}
	return &claimed{email: e, cfg: cfg, limiter: limiter}, nil
}

// deliverClaim makes one attempt on an email claimed from the queue in
// dispatch order. Oversized emails are parked so the next claim moves past them.
func (d *Dispatcher) deliverClaim(ctx context.Context, c *claimed, workerID string) DeliveryResult {
	res := d.attempt(ctx, c.cfg, c.email, workerID, waitFor(c.limiter))
	if errors.Is(res.Err, ErrSizeLimitExceeded) {
		d.parkOversized(ctx, c.cfg, c.email, workerID, res.Err)
	}
	return res
}

func (d *Dispatcher) deliverByID(ctx context.Context, cfg queue.Config, id uuid.UUID, limiter *ratelimiter.Bucket) DeliveryResult {
	e, err := d.queue.ClaimByID(ctx, id, d.workerID, cfg.ClaimTTL)
	if err != nil {
		return DeliveryResult{EmailID: id, Err: err}
	}
	res := d.attempt(ctx, cfg, e, d.workerID, waitFor(limiter))
	if errors.Is(res.Err, ErrSizeLimitExceeded) {
		d.refuseOversized(ctx, e, d.workerID, res.Err)
	}
	return res
}

// cycle reads the policy and sizes the shared limiter for this cycle.
func (d *Dispatcher) cycle(ctx context.Context) (queue.Config, *ratelimiter.Bucket, error) {
	cfg, err := d.queue.Config(ctx)
	if err != nil {
		return queue.Config{}, nil, fmt.Errorf("load queue config: %w", err)
	}
	limiter, err := d.limiter.WithConfig(ratelimiter.PerInterval(cfg.RateLimit, cfg.RateInterval))
	if err != nil {
		return queue.Config{}, nil, err
	}
	return cfg, limiter, nil
}

func (d *Dispatcher) abortBatch(res BatchResult, ids []uuid.UUID, from int, err error) BatchResult {
	for i := from; i < len(ids); i++ {
		res.Results[i] = DeliveryResult{EmailID: ids[i], Err: err}
	}
	for _, r := range res.Results {
		if r.Delivered() {
			res.Delivered++
		} else {
			res.Failed++
		}
	}
	return res
}

func (o RetryOptions) apply(cfg queue.Config) queue.Config {
	if o.InitialDelay > 0 {
		cfg.RetryDelay = o.InitialDelay
	}
	if o.BackoffMultiplier >= 1 {
		cfg.BackoffMultiplier = o.BackoffMultiplier
	}
	return cfg
}

func (o BatchOptions) withDefaults(cfg queue.Config) BatchOptions {
	if o.RateLimit <= 0 {
		o.RateLimit = cfg.RateLimit
	}
	if o.Interval <= 0 {
		o.Interval = cfg.RateInterval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = cfg.BatchSize
	}
	return o
}

func (c *CycleResult) add(r DeliveryResult) {
	switch {
	case r.Delivered():
		c.Sent++
	case r.RetryAt != nil:
		c.Retried++
	case errors.Is(r.Err, ErrSizeLimitExceeded):
		c.Parked++
	case r.Status == queue.StatusFailed:
		c.Failed++
	}
}
