package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/clock"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// AuditPruner drops audit entries older than a retention age.
type AuditPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Janitor job names.
const (
	JobReleaseClaims = "release_claims"
	JobArchive       = "archive"
	JobPruneAudit    = "prune_audit"
)

// Janitor runs periodic maintenance: releasing lapsed claims, archiving old
// sent, failed and cancelled records, and pruning the audit log.
type Janitor struct {
	svc    *Service
	pruner AuditPruner
	clock  clock.Clock
	log    *slog.Logger

	mu       sync.Mutex
	jobs     map[string]*janitorJob
	interval time.Duration
}

type janitorJob struct {
	name     string
	schedule Schedule
	run      func(ctx context.Context) (int, error)
	nextRun  time.Time
}

// NewJanitor creates a janitor with the default schedules: claims every
// minute, archive hourly, audit pruning daily at 03:00.
func NewJanitor(svc *Service, opts ...JanitorOption) (*Janitor, error) {
	if svc == nil {
		return nil, errors.New("queue: janitor needs a service")
	}

	options := &janitorOptions{
		checkInterval: 30 * time.Second,
		logger:        slog.Default(),
		schedules: map[string]Schedule{
			JobReleaseClaims: EveryMinute(),
			JobArchive:       Hourly(),
			JobPruneAudit:    DailyAt(3, 0),
		},
	}
	for _, opt := range opts {
		opt(options)
	}

	j := &Janitor{
		svc:      svc,
		pruner:   options.pruner,
		clock:    svc.clock,
		log:      options.logger.With(logger.Component("janitor")),
		jobs:     make(map[string]*janitorJob),
		interval: options.checkInterval,
	}

	j.jobs[JobReleaseClaims] = &janitorJob{name: JobReleaseClaims, schedule: options.schedules[JobReleaseClaims], run: j.releaseClaims}
	j.jobs[JobArchive] = &janitorJob{name: JobArchive, schedule: options.schedules[JobArchive], run: j.archive}
	if j.pruner != nil {
		j.jobs[JobPruneAudit] = &janitorJob{name: JobPruneAudit, schedule: options.schedules[JobPruneAudit], run: j.pruneAudit}
	}
	return j, nil
}

// Start checks for due jobs every check interval until ctx is done.
// Every job runs once immediately.
func (j *Janitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunDue(ctx)
	for {
		select {
		case <-ctx.Done():
			j.log.Info("janitor shutting down")
			return nil
		case <-ticker.C:
			j.RunDue(ctx)
		}
	}
}

// Run returns a function suitable for errgroup
func (j *Janitor) Run(ctx context.Context) func() error {
	return func() error {
		return j.Start(ctx)
	}
}

// RunDue runs every job whose next run time has passed and returns the
// number of records each affected.
func (j *Janitor) RunDue(ctx context.Context) map[string]int {
	now := j.clock.Now()

	j.mu.Lock()
	var due []*janitorJob
	for _, job := range j.jobs {
		if job.nextRun.IsZero() || !job.nextRun.After(now) {
			job.nextRun = job.schedule.Next(now)
			due = append(due, job)
		}
	}
	j.mu.Unlock()

	report := make(map[string]int, len(due))
	for _, job := range due {
		n, err := job.run(ctx)
		if err != nil {
			j.log.ErrorContext(ctx, "janitor job failed",
				slog.String("job", job.name),
				logger.Error(err))
			continue
		}
		report[job.name] = n
		if n > 0 {
			j.log.InfoContext(ctx, "janitor job completed",
				slog.String("job", job.name),
				slog.Int("affected", n))
		}
	}
	return report
}

// RunAll runs every job now regardless of schedule.
func (j *Janitor) RunAll(ctx context.Context) (map[string]int, error) {
	j.mu.Lock()
	jobs := make([]*janitorJob, 0, len(j.jobs))
	for _, job := range j.jobs {
		jobs = append(jobs, job)
	}
	j.mu.Unlock()

	report := make(map[string]int, len(jobs))
	var errs []error
	for _, job := range jobs {
		n, err := job.run(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.name, err))
			continue
		}
		report[job.name] = n
	}
	return report, errors.Join(errs...)
}

func (j *Janitor) releaseClaims(ctx context.Context) (int, error) {
	return j.svc.ReleaseExpired(ctx)
}

func (j *Janitor) archive(ctx context.Context) (int, error) {
	cfg, err := j.svc.Config(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, rule := range []struct {
		status Status
		age    time.Duration
	}{
		{StatusSent, cfg.ArchiveSentAfter},
		{StatusFailed, cfg.ArchiveFailedAfter},
		{StatusCancelled, cfg.ArchiveCancelledAfter},
	} {
		if rule.age <= 0 {
			continue
		}
		n, err := j.svc.DeleteOlderThan(ctx, rule.status, rule.age)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (j *Janitor) pruneAudit(ctx context.Context) (int, error) {
	cfg, err := j.svc.Config(ctx)
	if err != nil {
		return 0, err
	}
	if cfg.AuditRetention <= 0 {
		return 0, nil
	}
	n, err := j.pruner.Prune(ctx, cfg.AuditRetention)
	return int(n), err
}
