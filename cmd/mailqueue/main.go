// Command mailqueue runs the email queue: the dispatcher worker pool, the
// maintenance janitor and the admin HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/mailqueue/pkg/adminapi"
	"github.com/dmitrymomot/mailqueue/pkg/attachment"
	"github.com/dmitrymomot/mailqueue/pkg/audit"
	"github.com/dmitrymomot/mailqueue/pkg/config"
	"github.com/dmitrymomot/mailqueue/pkg/dispatcher"
	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/email/templates"
	"github.com/dmitrymomot/mailqueue/pkg/httpserver"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/mongo"
	"github.com/dmitrymomot/mailqueue/pkg/opensearch"
	"github.com/dmitrymomot/mailqueue/pkg/pg"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/queue/migrations"
	"github.com/dmitrymomot/mailqueue/pkg/ratelimiter"
	"github.com/dmitrymomot/mailqueue/pkg/redis"
	"github.com/dmitrymomot/mailqueue/pkg/tracking"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("mailqueue stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}
	if err := cfg.Queue.Validate(); err != nil {
		return fmt.Errorf("queue policy from env: %w", err)
	}

	log := logger.NewFromConfig(cfg.Log)
	logger.SetAsDefault(log)

	// postgres: queue records
	db, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := pg.MigrateFS(ctx, db, migrations.FS, cfg.Postgres, log); err != nil {
		return err
	}
	store, err := queue.NewPostgresStorage(db)
	if err != nil {
		return err
	}

	// redis: tracking and the shared rate limit
	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// mongo (+ optional opensearch mirror): audit trail
	mongoClient, err := mongo.New(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoClient.Disconnect(context.WithoutCancel(ctx)); err != nil {
			log.Error("failed to disconnect mongo", logger.Error(err))
		}
	}()

	mongoStore, err := audit.NewMongoStorage(mongoClient.Database(cfg.Mongo.Database).Collection(cfg.Mongo.AuditCollection))
	if err != nil {
		return err
	}
	auditStore, err := newAuditStorage(ctx, cfg, mongoStore, log)
	if err != nil {
		return err
	}
	auditWriter, flushAudit := audit.NewAsyncWriter(auditStore, audit.AsyncOptions{
		BufferSize:     cfg.Audit.BufferSize,
		BatchSize:      cfg.Audit.BatchSize,
		BatchTimeout:   cfg.Audit.BatchTimeout,
		StorageTimeout: cfg.Audit.StorageTimeout,
	})
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := flushAudit(flushCtx); err != nil {
			log.Error("failed to flush audit trail", logger.Error(err))
		}
	}()
	auditLog, err := audit.NewLog(auditWriter, audit.WithLogger(log))
	if err != nil {
		return err
	}

	policy := queue.NewFileConfigSource(cfg.PolicyFile, cfg.Queue)
	svc, err := queue.NewService(store, policy,
		queue.WithLogger(log),
		queue.WithAuditor(auditLog),
	)
	if err != nil {
		return err
	}
	svc.SetNotifier(queue.MultiNotifier{
		queue.NewLogNotifier(log),
		queue.NewEmailNotifier(svc, policy),
	})

	tracker, err := tracking.NewTracker(
		tracking.NewRedisStore(rdb, tracking.WithKeyPrefix(cfg.Redis.KeyPrefix+":tracking")),
		svc,
		tracking.WithLogger(log),
	)
	if err != nil {
		return err
	}

	d, err := newDispatcher(ctx, cfg, svc, policy, rdb, auditLog, tracker, log)
	if err != nil {
		return err
	}
	workers, err := dispatcher.NewPool(d,
		dispatcher.WithWorkers(cfg.Dispatch.Workers),
		dispatcher.WithPullInterval(cfg.Dispatch.PullInterval),
		dispatcher.WithPoolLogger(log),
	)
	if err != nil {
		return err
	}

	janitor, err := queue.NewJanitor(svc,
		queue.WithCheckInterval(cfg.JanitorInterval),
		queue.WithJanitorLogger(log),
		queue.WithAuditPruner(auditLog),
	)
	if err != nil {
		return err
	}

	adminLimiter, err := ratelimiter.NewBucket(
		ratelimiter.NewRedisStore(rdb, ratelimiter.WithKeyPrefix(cfg.Redis.KeyPrefix+":admin")),
		ratelimiter.PerInterval(cfg.Admin.RateLimit, cfg.Admin.RateInterval),
	)
	if err != nil {
		return err
	}
	api, err := adminapi.New(svc, d, cfg.Admin,
		adminapi.WithAudit(auditLog),
		adminapi.WithTracker(tracker),
		adminapi.WithRateLimiter(adminLimiter),
		adminapi.WithReadinessCheck(pg.Healthcheck(db)),
		adminapi.WithReadinessCheck(redis.Healthcheck(rdb)),
		adminapi.WithReadinessCheck(mongo.Healthcheck(mongoClient)),
		adminapi.WithLogger(log),
	)
	if err != nil {
		return err
	}
	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	log.InfoContext(ctx, "mailqueue started",
		slog.Int("workers", cfg.Dispatch.Workers),
		slog.String("policy_file", cfg.PolicyFile),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(workers.Run(ctx))
	g.Go(janitor.Run(ctx))
	g.Go(func() error {
		return srv.Run(ctx, api.Router())
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newAuditStorage keeps the trail in MongoDB and mirrors it to OpenSearch
// when a cluster is configured.
func newAuditStorage(ctx context.Context, cfg appConfig, ms *audit.MongoStorage, log *slog.Logger) (audit.Storage, error) {
	if err := ms.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	if !cfg.OpenSearch.Enabled() {
		return ms, nil
	}

	client, err := opensearch.New(ctx, cfg.OpenSearch)
	if err != nil {
		return nil, err
	}
	return audit.NewMirroredStorage(ms, audit.NewSearchIndexer(client, cfg.OpenSearch.AuditIndex), log), nil
}

func newDispatcher(
	ctx context.Context,
	cfg appConfig,
	svc *queue.Service,
	policy queue.ConfigSource,
	rdb *goredis.Client,
	auditLog *audit.Log,
	tracker *tracking.Tracker,
	log *slog.Logger,
) (*dispatcher.Dispatcher, error) {
	sender, err := email.NewSender(cfg.Email, log)
	if err != nil {
		return nil, err
	}

	loader := attachment.NewLoader()
	if cfg.Attachment.LocalDir != "" {
		local, err := attachment.NewLocalResolver(cfg.Attachment.LocalDir, cfg.Attachment.MaxSize)
		if err != nil {
			return nil, err
		}
		loader.Handle("file", local)
	}
	if cfg.Attachment.S3.Region != "" {
		s3, err := attachment.NewS3Resolver(ctx, cfg.Attachment.S3, attachment.WithMaxSize(cfg.Attachment.MaxSize))
		if err != nil {
			return nil, err
		}
		loader.Handle("s3", s3)
	}

	current, err := policy.Current(ctx)
	if err != nil {
		return nil, err
	}
	limiter, err := ratelimiter.NewBucket(
		ratelimiter.NewRedisStore(rdb, ratelimiter.WithKeyPrefix(cfg.Redis.KeyPrefix+":delivery")),
		ratelimiter.PerInterval(current.RateLimit, current.RateInterval),
	)
	if err != nil {
		return nil, err
	}

	return dispatcher.New(svc, cfg.Dispatch,
		dispatcher.WithSender(sender),
		dispatcher.WithRenderer(templates.NewProcessor()),
		dispatcher.WithTemplateOptions(cfg.branding()),
		dispatcher.WithAttachments(loader),
		dispatcher.WithAuditor(auditLog),
		dispatcher.WithRecorder(tracker),
		dispatcher.WithLimiter(limiter),
		dispatcher.WithLogger(log),
	)
}
