package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// Pool runs a fixed number of concurrent deliveries. On every tick a free
// slot claims the next eligible email; busy slots skip the tick.
type Pool struct {
	dispatcher *Dispatcher
	workerID   string
	sem        chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	stopMu     sync.Mutex // guards stopping and wg.Add against Stop

	pullInterval time.Duration
	logger       *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	stopping  atomic.Bool
	processed atomic.Int64
}

// NewPool creates a pool over d. It does not start until Start or Run.
func NewPool(d *Dispatcher, opts ...PoolOption) (*Pool, error) {
	if d == nil {
		return nil, ErrDispatcherNil
	}

	options := &poolOptions{
		workers:      1,
		pullInterval: 5 * time.Second,
		logger:       d.log,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Pool{
		dispatcher:   d,
		workerID:     "pool-" + uuid.NewString(),
		sem:          make(chan struct{}, options.workers),
		pullInterval: options.pullInterval,
		logger:       options.logger,
	}, nil
}

// Start begins processing in the background.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return ErrPoolAlreadyStarted
	}
	p.ctx, p.cancel = context.WithCancel(logger.WithWorkerID(ctx, p.workerID))
	p.mu.Unlock()

	p.stopping.Store(false)
	go p.run()

	p.logger.Info("delivery pool started",
		logger.WorkerID(p.workerID),
		slog.Int("workers", cap(p.sem)),
		slog.Duration("pull_interval", p.pullInterval))
	return nil
}

// Stop cancels claiming and waits for in-flight deliveries to finish.
// In-flight deliveries are not cancelled.
func (p *Pool) Stop() error {
	p.mu.Lock()
	if p.cancel == nil {
		p.mu.Unlock()
		return ErrPoolNotStarted
	}

	p.stopMu.Lock()
	p.stopping.Store(true)
	p.stopMu.Unlock()

	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	cancel()

	p.logger.Info("delivery pool stopping, waiting for in-flight deliveries",
		logger.WorkerID(p.workerID))
	p.wg.Wait()
	p.logger.Info("delivery pool stopped",
		logger.WorkerID(p.workerID),
		slog.Int64("processed", p.processed.Load()))
	return nil
}

// Run returns a function suitable for errgroup: it starts the pool and
// stops it when ctx is done.
func (p *Pool) Run(ctx context.Context) func() error {
	return func() error {
		if err := p.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return p.Stop()
	}
}

// Processed returns how many emails the pool has claimed and attempted.
func (p *Pool) Processed() int64 {
	return p.processed.Load()
}

// WorkerInfo identifies the pool in logs and claim markers.
func (p *Pool) WorkerInfo() (id string, hostname string, pid int) {
	hostname, _ = os.Hostname()
	return p.workerID, hostname, os.Getpid()
}

func (p *Pool) run() {
	ticker := time.NewTicker(p.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.fill()
		}
	}
}

// fill claims one email per free slot and delivers each in its own goroutine.
func (p *Pool) fill() {
	for {
		select {
		case p.sem <- struct{}{}:
		default:
			p.logger.Debug("all delivery slots busy", logger.WorkerID(p.workerID))
			return
		}

		p.stopMu.Lock()
		if p.stopping.Load() {
			p.stopMu.Unlock()
			<-p.sem
			return
		}
		p.wg.Add(1)
		p.stopMu.Unlock()

		c, err := p.dispatcher.claimNext(p.ctx, p.workerID)
		if err != nil || c == nil {
			if err != nil {
				p.logger.Error("failed to claim email", logger.WorkerID(p.workerID), logger.Error(err))
			}
			p.wg.Done()
			<-p.sem
			return
		}

		go func() {
			defer p.wg.Done()
			defer func() { <-p.sem }()
			p.deliver(c)
		}()
	}
}

func (p *Pool) deliver(c *claimed) {
	defer func() {
		if r := recover(); r != nil {
			// the claim lapses after ClaimTTL and the email is picked up again
			p.logger.Error("delivery panicked",
				logger.WorkerID(p.workerID),
				logger.EmailID(c.email.ID),
				logger.Error(fmt.Errorf("%w: %v", ErrHandlerPanicked, r)))
		}
	}()

	p.dispatcher.deliverClaim(context.WithoutCancel(p.ctx), c, p.workerID)
	p.processed.Add(1)
}
