package audit

import (
	"context"
	"sync"
	"time"
)

// AsyncOptions configures the batching and buffering behavior.
type AsyncOptions struct {
	BufferSize     int           // Max writes queued before falling back to sync writes
	BatchSize      int           // Target entries per batch
	BatchTimeout   time.Duration // Max time a partial batch waits
	StorageTimeout time.Duration // Per-batch storage timeout
}

// AsyncWriter batches Store calls in front of a slow Storage. Store still
// waits for its batch to be written, so callers see storage errors.
// Reads pass straight through and may not see entries still buffered.
type AsyncWriter struct {
	Storage

	writes  chan asyncWrite
	done    chan struct{}
	wg      sync.WaitGroup
	options AsyncOptions

	mu     sync.RWMutex
	closed bool
}

type asyncWrite struct {
	entries []Entry
	result  chan error
}

// NewAsyncWriter starts the background batcher. The returned function
// flushes buffered entries and stops it.
func NewAsyncWriter(s Storage, opts AsyncOptions) (*AsyncWriter, func(context.Context) error) {
	if s == nil {
		panic("audit: storage cannot be nil")
	}

	if opts.BufferSize == 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout == 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout == 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	aw := &AsyncWriter{
		Storage: s,
		writes:  make(chan asyncWrite, opts.BufferSize),
		done:    make(chan struct{}),
		options: opts,
	}

	aw.wg.Add(1)
	go aw.worker()

	return aw, aw.Close
}

// Store queues entries for the next batch and waits for the result.
func (aw *AsyncWriter) Store(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	aw.mu.RLock()
	if aw.closed {
		aw.mu.RUnlock()
		return ErrStorageNotAvailable
	}

	result := make(chan error, 1)
	select {
	case aw.writes <- asyncWrite{entries: entries, result: result}:
		aw.mu.RUnlock()
	default:
		aw.mu.RUnlock()
		// buffer full: write synchronously rather than drop entries
		return aw.Storage.Store(ctx, entries...)
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (aw *AsyncWriter) worker() {
	defer aw.wg.Done()

	batch := make([]Entry, 0, aw.options.BatchSize)
	results := make([]chan error, 0, aw.options.BatchSize)
	ticker := time.NewTicker(aw.options.BatchTimeout)
	defer ticker.Stop()

	// storage runs on its own context so a caller timeout does not fail the whole batch
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), aw.options.StorageTimeout)
		err := aw.Storage.Store(ctx, batch...)
		cancel()

		for _, r := range results {
			r <- err
		}
		clear(batch)
		clear(results)
		batch = batch[:0]
		results = results[:0]
	}

	add := func(w asyncWrite) {
		batch = append(batch, w.entries...)
		results = append(results, w.result)
		if len(batch) >= aw.options.BatchSize {
			flush()
		}
	}

	for {
		select {
		case w := <-aw.writes:
			add(w)
		case <-ticker.C:
			flush()
		case <-aw.done:
			for {
				select {
				case w := <-aw.writes:
					add(w)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting writes and flushes what is buffered. ctx bounds the wait.
func (aw *AsyncWriter) Close(ctx context.Context) error {
	aw.mu.Lock()
	if aw.closed {
		aw.mu.Unlock()
		return nil
	}
	aw.closed = true
	close(aw.done)
	aw.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		aw.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
