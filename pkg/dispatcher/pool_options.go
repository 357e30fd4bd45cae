package dispatcher

import (
	"log/slog"
	"time"
)

// PoolOption is a functional option for configuring a Pool.
type PoolOption func(*poolOptions)

type poolOptions struct {
	workers      int
	pullInterval time.Duration
	logger       *slog.Logger
}

// WithWorkers sets how many deliveries run concurrently.
func WithWorkers(n int) PoolOption {
	return func(o *poolOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithPullInterval sets how often free slots look for due emails.
func WithPullInterval(d time.Duration) PoolOption {
	return func(o *poolOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(o *poolOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
