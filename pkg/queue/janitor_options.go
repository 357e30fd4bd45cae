package queue

import (
	"log/slog"
	"time"
)

// JanitorOption is a functional option for configuring a janitor
type JanitorOption func(*janitorOptions)

type janitorOptions struct {
	checkInterval time.Duration
	logger        *slog.Logger
	pruner        AuditPruner
	schedules     map[string]Schedule
}

// WithCheckInterval sets how often the janitor checks for due jobs
func WithCheckInterval(d time.Duration) JanitorOption {
	return func(o *janitorOptions) {
		if d > 0 {
			o.checkInterval = d
		}
	}
}

// WithJanitorLogger sets the logger for the janitor
func WithJanitorLogger(logger *slog.Logger) JanitorOption {
	return func(o *janitorOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditPruner enables the audit retention job
func WithAuditPruner(p AuditPruner) JanitorOption {
	return func(o *janitorOptions) {
		o.pruner = p
	}
}

// WithJobSchedule overrides the schedule of a named job
func WithJobSchedule(job string, s Schedule) JanitorOption {
	return func(o *janitorOptions) {
		if s != nil {
			o.schedules[job] = s
		}
	}
}
