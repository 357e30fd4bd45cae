package queue

import (
	"log/slog"

	"github.com/dmitrymomot/mailqueue/pkg/clock"
)

// ServiceOption is a functional option for configuring a Service
type ServiceOption func(*Service)

// WithClock sets the time source for timestamps, schedules and claims
func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock.OrDefault(c)
	}
}

// WithLogger sets the logger for the service
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithNotifier sets the admin alert notifier
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithAuditor sets the audit log receiving approval and retry entries
func WithAuditor(a Auditor) ServiceOption {
	return func(s *Service) {
		if a != nil {
			s.auditor = a
		}
	}
}
