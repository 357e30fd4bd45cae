package dispatcher

import (
	"log/slog"

	"github.com/dmitrymomot/mailqueue/pkg/clock"
	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/email/templates"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/ratelimiter"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSender sets the transport. A nil sender keeps the simulate sender.
func WithSender(s email.Sender) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.sender = s
		}
	}
}

func WithRenderer(r Renderer) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.renderer = r
		}
	}
}

// WithTemplateOptions sets the layout, branding and locale used for templated emails.
func WithTemplateOptions(opts templates.Options) Option {
	return func(d *Dispatcher) {
		d.templateOptions = opts
	}
}

func WithAttachments(l AttachmentLoader) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.attachments = l
		}
	}
}

// WithAuditor sets the audit log that receives one entry per attempt.
func WithAuditor(a queue.Auditor) Option {
	return func(d *Dispatcher) {
		if a != nil {
			d.auditor = a
		}
	}
}

// WithRecorder sets the delivery tracker.
func WithRecorder(r AttemptRecorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithLimiter sets the process-wide provider limiter. Its capacity is
// resized from the policy at every cycle; only the store and clock are kept.
func WithLimiter(b *ratelimiter.Bucket) Option {
	return func(d *Dispatcher) {
		if b != nil {
			d.limiter = b
		}
	}
}

// WithClock sets the clock used for timestamps, retry sleeps and batch pacing.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = clock.OrDefault(c)
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithWorkerID names the claim owner for direct deliveries.
func WithWorkerID(id string) Option {
	return func(d *Dispatcher) {
		if id != "" {
			d.workerID = id
		}
	}
}
