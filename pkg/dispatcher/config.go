package dispatcher

import "time"

// Config holds the process settings of the dispatcher. Delivery policy
// (retries, rate, size ceiling) comes from queue.Config instead.
type Config struct {
	From    string `env:"DISPATCH_FROM,required"`
	ReplyTo string `env:"DISPATCH_REPLY_TO"`

	// RejectDisposable drops recipients on throwaway domains.
	RejectDisposable bool `env:"DISPATCH_REJECT_DISPOSABLE" envDefault:"false"`

	Workers      int           `env:"DISPATCH_WORKERS" envDefault:"4"`
	PullInterval time.Duration `env:"DISPATCH_PULL_INTERVAL" envDefault:"5s"`
}
