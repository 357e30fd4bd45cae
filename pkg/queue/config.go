package queue

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Config is the delivery policy. It is versioned and read fresh at the start
// of every dispatch cycle through a ConfigSource, so edits apply to the next cycle.
type Config struct {
	Version int64 `json:"version" yaml:"version"`

	MaxRetries        int           `json:"max_retries" yaml:"max_retries" env:"QUEUE_MAX_RETRIES" envDefault:"3"`
	RetryDelay        time.Duration `json:"retry_delay" yaml:"retry_delay" env:"QUEUE_RETRY_DELAY" envDefault:"1m"`
	BackoffMultiplier float64       `json:"backoff_multiplier" yaml:"backoff_multiplier" env:"QUEUE_BACKOFF_MULTIPLIER" envDefault:"2"`
	MaxBackoff        time.Duration `json:"max_backoff" yaml:"max_backoff" env:"QUEUE_MAX_BACKOFF" envDefault:"1h"`
	MaxQueueSize      int           `json:"max_queue_size" yaml:"max_queue_size" env:"QUEUE_MAX_SIZE" envDefault:"10000"`

	RequireApproval        map[MessageType]bool `json:"require_approval" yaml:"require_approval" env:"QUEUE_REQUIRE_APPROVAL"`
	DefaultRequireApproval bool                 `json:"default_require_approval" yaml:"default_require_approval" env:"QUEUE_DEFAULT_REQUIRE_APPROVAL" envDefault:"false"`
	AutoSendDelay          time.Duration        `json:"auto_send_delay" yaml:"auto_send_delay" env:"QUEUE_AUTO_SEND_DELAY" envDefault:"0s"`

	LargeQueueThreshold    int      `json:"large_queue_threshold" yaml:"large_queue_threshold" env:"QUEUE_LARGE_THRESHOLD" envDefault:"1000"`
	FailureNotifyThreshold int      `json:"failure_notify_threshold" yaml:"failure_notify_threshold" env:"QUEUE_FAILURE_NOTIFY_THRESHOLD" envDefault:"10"`
	AdminEmails            []string `json:"admin_emails" yaml:"admin_emails" env:"QUEUE_ADMIN_EMAILS"`

	ArchiveSentAfter      time.Duration `json:"archive_sent_after" yaml:"archive_sent_after" env:"QUEUE_ARCHIVE_SENT_AFTER" envDefault:"720h"`
	ArchiveFailedAfter    time.Duration `json:"archive_failed_after" yaml:"archive_failed_after" env:"QUEUE_ARCHIVE_FAILED_AFTER" envDefault:"2160h"`
	ArchiveCancelledAfter time.Duration `json:"archive_cancelled_after" yaml:"archive_cancelled_after" env:"QUEUE_ARCHIVE_CANCELLED_AFTER" envDefault:"720h"`
	AuditRetention        time.Duration `json:"audit_retention" yaml:"audit_retention" env:"QUEUE_AUDIT_RETENTION" envDefault:"8760h"`

	MaxMessageSize  int64         `json:"max_message_size" yaml:"max_message_size" env:"QUEUE_MAX_MESSAGE_SIZE" envDefault:"10485760"`
	ProviderTimeout time.Duration `json:"provider_timeout" yaml:"provider_timeout" env:"QUEUE_PROVIDER_TIMEOUT" envDefault:"30s"`
	RateLimit       int           `json:"rate_limit" yaml:"rate_limit" env:"QUEUE_RATE_LIMIT" envDefault:"10"`
	RateInterval    time.Duration `json:"rate_interval" yaml:"rate_interval" env:"QUEUE_RATE_INTERVAL" envDefault:"1s"`
	BatchSize       int           `json:"batch_size" yaml:"batch_size" env:"QUEUE_BATCH_SIZE" envDefault:"50"`
	ClaimTTL        time.Duration `json:"claim_ttl" yaml:"claim_ttl" env:"QUEUE_CLAIM_TTL" envDefault:"5m"`
	CycleLimit      int           `json:"cycle_limit" yaml:"cycle_limit" env:"QUEUE_CYCLE_LIMIT" envDefault:"500"`

	// OversizedRecheck is how long an email over MaxMessageSize stays out of
	// the claim path before workers look at it again.
	OversizedRecheck time.Duration `json:"oversized_recheck" yaml:"oversized_recheck" env:"QUEUE_OVERSIZED_RECHECK" envDefault:"24h"`
}

// DefaultConfig returns the policy used when nothing else is configured.
// Values match the envDefault tags.
func DefaultConfig() Config {
	return Config{
		Version:                1,
		MaxRetries:             3,
		RetryDelay:             time.Minute,
		BackoffMultiplier:      2,
		MaxBackoff:             time.Hour,
		MaxQueueSize:           10000,
		LargeQueueThreshold:    1000,
		FailureNotifyThreshold: 10,
		ArchiveSentAfter:       30 * 24 * time.Hour,
		ArchiveFailedAfter:     90 * 24 * time.Hour,
		ArchiveCancelledAfter:  30 * 24 * time.Hour,
		AuditRetention:         365 * 24 * time.Hour,
		MaxMessageSize:         10 << 20,
		ProviderTimeout:        30 * time.Second,
		RateLimit:              10,
		RateInterval:           time.Second,
		BatchSize:              50,
		ClaimTTL:               5 * time.Minute,
		CycleLimit:             500,
		OversizedRecheck:       24 * time.Hour,
	}
}

// RequiresApproval reports whether new emails of type t start as drafts.
func (c Config) RequiresApproval(t MessageType) bool {
	if v, ok := c.RequireApproval[t]; ok {
		return v
	}
	return c.DefaultRequireApproval
}

// Backoff returns the delay before retry number retryCount:
// RetryDelay * BackoffMultiplier^retryCount, capped at MaxBackoff when set.
func (c Config) Backoff(retryCount int) time.Duration {
	mult := c.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(c.RetryDelay) * math.Pow(mult, float64(retryCount))
	if c.MaxBackoff > 0 && d > float64(c.MaxBackoff) {
		return c.MaxBackoff
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Validate checks the policy for values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max_retries must not be negative"))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, errors.New("retry_delay must not be negative"))
	}
	if c.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("backoff_multiplier must be at least 1"))
	}
	if c.MaxQueueSize <= 0 {
		errs = append(errs, errors.New("max_queue_size must be positive"))
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("max_message_size must be positive"))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("provider_timeout must be positive"))
	}
	if c.RateLimit <= 0 || c.RateInterval <= 0 {
		errs = append(errs, errors.New("rate_limit and rate_interval must be positive"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, errors.New("batch_size must be positive"))
	}
	if c.ClaimTTL <= 0 {
		errs = append(errs, errors.New("claim_ttl must be positive"))
	}
	if c.ClaimTTL > 0 && c.ClaimTTL <= c.ProviderTimeout {
		errs = append(errs, errors.New("claim_ttl must be longer than provider_timeout"))
	}
	if c.OversizedRecheck < 0 {
		errs = append(errs, errors.New("oversized_recheck must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
