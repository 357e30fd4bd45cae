package adminapi

import "time"

// Config configures the admin HTTP adapter.
type Config struct {
	// Token is the bearer token admin routes require. Empty disables the check.
	Token string `env:"ADMIN_API_TOKEN"`

	// WebhookUser and WebhookPassword protect the provider webhook with basic auth
	// as configured in the Postmark webhook settings. Empty user disables the check.
	WebhookUser     string `env:"ADMIN_WEBHOOK_USER"`
	WebhookPassword string `env:"ADMIN_WEBHOOK_PASSWORD"`

	RateLimit    int           `env:"ADMIN_API_RATE_LIMIT" envDefault:"120"`
	RateInterval time.Duration `env:"ADMIN_API_RATE_INTERVAL" envDefault:"1m"`

	// DefaultActor is recorded as approver or retrier when a request names nobody.
	DefaultActor string `env:"ADMIN_API_DEFAULT_ACTOR" envDefault:"admin"`
}
