package opensearch

// Config is the OpenSearch cluster mirroring the audit trail for free-text
// search. No addresses disables the mirror.
type Config struct {
	Addresses    []string `env:"OPENSEARCH_ADDRESSES" envSeparator:","`
	Username     string   `env:"OPENSEARCH_USERNAME"`
	Password     string   `env:"OPENSEARCH_PASSWORD"`
	AuditIndex   string   `env:"OPENSEARCH_AUDIT_INDEX" envDefault:"email-audit"`
	MaxRetries   int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	DisableRetry bool     `env:"OPENSEARCH_DISABLE_RETRY" envDefault:"false"`
}

// Enabled reports whether a cluster is configured.
func (c Config) Enabled() bool {
	return len(c.Addresses) > 0
}
