package validator

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/sanitizer"
)

// Resolver looks up MX records. *net.Resolver satisfies it.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// MXValidator combines syntax validation with a DNS check for a mail-capable host.
type MXValidator struct {
	resolver Resolver
	timeout  time.Duration
	opts     EmailOptions
}

// MXOption configures an MXValidator.
type MXOption func(*MXValidator)

// WithResolver replaces the DNS resolver.
func WithResolver(r Resolver) MXOption {
	return func(v *MXValidator) {
		if r != nil {
			v.resolver = r
		}
	}
}

// WithLookupTimeout bounds each DNS lookup.
func WithLookupTimeout(d time.Duration) MXOption {
	return func(v *MXValidator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithEmailOptions sets the syntax options applied before the lookup.
func WithEmailOptions(opts EmailOptions) MXOption {
	return func(v *MXValidator) {
		v.opts = opts
	}
}

// NewMXValidator creates an MXValidator using net.DefaultResolver unless overridden.
func NewMXValidator(opts ...MXOption) *MXValidator {
	v := &MXValidator{
		resolver: net.DefaultResolver,
		timeout:  5 * time.Second,
		opts:     EmailOptions{AllowRoleEmails: true},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks syntax first, then requires at least one usable MX host.
// A well-formed address on a domain without mail hosts yields ErrLookup.
func (v *MXValidator) Validate(ctx context.Context, addr string) EmailResult {
	res := ValidateEmail(addr, v.opts)
	if !res.Valid {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	domain := sanitizer.ExtractEmailDomain(res.Normalized)
	records, err := v.resolver.LookupMX(ctx, domain)
	if err != nil {
		return EmailResult{Normalized: res.Normalized, Err: fmt.Errorf("%w: %s: %v", ErrLookup, domain, err)}
	}
	if !hasMailHost(records) {
		return EmailResult{Normalized: res.Normalized, Err: fmt.Errorf("%w: %s has no mail host", ErrLookup, domain)}
	}

	res.MXExists = true
	return res
}

var defaultMXValidator = NewMXValidator()

// ValidateEmailWithMX validates addr and checks its domain for MX records
// using the system resolver.
func ValidateEmailWithMX(ctx context.Context, addr string) EmailResult {
	return defaultMXValidator.Validate(ctx, addr)
}

// hasMailHost ignores null MX records (RFC 7505), which declare that a domain accepts no mail.
func hasMailHost(records []*net.MX) bool {
	for _, mx := range records {
		if mx == nil {
			continue
		}
		if host := strings.TrimSuffix(mx.Host, "."); host != "" {
			return true
		}
	}
	return false
}
