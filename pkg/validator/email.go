package validator

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/dmitrymomot/mailqueue/pkg/sanitizer"
)

const (
	maxEmailLength = 254
	maxLocalLength = 64
)

// roleLocalParts are shared mailboxes rejected unless AllowRoleEmails is set.
var roleLocalParts = map[string]struct{}{
	"admin":   {},
	"support": {},
	"noreply": {},
	"info":    {},
}

// EmailOptions tunes ValidateEmail.
type EmailOptions struct {
	CheckDisposable bool
	AllowRoleEmails bool
}

// EmailResult is the outcome of an address check.
// Normalized is set only when Valid is true.
type EmailResult struct {
	Valid      bool
	Normalized string
	MXExists   bool
	Err        error
}

// ListResult splits a list into valid (normalized) and invalid (as given) addresses.
// Input order is preserved in both slices.
type ListResult struct {
	Valid   []string
	Invalid []string
}

// ValidateEmail checks the syntax of addr and returns its normalized form
// (trimmed, lowercased). Role and disposable checks run according to opts.
func ValidateEmail(addr string, opts EmailOptions) EmailResult {
	normalized := sanitizer.NormalizeEmail(addr)
	if err := checkSyntax(normalized); err != nil {
		return EmailResult{Err: err}
	}

	local := sanitizer.ExtractEmailLocal(normalized)
	domain := sanitizer.ExtractEmailDomain(normalized)

	if !opts.AllowRoleEmails {
		if _, ok := roleLocalParts[local]; ok {
			return EmailResult{Err: fmt.Errorf("%w: %s", ErrRoleEmail, local)}
		}
	}
	if opts.CheckDisposable && IsDisposableDomain(domain) {
		return EmailResult{Err: fmt.Errorf("%w: %s", ErrDisposableEmail, domain)}
	}

	return EmailResult{Valid: true, Normalized: normalized}
}

// ValidateEmailList validates every address with role addresses allowed.
// Every input lands in exactly one of the result slices.
func ValidateEmailList(list []string) ListResult {
	return ValidateEmailListWith(list, EmailOptions{AllowRoleEmails: true})
}

// ValidateEmailListWith is ValidateEmailList with explicit options.
func ValidateEmailListWith(list []string, opts EmailOptions) ListResult {
	res := ListResult{
		Valid:   make([]string, 0, len(list)),
		Invalid: make([]string, 0),
	}
	for _, addr := range list {
		if r := ValidateEmail(addr, opts); r.Valid {
			res.Valid = append(res.Valid, r.Normalized)
		} else {
			res.Invalid = append(res.Invalid, addr)
		}
	}
	return res
}

func checkSyntax(addr string) error {
	switch {
	case addr == "":
		return fmt.Errorf("%w: empty", ErrInvalidEmail)
	case len(addr) > maxEmailLength:
		return fmt.Errorf("%w: too long", ErrInvalidEmail)
	case strings.Count(addr, "@") != 1:
		return fmt.Errorf("%w: must contain exactly one @", ErrInvalidEmail)
	case strings.Contains(addr, ".."):
		return fmt.Errorf("%w: consecutive dots", ErrInvalidEmail)
	}

	at := strings.IndexByte(addr, '@')
	local, domain := addr[:at], addr[at+1:]

	if local == "" || len(local) > maxLocalLength {
		return fmt.Errorf("%w: invalid local part", ErrInvalidEmail)
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return fmt.Errorf("%w: local part starts or ends with a dot", ErrInvalidEmail)
	}
	if !strings.Contains(domain, ".") {
		return fmt.Errorf("%w: domain must contain a dot", ErrInvalidEmail)
	}
	for label := range strings.SplitSeq(domain, ".") {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return fmt.Errorf("%w: invalid domain", ErrInvalidEmail)
		}
	}

	// RFC 5322 grammar; display names and comments are not accepted here
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Name != "" || parsed.Address != addr {
		return fmt.Errorf("%w: malformed address", ErrInvalidEmail)
	}
	return nil
}
