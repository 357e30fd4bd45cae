package validator

import "strings"

var disposableDomains = map[string]struct{}{
	"10minutemail.com":  {},
	"dispostable.com":   {},
	"getnada.com":       {},
	"guerrillamail.com": {},
	"mailinator.com":    {},
	"maildrop.cc":       {},
	"sharklasers.com":   {},
	"temp-mail.org":     {},
	"tempmail.com":      {},
	"throwawaymail.com": {},
	"trashmail.com":     {},
	"yopmail.com":       {},
}

// IsDisposableDomain reports whether domain, or any parent of it, is a known throwaway provider.
func IsDisposableDomain(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	for domain != "" {
		if _, ok := disposableDomains[domain]; ok {
			return true
		}
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			return false
		}
		domain = domain[i+1:]
	}
	return false
}
