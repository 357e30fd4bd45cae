package validator

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/dmitrymomot/mailqueue/pkg/sanitizer"
)

// RegionE164 is the default region: international numbers with optional leading "+".
const RegionE164 = "E164"

var (
	regionMu       sync.RWMutex
	regionPatterns = map[string]*regexp.Regexp{
		RegionE164: regexp.MustCompile(`^\+?[1-9]\d{6,14}$`),
		"US":       regexp.MustCompile(`^(?:\+?1)?[2-9]\d{2}[2-9]\d{6}$`),
		"GB":       regexp.MustCompile(`^(?:\+44|0)[1-9]\d{8,9}$`),
		"FR":       regexp.MustCompile(`^(?:\+33|0)[1-9]\d{8}$`),
		"DE":       regexp.MustCompile(`^(?:\+49|0)[1-9]\d{5,13}$`),
	}
)

// PhoneOptions selects the pattern used by ValidatePhone.
// Pattern takes precedence over Region; an empty Region means E.164.
type PhoneOptions struct {
	Region  string
	Pattern *regexp.Regexp
}

// RegisterRegion adds or replaces the pattern for a region code.
func RegisterRegion(region string, pattern *regexp.Regexp) {
	regionMu.Lock()
	defer regionMu.Unlock()
	regionPatterns[strings.ToUpper(region)] = pattern
}

// ValidatePhone normalizes number (digits plus optional leading "+") and
// matches it against the configured regional pattern.
func ValidatePhone(number string, opts PhoneOptions) (string, error) {
	normalized := sanitizer.NormalizePhone(number)
	if normalized == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPhone)
	}

	pattern := opts.Pattern
	if pattern == nil {
		region := strings.ToUpper(opts.Region)
		if region == "" {
			region = RegionE164
		}
		regionMu.RLock()
		p, ok := regionPatterns[region]
		regionMu.RUnlock()
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownRegion, region)
		}
		pattern = p
	}

	if !pattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPhone, number)
	}
	return normalized, nil
}
