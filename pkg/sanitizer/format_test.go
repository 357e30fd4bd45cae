package sanitizer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/mailqueue/pkg/sanitizer"
)

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "john.doe@example.com", sanitizer.NormalizeEmail("  John.Doe@Example.COM "))
	// malformed input is not repaired
	assert.Equal(t, "a..b@example.com", sanitizer.NormalizeEmail("a..b@example.com"))
}

func TestEmailParts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		local  string
		domain string
	}{
		{"User@Example.com", "user", "example.com"},
		{"no-at-sign", "", ""},
		{"@example.com", "", "example.com"},
		{"user@", "user", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.local, sanitizer.ExtractEmailLocal(tt.input))
			assert.Equal(t, tt.domain, sanitizer.ExtractEmailDomain(tt.input))
		})
	}
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "j***@example.com", sanitizer.MaskEmail("john@example.com"))
	assert.Equal(t, "invalid", sanitizer.MaskEmail("invalid"))
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "+4915112345678", sanitizer.NormalizePhone("+49 151 1234-5678"))
	assert.Equal(t, "0612345678", sanitizer.NormalizePhone("06 12 34 56 78"))
	assert.Equal(t, "", sanitizer.NormalizePhone("+"))
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "report_2025_.pdf", sanitizer.SanitizeFilename("report/2025?.pdf"))
	assert.Equal(t, "file", sanitizer.SanitizeFilename(" .. "))
	assert.Len(t, sanitizer.SanitizeFilename(strings.Repeat("a", 300)), 255)
}

func TestSingleLine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Subject Bcc: evil@example.com", sanitizer.SingleLine("Subject\r\nBcc: evil@example.com"))
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Hello & welcome", sanitizer.StripHTML("<p>Hello &amp; <b>welcome</b></p>"))
}

func TestMaxLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Grü", sanitizer.MaxLength("Grüße", 3))
	assert.Equal(t, "", sanitizer.MaxLength("abc", 0))
}
