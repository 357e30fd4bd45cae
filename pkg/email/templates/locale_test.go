package templates_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/mailqueue/pkg/email/templates"
)

func TestFormatDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value, locale, expected string
	}{
		{"2026-03-14", "en-US", "03/14/2026"},
		{"2026-03-14", "en", "03/14/2026"},
		{"2026-03-14", "", "03/14/2026"},
		{"2026-03-14", "en-GB", "14/03/2026"},
		{"2026-03-14", "fr-FR", "14/03/2026"},
		{"2026-03-14", "de", "14/03/2026"},
		{"2026-03-14", "ja-JP", "2026-03-14"},
		{"2026-03-14T18:30:00Z", "de-DE", "14/03/2026 18:30"},
		{"2026-03-14 09:05", "en-US", "03/14/2026 09:05"},
		{"Date TBD", "fr", "Date TBD"},
		{"next Tuesday", "en-US", "next Tuesday"},
	}

	for _, tt := range tests {
		t.Run(tt.value+"/"+tt.locale, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, templates.FormatDate(tt.value, tt.locale))
		})
	}
}
