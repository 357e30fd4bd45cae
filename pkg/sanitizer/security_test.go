package sanitizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/mailqueue/pkg/sanitizer"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text untouched", "Spring Regatta 2025", "Spring Regatta 2025"},
		{"script element removed", "<script>alert(1)</script>Hello", "Hello"},
		{"script with attributes and newlines", "Hi <script type=\"text/javascript\">\nsteal()\n</script>there", "Hi there"},
		{"uppercase script", "<SCRIPT>x()</SCRIPT>ok", "ok"},
		{"iframe removed", "before<iframe src=\"https://evil\"></iframe>after", "beforeafter"},
		{"self closing iframe", "a<iframe src=x />b", "ab"},
		{"unterminated script tag", "<script>alert(1)", "alert(1)"},
		{"encoded script", "&lt;script&gt;alert(1)&lt;/script&gt;Hello", "Hello"},
		{"javascript uri", "<a href=\"javascript:alert(1)\">click</a>", "<a href=\"alert(1)\">click</a>"},
		{"obfuscated javascript uri", "java\tscript:alert(1)", "alert(1)"},
		{"event handler", "<b onclick=\"x()\">bold</b>", "<b>bold</b>"},
		{"nested script tag", "<scr<script>ipt>alert(1) Hello", "alert(1) Hello"},
		{"nested script element", "<scr<script>x</script>ipt>alert(1)</script>Hi", "alert(1)Hi"},
		{"nested iframe tag", "<ifr<iframe>ame src=x>Hi", "Hi"},
		{"nested javascript uri", "javajavascript:script:alert(1)", "alert(1)"},
		{"nested event handler", "<b ononclick=x()click=\"y()\">b</b>", "<b>b</b>"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := sanitizer.SanitizeText(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.NotContains(t, got, "<script")
		})
	}
}

func TestStripDangerousMarkup_KeepsEntities(t *testing.T) {
	t.Parallel()

	got := sanitizer.StripDangerousMarkup("Tom &amp; Jerry<script>x</script>")
	assert.Equal(t, "Tom &amp; Jerry", got)
}

func TestSanitizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"https://club.example.org/events/1", "https://club.example.org/events/1"},
		{"mailto:admin@example.org", "mailto:admin@example.org"},
		{"/events/1?x=a:b", "/events/1?x=a:b"},
		{"javascript:alert(1)", ""},
		{"JaVaScRiPt:alert(1)", ""},
		{"data:text/html;base64,xxx", ""},
		{"  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, sanitizer.SanitizeURL(tt.input))
		})
	}
}

func TestEscapeHTML(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "&lt;b&gt;", sanitizer.EscapeHTML("<b>"))
}
