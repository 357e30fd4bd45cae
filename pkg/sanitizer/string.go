package sanitizer

import (
	"html"
	"strings"
)

// TrimToLower removes surrounding whitespace and lowercases s.
func TrimToLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MaxLength truncates s to maxLen runes.
func MaxLength(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// NormalizeWhitespace collapses whitespace runs into single spaces and trims.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// StripHTML removes tags and decodes entities, producing plain text.
func StripHTML(s string) string {
	return html.UnescapeString(htmlTagRegex.ReplaceAllString(s, ""))
}

// SingleLine removes line breaks so s is safe inside a mail header.
func SingleLine(s string) string {
	return NormalizeWhitespace(headerBreakRegex.ReplaceAllString(s, " "))
}
