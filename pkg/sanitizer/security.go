package sanitizer

import (
	"html"
	"strings"
)

// EscapeHTML escapes HTML special characters.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// StripScriptTags removes <script> elements together with their content.
func StripScriptTags(s string) string {
	return scriptBlockRegex.ReplaceAllString(s, "")
}

// StripIframes removes <iframe> elements together with their content.
func StripIframes(s string) string {
	return iframeBlockRegex.ReplaceAllString(s, "")
}

// RemoveJavaScriptURIs removes javascript: and vbscript: URI schemes.
func RemoveJavaScriptURIs(s string) string {
	s = jsURIRegex.ReplaceAllString(s, "")
	return vbURIRegex.ReplaceAllString(s, "")
}

// RemoveJavaScriptEvents removes inline on* event handler attributes.
func RemoveJavaScriptEvents(s string) string {
	return eventHandlerRegex.ReplaceAllString(s, "")
}

// StripDangerousMarkup removes script and iframe elements, stray script/iframe
// tags, inline event handlers and script URIs. Everything else, including the
// plain text around removed elements, is kept as is.
//
// Passes repeat until the input stops changing, so a tag rebuilt by removing
// a nested one (<scr<script>ipt>) is removed as well.
func StripDangerousMarkup(s string) string {
	for s != "" {
		next := stripOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func stripOnce(s string) string {
	s = StripScriptTags(s)
	s = StripIframes(s)
	s = dangerousTagRegex.ReplaceAllString(s, "")
	s = RemoveJavaScriptEvents(s)
	return RemoveJavaScriptURIs(s)
}

// SanitizeText prepares an untrusted value for interpolation into an email.
// Entities are decoded first so encoded payloads such as &lt;script&gt; are
// caught, then dangerous markup is stripped. The result is plain text and must
// still be escaped by the renderer.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = html.UnescapeString(s)
	s = StripDangerousMarkup(s)
	return strings.TrimSpace(s)
}

// SanitizeURL returns u when it uses a safe scheme (http, https, mailto or relative), otherwise "".
func SanitizeURL(u string) string {
	u = strings.TrimSpace(html.UnescapeString(u))
	if u == "" {
		return ""
	}
	if RemoveJavaScriptURIs(u) != u {
		return ""
	}
	lower := strings.ToLower(u)
	if i := strings.Index(lower, ":"); i >= 0 && !strings.ContainsAny(lower[:i], "/?#") {
		switch lower[:i] {
		case "http", "https", "mailto":
		default:
			return ""
		}
	}
	return u
}
