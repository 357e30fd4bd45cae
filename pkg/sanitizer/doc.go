// Package sanitizer cleans untrusted strings before they reach an email.
//
// StripDangerousMarkup and SanitizeText remove script and iframe elements,
// inline event handlers and javascript: URIs while keeping the surrounding
// text, so "<script>alert(1)</script>Hello" becomes "Hello". Format helpers
// normalize addresses, phone numbers, header values and attachment names.
package sanitizer
