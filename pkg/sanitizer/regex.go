package sanitizer

import "regexp"

var (
	// script and iframe elements including their content
	scriptBlockRegex = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	iframeBlockRegex = regexp.MustCompile(`(?is)<iframe\b[^>]*>.*?</iframe\s*>`)
	// unbalanced or self-closing leftovers, and an unterminated opening tag at the end of input
	dangerousTagRegex = regexp.MustCompile(`(?is)</?(?:script|iframe)\b[^>]*(?:>|$)`)

	eventHandlerRegex = regexp.MustCompile(`(?i)\s*\bon[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	// tolerates whitespace and control characters between letters, as browsers do
	jsURIRegex = regexp.MustCompile(`(?i)j[\s\x00-\x1f]*a[\s\x00-\x1f]*v[\s\x00-\x1f]*a[\s\x00-\x1f]*s[\s\x00-\x1f]*c[\s\x00-\x1f]*r[\s\x00-\x1f]*i[\s\x00-\x1f]*p[\s\x00-\x1f]*t[\s\x00-\x1f]*:`)
	vbURIRegex = regexp.MustCompile(`(?i)vbscript\s*:`)

	htmlTagRegex        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex     = regexp.MustCompile(`\s+`)
	nonDigitRegex       = regexp.MustCompile(`\D`)
	unsafeFilenameRegex = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	headerBreakRegex    = regexp.MustCompile(`[\r\n]+`)
)
