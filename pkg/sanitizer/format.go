package sanitizer

import "strings"

// NormalizeEmail trims whitespace and lowercases the address.
// It does not repair malformed input; validation decides about that.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExtractEmailDomain returns the lowercased domain part of an address, or "".
func ExtractEmailDomain(email string) string {
	email = strings.TrimSpace(email)
	i := strings.LastIndex(email, "@")
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[i+1:])
}

// ExtractEmailLocal returns the lowercased local part of an address, or "".
func ExtractEmailLocal(email string) string {
	email = strings.TrimSpace(email)
	i := strings.LastIndex(email, "@")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(email[:i])
}

// MaskEmail hides the local part except its first character, for logs.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	local := ExtractEmailLocal(email)
	domain := ExtractEmailDomain(email)
	if local == "" || domain == "" {
		return email
	}
	return local[:1] + strings.Repeat("*", len(local)-1) + "@" + domain
}

// NormalizePhone keeps digits and a single leading "+".
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	plus := strings.HasPrefix(phone, "+")
	digits := nonDigitRegex.ReplaceAllString(phone, "")
	if plus && digits != "" {
		return "+" + digits
	}
	return digits
}

// SanitizeFilename replaces characters unsafe for file systems and MIME headers.
func SanitizeFilename(filename string) string {
	safe := unsafeFilenameRegex.ReplaceAllString(filename, "_")
	safe = strings.Trim(safe, " .")
	if len(safe) > 255 {
		safe = safe[:255]
	}
	if safe == "" {
		safe = "file"
	}
	return safe
}
