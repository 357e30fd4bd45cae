package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Required fails when value is blank.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "is required", TranslationKey: "validation.required"},
	}
}

// MaxLen fails when value is longer than max runes.
func MaxLen(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) <= max },
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must be at most %d characters", max),
			TranslationKey: "validation.max_length",
		},
	}
}

// RequiredSlice fails when value is empty.
func RequiredSlice[T any](field string, value []T) Rule {
	return Rule{
		Check: func() bool { return len(value) > 0 },
		Error: ValidationError{Field: field, Message: "must not be empty", TranslationKey: "validation.required"},
	}
}

// InRange fails when value is outside [min, max].
func InRange[T ~int | ~int8 | ~int16 | ~int32 | ~int64](field string, value, min, max T) Rule {
	return Rule{
		Check: func() bool { return value >= min && value <= max },
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must be between %d and %d", min, max),
			TranslationKey: "validation.range",
		},
	}
}

// ValidEmail fails when value is not a well-formed address. Role and
// disposable addresses are accepted; use ValidateEmail for those checks.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool { return ValidateEmail(value, EmailOptions{AllowRoleEmails: true}).Valid },
		Error: ValidationError{Field: field, Message: "must be a valid email address", TranslationKey: "validation.email"},
	}
}

// ValidEmails fails when any element of values is not a well-formed address.
func ValidEmails(field string, values []string) Rule {
	return Rule{
		Check: func() bool {
			for _, v := range values {
				if !ValidateEmail(v, EmailOptions{AllowRoleEmails: true}).Valid {
					return false
				}
			}
			return true
		},
		Error: ValidationError{Field: field, Message: "must contain only valid email addresses", TranslationKey: "validation.emails"},
	}
}

// ValidPhone fails when value does not match the E.164 pattern.
func ValidPhone(field, value string) Rule {
	return Rule{
		Check: func() bool {
			_, err := ValidatePhone(value, PhoneOptions{})
			return err == nil
		},
		Error: ValidationError{Field: field, Message: "must be a valid phone number", TranslationKey: "validation.phone"},
	}
}
