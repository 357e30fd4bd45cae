// Package validator validates and normalizes recipient data for the mail queue.
//
// ValidateEmail checks address syntax (non-empty, a single "@", a dotted
// domain, no consecutive dots, RFC 5322 grammar) and returns the trimmed,
// lowercased form. Options reject role mailboxes (admin, support, noreply,
// info) and disposable domains. ValidateEmailList partitions a list without
// reordering it. MXValidator adds a DNS check; a domain without a mail host
// fails with ErrLookup, which callers can tell apart from ErrInvalidEmail.
// ValidatePhone matches numbers against a configurable regional pattern.
//
// Rule and Apply build declarative field checks used by request validation:
//
//	err := validator.Apply(
//		validator.RequiredSlice("to", params.To),
//		validator.Required("subject", params.Subject),
//		validator.InRange("priority", params.Priority, 0, 100),
//	)
//	if validator.IsValidationError(err) {
//		// report per-field messages
//	}
package validator
