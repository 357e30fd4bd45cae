package audit

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Filter narrows Find and Count. Zero fields match everything.
type Filter struct {
	EmailID   uuid.UUID `json:"email_id,omitzero"`
	Statuses  []Status  `json:"statuses,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Since     time.Time `json:"since,omitzero"`
	Until     time.Time `json:"until,omitzero"`
	Search    string    `json:"search,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
}

// Match reports whether e satisfies f, ignoring Limit and Offset.
func (f Filter) Match(e Entry) bool {
	if f.EmailID != uuid.Nil && e.EmailID != f.EmailID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, e.Status) {
		return false
	}
	if f.Recipient != "" && !slices.Contains(e.Recipients, normalizeRecipient(f.Recipient)) {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Timestamp.Before(f.Until) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Subject), q) &&
			!strings.Contains(strings.ToLower(e.Message), q) &&
			!strings.Contains(strings.ToLower(e.ErrorDetails), q) {
			return false
		}
	}
	return true
}

// page applies Offset and Limit to an ordered slice.
func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func normalizeRecipient(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
