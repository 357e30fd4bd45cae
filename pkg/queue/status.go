package queue

import (
	"fmt"
	"maps"
	"time"
)

// Status is the lifecycle state of a queued email.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusDraft, StatusPending, StatusSent, StatusFailed, StatusCancelled}

var transitions = map[Status][]Status{
	StatusDraft:   {StatusPending},
	StatusPending: {StatusSent, StatusFailed, StatusCancelled},
	StatusFailed:  {StatusPending},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok || s == StatusSent || s == StatusCancelled
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusCancelled
}

// CanTransition reports whether from -> to is in the transition table.
// Staying in the same status is not a transition.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanRetry reports whether e may move from failed back to pending.
func CanRetry(e *QueuedEmail) bool {
	return e.Status == StatusFailed && e.RetryCount < e.MaxRetries
}

// Transition moves e to status to, enforcing the table and the retry cap.
func Transition(e *QueuedEmail, to Status) error {
	if !CanTransition(e.Status, to) {
		return &TransitionError{From: e.Status, To: to}
	}
	if e.Status == StatusFailed && !CanRetry(e) {
		return fmt.Errorf("%w: %d of %d used", ErrRetriesExhausted, e.RetryCount, e.MaxRetries)
	}
	e.Status = to
	return nil
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Status       *Status           `json:"status,omitempty"`
	To           []string          `json:"to,omitempty"`
	CC           []string          `json:"cc,omitempty"`
	BCC          []string          `json:"bcc,omitempty"`
	Subject      *string           `json:"subject,omitempty"`
	HTMLBody     *string           `json:"html_body,omitempty"`
	TextBody     *string           `json:"text_body,omitempty"`
	Priority     *Priority         `json:"priority,omitempty"`
	ScheduledFor *time.Time        `json:"scheduled_for,omitempty"`
	MaxRetries   *int              `json:"max_retries,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	// ClearSchedule drops ScheduledFor so the email is due immediately.
	ClearSchedule bool `json:"clear_schedule,omitempty"`
}

// Apply merges p into e. The record is left untouched when an error is returned.
func (p Patch) Apply(e *QueuedEmail, now time.Time) error {
	next := e.Clone()

	if p.Status != nil && *p.Status != next.Status {
		if err := Transition(next, *p.Status); err != nil {
			return err
		}
	}
	if p.To != nil {
		if next.To = normalizeAddresses(p.To); len(next.To) == 0 {
			return fmt.Errorf("%w: at least one recipient is required", ErrValidation)
		}
	}
	if p.CC != nil {
		next.CC = normalizeAddresses(p.CC)
	}
	if p.BCC != nil {
		next.BCC = normalizeAddresses(p.BCC)
	}
	if p.Subject != nil {
		if *p.Subject == "" && next.TemplateID == "" {
			return fmt.Errorf("%w: subject is required", ErrValidation)
		}
		next.Subject = *p.Subject
	}
	if p.HTMLBody != nil {
		next.HTMLBody = *p.HTMLBody
	}
	if p.TextBody != nil {
		next.TextBody = *p.TextBody
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return ErrInvalidPriority
		}
		next.Priority = *p.Priority
	}
	if p.ClearSchedule {
		next.ScheduledFor = nil
	} else if p.ScheduledFor != nil {
		next.ScheduledFor = cloneTime(p.ScheduledFor)
	}
	if p.MaxRetries != nil {
		if *p.MaxRetries < 0 {
			return fmt.Errorf("%w: max retries must not be negative", ErrValidation)
		}
		next.MaxRetries = *p.MaxRetries
	}
	if p.Metadata != nil {
		if next.Metadata == nil {
			next.Metadata = make(map[string]string, len(p.Metadata))
		}
		maps.Copy(next.Metadata, p.Metadata)
	}

	next.UpdatedAt = now
	*e = *next
	return nil
}
