package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome recorded by an entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusRetry   Status = "retry"
	StatusPending Status = "pending"
)

// Entry is one write-once record in the delivery audit trail.
// It copies the email fields it needs so it stays readable after the
// queued email is archived.
type Entry struct {
	ID                uuid.UUID `json:"id" bson:"_id"`
	Seq               int64     `json:"seq" bson:"seq"`
	EmailID           uuid.UUID `json:"email_id" bson:"email_id"`
	Timestamp         time.Time `json:"timestamp" bson:"timestamp"`
	Status            Status    `json:"status" bson:"status"`
	Subject           string    `json:"subject" bson:"subject"`
	Recipients        []string  `json:"recipients" bson:"recipients"`
	Message           string    `json:"message,omitempty" bson:"message,omitempty"`
	ErrorDetails      string    `json:"error_details,omitempty" bson:"error_details,omitempty"`
	Attempt           int       `json:"attempt" bson:"attempt"`
	Actor             string    `json:"actor,omitempty" bson:"actor,omitempty"`
	ProviderMessageID string    `json:"provider_message_id,omitempty" bson:"provider_message_id,omitempty"`
	Hash              string    `json:"hash" bson:"hash"`
	PrevHash          string    `json:"prev_hash,omitempty" bson:"prev_hash,omitempty"`
}

// Validate checks if the entry has all required fields
func (e *Entry) Validate() error {
	if e.EmailID == uuid.Nil {
		return fmt.Errorf("%w: email id is required", ErrInvalidEntry)
	}
	switch e.Status {
	case StatusSuccess, StatusError, StatusRetry, StatusPending:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEntry, e.Status)
	}
	return nil
}
