package tracking

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

// MetadataEmailID is the message metadata key that carries the queued email
// id through the provider, so webhooks can be matched back to it.
const MetadataEmailID = "email_id"

// BounceType is the provider's classification of a bounce.
type BounceType string

const (
	BouncePermanent BounceType = "permanent"
	BounceTransient BounceType = "transient"
)

// ComplaintCategory is the feedback category of a complaint.
type ComplaintCategory string

const (
	ComplaintAbuse ComplaintCategory = "abuse"
	ComplaintOther ComplaintCategory = "other"
)

// EventType names a delivery lifecycle event reported by the provider.
type EventType string

const (
	EventSent      EventType = "sent"
	EventDelivered EventType = "delivered"
	EventOpened    EventType = "opened"
	EventClicked   EventType = "clicked"
)

// Attempt is one dispatch attempt as seen by tracking.
type Attempt struct {
	Number            int       `json:"number"`
	Status            string    `json:"status"`
	Error             string    `json:"error,omitempty"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	At                time.Time `json:"at"`
}

type Event struct {
	Type      EventType `json:"type"`
	Recipient string    `json:"recipient,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

type Bounce struct {
	Type        BounceType `json:"type"`
	Recipients  []string   `json:"recipients"`
	Description string     `json:"description,omitempty"`
	At          time.Time  `json:"at"`
}

type Complaint struct {
	Category   ComplaintCategory `json:"category"`
	Recipients []string          `json:"recipients"`
	Feedback   string            `json:"feedback,omitempty"`
	At         time.Time         `json:"at"`
}

// RecordKind tags the payload of a Record.
type RecordKind string

const (
	KindAttempt   RecordKind = "attempt"
	KindEvent     RecordKind = "event"
	KindBounce    RecordKind = "bounce"
	KindComplaint RecordKind = "complaint"
)

// Record is one entry of a message's tracking history. Exactly one payload
// field is set, matching Kind.
type Record struct {
	Kind      RecordKind `json:"kind"`
	Attempt   *Attempt   `json:"attempt,omitempty"`
	Event     *Event     `json:"event,omitempty"`
	Bounce    *Bounce    `json:"bounce,omitempty"`
	Complaint *Complaint `json:"complaint,omitempty"`
}

// DeliveryStats merges the tracking history of one message.
type DeliveryStats struct {
	EmailID     uuid.UUID   `json:"email_id"`
	SentAt      *time.Time  `json:"sent_at,omitempty"`
	DeliveredAt *time.Time  `json:"delivered_at,omitempty"`
	OpenedAt    *time.Time  `json:"opened_at,omitempty"`
	Attempts    []Attempt   `json:"attempts"`
	Events      []Event     `json:"events"`
	Bounces     []Bounce    `json:"bounces"`
	Complaints  []Complaint `json:"complaints"`
}

// Totals counts records across all messages.
type Totals struct {
	Attempts         int64 `json:"attempts"`
	Events           int64 `json:"events"`
	Bounces          int64 `json:"bounces"`
	PermanentBounces int64 `json:"permanent_bounces"`
	TransientBounces int64 `json:"transient_bounces"`
	Complaints       int64 `json:"complaints"`
}

// add counts r. Stores without server-side counters fold records through it.
func (t *Totals) add(r Record) {
	switch r.Kind {
	case KindAttempt:
		t.Attempts++
	case KindEvent:
		t.Events++
	case KindBounce:
		t.Bounces++
		if r.Bounce.Type == BouncePermanent {
			t.PermanentBounces++
		} else {
			t.TransientBounces++
		}
	case KindComplaint:
		t.Complaints++
	}
}

// QueueStats is the queue summary extended with bounce and complaint totals.
type QueueStats struct {
	queue.Stats
	Bounces          int64 `json:"bounces"`
	PermanentBounces int64 `json:"permanent_bounces"`
	Complaints       int64 `json:"complaints"`
}
