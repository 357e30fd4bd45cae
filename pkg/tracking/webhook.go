package tracking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mrz1836/postmark"
)

// Notification is a provider webhook normalized to tracking records.
type Notification struct {
	EmailID   uuid.UUID
	Kind      RecordKind
	Event     *Event
	Bounce    *Bounce
	Complaint *Complaint
}

// permanentBounceTypes lists Postmark bounce types after which the address
// will not accept mail. Everything else is transient.
var permanentBounceTypes = map[string]struct{}{
	"HardBounce":          {},
	"BadEmailAddress":     {},
	"ManuallyDeactivated": {},
	"Unsubscribe":         {},
	"Blocked":             {},
	"DMARCPolicy":         {},
}

// ParsePostmark normalizes a Postmark webhook body. The queued email is
// found through the MetadataEmailID key set at dispatch.
func ParsePostmark(payload []byte) (Notification, error) {
	var base postmark.BaseEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	id, err := emailIDFrom(base.Metadata)
	if err != nil {
		return Notification{}, err
	}

	n := Notification{EmailID: id}
	switch base.RecordType {
	case "Delivery":
		var ev postmark.DeliveryEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return Notification{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		n.Kind = KindEvent
		n.Event = &Event{Type: EventDelivered, Recipient: ev.Recipient, Detail: ev.Details, At: ev.DeliveredAt}

	case "Open":
		var ev postmark.OpenEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return Notification{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		n.Kind = KindEvent
		n.Event = &Event{Type: EventOpened, Recipient: ev.Recipient, Detail: ev.Client.Name, At: ev.ReceivedAt}

	case "Click":
		var ev postmark.ClickEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return Notification{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		n.Kind = KindEvent
		n.Event = &Event{Type: EventClicked, Recipient: ev.Recipient, Detail: ev.OriginalLink, At: ev.ReceivedAt}

	case "Bounce":
		var ev postmark.BounceEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return Notification{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		typ := BounceTransient
		if _, ok := permanentBounceTypes[ev.Type]; ok || ev.Inactive {
			typ = BouncePermanent
		}
		n.Kind = KindBounce
		n.Bounce = &Bounce{Type: typ, Recipients: []string{ev.Email}, Description: ev.Description, At: ev.BouncedAt}

	case "SpamComplaint":
		var ev postmark.SpamComplaintEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return Notification{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		category := ComplaintOther
		if ev.Type == "SpamComplaint" {
			category = ComplaintAbuse
		}
		n.Kind = KindComplaint
		n.Complaint = &Complaint{Category: category, Recipients: []string{ev.Email}, Feedback: ev.Description, At: ev.BouncedAt}

	default:
		return Notification{}, fmt.Errorf("%w: %q", ErrUnsupportedEvent, base.RecordType)
	}
	return n, nil
}

// Webhook applies provider notifications to a Tracker.
type Webhook struct {
	tracker *Tracker
}

func NewWebhook(t *Tracker) *Webhook {
	return &Webhook{tracker: t}
}

// HandlePostmark parses a Postmark webhook body and records it.
func (w *Webhook) HandlePostmark(ctx context.Context, payload []byte) (Notification, error) {
	n, err := ParsePostmark(payload)
	if err != nil {
		return Notification{}, err
	}
	return n, w.Apply(ctx, n)
}

// Apply records a normalized notification.
func (w *Webhook) Apply(ctx context.Context, n Notification) error {
	switch n.Kind {
	case KindEvent:
		return w.tracker.RecordEvent(ctx, n.EmailID, *n.Event)
	case KindBounce:
		return w.tracker.RecordBounce(ctx, n.EmailID, *n.Bounce)
	case KindComplaint:
		return w.tracker.RecordComplaint(ctx, n.EmailID, *n.Complaint)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedEvent, n.Kind)
}

func emailIDFrom(meta map[string]interface{}) (uuid.UUID, error) {
	raw, ok := meta[MetadataEmailID].(string)
	if !ok {
		return uuid.Nil, ErrUnknownEmail
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrUnknownEmail, err)
	}
	return id, nil
}
