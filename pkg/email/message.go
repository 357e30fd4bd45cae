package email

import (
	"fmt"
	"strings"
)

// Attachment is a file carried inline in a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a fully rendered email ready for a Sender.
type Message struct {
	From        string
	To          []string
	CC          []string
	BCC         []string
	ReplyTo     string
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []Attachment
	Headers     map[string]string
	Tag         string
	Metadata    map[string]string
}

// Recipients returns To, CC and BCC in that order.
func (m *Message) Recipients() []string {
	all := make([]string, 0, len(m.To)+len(m.CC)+len(m.BCC))
	all = append(all, m.To...)
	all = append(all, m.CC...)
	return append(all, m.BCC...)
}

// Validate checks the fields every transport requires.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.From) == "" {
		return fmt.Errorf("%w: sender is required", ErrInvalidMessage)
	}
	if len(m.Recipients()) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if m.HTMLBody == "" && m.TextBody == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	for _, a := range m.Attachments {
		if a.Filename == "" {
			return fmt.Errorf("%w: attachment filename is required", ErrInvalidMessage)
		}
	}
	return nil
}
