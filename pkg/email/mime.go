package email

import (
	"bytes"
	"fmt"
	"io"
	"net/mail"
	"time"

	gomail "github.com/emersion/go-message/mail"
)

// BuildMIME serializes msg as an RFC 5322 message with a
// multipart/alternative body and any attachments. BCC recipients are
// never written to the headers.
func BuildMIME(msg *Message) ([]byte, error) {
	return buildMIME(msg, time.Now())
}

func buildMIME(msg *Message, now time.Time) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	var h gomail.Header
	from, err := parseAddressList([]string{msg.From})
	if err != nil {
		return nil, fmt.Errorf("%w: from: %v", ErrInvalidMessage, err)
	}
	h.SetAddressList("From", from)

	for _, field := range []struct {
		key  string
		list []string
	}{{"To", msg.To}, {"Cc", msg.CC}} {
		if len(field.list) == 0 {
			continue
		}
		addrs, err := parseAddressList(field.list)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, field.key, err)
		}
		h.SetAddressList(field.key, addrs)
	}
	if msg.ReplyTo != "" {
		replyTo, err := parseAddressList([]string{msg.ReplyTo})
		if err != nil {
			return nil, fmt.Errorf("%w: reply-to: %v", ErrInvalidMessage, err)
		}
		h.SetAddressList("Reply-To", replyTo)
	}

	h.SetSubject(msg.Subject)
	h.SetDate(now)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("email: generate message id: %w", err)
	}
	for k, v := range msg.Headers {
		h.Set(k, v)
	}
	if msg.Tag != "" {
		h.Set("X-Tag", msg.Tag)
	}

	var buf bytes.Buffer
	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("email: create writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("email: create inline: %w", err)
	}
	if msg.TextBody != "" {
		if err := writeInline(tw, "text/plain", msg.TextBody); err != nil {
			return nil, err
		}
	}
	if msg.HTMLBody != "" {
		if err := writeInline(tw, "text/html", msg.HTMLBody); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("email: close inline: %w", err)
	}

	for _, a := range msg.Attachments {
		var ah gomail.AttachmentHeader
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		ah.SetContentType(ct, nil)
		ah.SetFilename(a.Filename)
		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("email: create attachment %q: %w", a.Filename, err)
		}
		if _, err := w.Write(a.Content); err != nil {
			return nil, fmt.Errorf("email: write attachment %q: %w", a.Filename, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("email: close attachment %q: %w", a.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("email: close message: %w", err)
	}
	return buf.Bytes(), nil
}

// MessageSize returns the serialized size of msg in bytes.
func MessageSize(msg *Message) (int, error) {
	raw, err := BuildMIME(msg)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

func writeInline(tw *gomail.InlineWriter, contentType, body string) error {
	var ih gomail.InlineHeader
	ih.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(ih)
	if err != nil {
		return fmt.Errorf("email: create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("email: write %s part: %w", contentType, err)
	}
	return w.Close()
}

func parseAddressList(list []string) ([]*gomail.Address, error) {
	addrs := make([]*gomail.Address, 0, len(list))
	for _, raw := range list {
		a, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", raw, err)
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}
