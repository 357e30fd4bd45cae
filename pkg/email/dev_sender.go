package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DevSender writes each message to disk as a .eml file plus a .json
// summary instead of delivering it.
type DevSender struct {
	dir string
	now func() time.Time
}

// NewDevSender creates a sender that stores messages under dir.
// The directory is created on first send.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

type devSummary struct {
	ID          string            `json:"id"`
	Timestamp   string            `json:"timestamp"`
	From        string            `json:"from"`
	To          []string          `json:"to"`
	CC          []string          `json:"cc,omitempty"`
	BCC         []string          `json:"bcc,omitempty"`
	Subject     string            `json:"subject"`
	Tag         string            `json:"tag,omitempty"`
	Attachments []string          `json:"attachments,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Size        int               `json:"size"`
}

// Send implements Sender. The returned id is "dev-<uuid>".
func (d *DevSender) Send(ctx context.Context, msg *Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := d.now()
	raw, err := buildMIME(msg, now)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create directory: %v", ErrTransport, err)
	}

	id := "dev-" + uuid.NewString()
	identifier := msg.Tag
	if identifier == "" {
		identifier = msg.Subject
	}
	base := fmt.Sprintf("%s_%s_%s", now.Format("2006_01_02_150405"), devFilename(identifier), id[4:12])

	if err := os.WriteFile(filepath.Join(d.dir, base+".eml"), raw, 0o644); err != nil {
		return "", fmt.Errorf("%w: write eml: %v", ErrTransport, err)
	}

	summary := devSummary{
		ID:        id,
		Timestamp: now.Format(time.RFC3339),
		From:      msg.From,
		To:        msg.To,
		CC:        msg.CC,
		BCC:       msg.BCC,
		Subject:   msg.Subject,
		Tag:       msg.Tag,
		Metadata:  msg.Metadata,
		Size:      len(raw),
	}
	for _, a := range msg.Attachments {
		summary.Attachments = append(summary.Attachments, a.Filename)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: marshal summary: %v", ErrTransport, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write summary: %v", ErrTransport, err)
	}

	return id, nil
}

var devFilenameRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func devFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = devFilenameRegex.ReplaceAllString(s, "")
	if len(s) > 60 {
		s = s[:60]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}
