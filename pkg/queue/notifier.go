package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// AlertKind names the condition an admin is told about.
type AlertKind string

const (
	AlertDeliveryFailed   AlertKind = "delivery_failed"
	AlertLargeQueue       AlertKind = "large_queue"
	AlertFailureThreshold AlertKind = "failure_threshold"
	AlertSizeLimit        AlertKind = "size_limit"
)

// Alert is raised for conditions an administrator should act on.
type Alert struct {
	Kind      AlertKind
	EmailID   uuid.UUID
	Subject   string
	LastError string
	Count     int
	At        time.Time
}

// Title is a one-line summary of the alert.
func (a Alert) Title() string {
	switch a.Kind {
	case AlertDeliveryFailed:
		return "Email delivery failed permanently"
	case AlertLargeQueue:
		return fmt.Sprintf("Email queue backlog reached %d", a.Count)
	case AlertFailureThreshold:
		return fmt.Sprintf("%d emails have failed", a.Count)
	case AlertSizeLimit:
		return "Email exceeds the message size limit"
	}
	return "Email queue alert"
}

// Notifier delivers admin alerts.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, a Alert) error

func (f NotifierFunc) Notify(ctx context.Context, a Alert) error {
	return f(ctx, a)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Alert) error { return nil }

// MultiNotifier fans an alert out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes alerts to a structured logger.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier logging at Warn level.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, a Alert) error {
	attrs := []any{logger.Event(string(a.Kind))}
	if a.EmailID != uuid.Nil {
		attrs = append(attrs, logger.EmailID(a.EmailID))
	}
	if a.LastError != "" {
		attrs = append(attrs, slog.String("last_error", a.LastError))
	}
	if a.Count > 0 {
		attrs = append(attrs, slog.Int("count", a.Count))
	}
	n.log.WarnContext(ctx, a.Title(), attrs...)
	return nil
}

// Enqueuer is the part of Service an EmailNotifier needs.
type Enqueuer interface {
	Add(ctx context.Context, p EnqueueParams) (*QueuedEmail, error)
}

// EmailNotifier enqueues an admin_alert email to the configured admin
// addresses. Alert emails bypass approval.
type EmailNotifier struct {
	queue  Enqueuer
	config ConfigSource
}

// NewEmailNotifier creates a notifier enqueueing through q.
func NewEmailNotifier(q Enqueuer, cfg ConfigSource) *EmailNotifier {
	return &EmailNotifier{queue: q, config: cfg}
}

func (n *EmailNotifier) Notify(ctx context.Context, a Alert) error {
	cfg, err := n.config.Current(ctx)
	if err != nil {
		return err
	}
	if len(cfg.AdminEmails) == 0 {
		return nil
	}

	severity := "warning"
	if a.Kind == AlertDeliveryFailed {
		severity = "error"
	}
	data := map[string]string{
		"alertTitle":   a.Title(),
		"alertMessage": alertMessage(a),
		"severity":     severity,
	}
	if a.EmailID != uuid.Nil {
		data["emailId"] = a.EmailID.String()
	}
	if a.LastError != "" {
		data["lastError"] = a.LastError
	}
	switch a.Kind {
	case AlertLargeQueue:
		data["queueSize"] = strconv.Itoa(a.Count)
	case AlertFailureThreshold:
		data["failedCount"] = strconv.Itoa(a.Count)
	}

	high := PriorityMax
	_, err = n.queue.Add(ctx, EnqueueParams{
		To:           cfg.AdminEmails,
		TemplateID:   string(TypeAdminAlert),
		TemplateData: data,
		Type:         TypeAdminAlert,
		Priority:     &high,
		SkipApproval: true,
	})
	return err
}

func alertMessage(a Alert) string {
	switch a.Kind {
	case AlertDeliveryFailed:
		return fmt.Sprintf("The email %q could not be delivered and has no retries left.", a.Subject)
	case AlertLargeQueue:
		return "The number of emails waiting for delivery or approval passed the configured threshold."
	case AlertFailureThreshold:
		return "The number of failed emails passed the configured threshold. Check the provider status."
	case AlertSizeLimit:
		return fmt.Sprintf("The email %q is larger than the provider accepts and was not sent.", a.Subject)
	}
	return "The email queue needs attention."
}
