package queue_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

func TestEmailNotifier_EnqueuesAdminAlert(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *queue.Config) {
		c.AdminEmails = []string{"Ops@Federation.Example"}
		c.DefaultRequireApproval = true
	})
	ctx := context.Background()
	cfg, err := f.svc.Config(ctx)
	require.NoError(t, err)

	n := queue.NewEmailNotifier(f.svc, queue.StaticConfigSource(cfg))
	emailID := uuid.New()
	require.NoError(t, n.Notify(ctx, queue.Alert{
		Kind:      queue.AlertDeliveryFailed,
		EmailID:   emailID,
		Subject:   "Event approved",
		LastError: "550 mailbox unavailable",
	}))

	list, err := f.svc.List(ctx, queue.Filter{Type: queue.TypeAdminAlert})
	require.NoError(t, err)
	require.Len(t, list, 1)

	alert := list[0]
	assert.Equal(t, queue.StatusPending, alert.Status, "alerts skip approval")
	assert.Equal(t, queue.PriorityMax, alert.Priority)
	assert.Equal(t, []string{"ops@federation.example"}, alert.To)
	assert.Equal(t, "admin_alert", alert.TemplateID)
	assert.Equal(t, "error", alert.TemplateData["severity"])
	assert.Equal(t, emailID.String(), alert.TemplateData["emailId"])
	assert.Equal(t, "550 mailbox unavailable", alert.TemplateData["lastError"])
	assert.Equal(t, "Email delivery failed permanently", alert.TemplateData["alertTitle"])
	assert.Contains(t, alert.TemplateData["alertMessage"], "Event approved")
}

func TestEmailNotifier_Counts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *queue.Config) { c.AdminEmails = []string{"ops@federation.example"} })
	ctx := context.Background()
	cfg, err := f.svc.Config(ctx)
	require.NoError(t, err)
	n := queue.NewEmailNotifier(f.svc, queue.StaticConfigSource(cfg))

	require.NoError(t, n.Notify(ctx, queue.Alert{Kind: queue.AlertLargeQueue, Count: 1000}))
	require.NoError(t, n.Notify(ctx, queue.Alert{Kind: queue.AlertFailureThreshold, Count: 10}))

	list, err := f.svc.List(ctx, queue.Filter{Type: queue.TypeAdminAlert})
	require.NoError(t, err)
	require.Len(t, list, 2)

	byTitle := map[string]map[string]string{}
	for _, e := range list {
		byTitle[e.TemplateData["alertTitle"]] = e.TemplateData
	}
	assert.Equal(t, "1000", byTitle["Email queue backlog reached 1000"]["queueSize"])
	assert.Equal(t, "warning", byTitle["Email queue backlog reached 1000"]["severity"])
	assert.Equal(t, "10", byTitle["10 emails have failed"]["failedCount"])
}

func TestEmailNotifier_NoAdmins(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	n := queue.NewEmailNotifier(f.svc, queue.StaticConfigSource(queue.DefaultConfig()))
	require.NoError(t, n.Notify(ctx, queue.Alert{Kind: queue.AlertLargeQueue, Count: 5}))

	count, err := f.svc.Count(ctx, queue.Filter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMultiNotifier_JoinsErrors(t *testing.T) {
	t.Parallel()

	rec := &alertRecorder{}
	boom := errors.New("smtp relay down")
	m := queue.MultiNotifier{
		queue.NotifierFunc(func(context.Context, queue.Alert) error { return boom }),
		rec,
	}

	err := m.Notify(context.Background(), queue.Alert{Kind: queue.AlertSizeLimit})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []queue.AlertKind{queue.AlertSizeLimit}, rec.kinds(), "later notifiers still run")
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := queue.NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	id := uuid.New()
	require.NoError(t, n.Notify(context.Background(), queue.Alert{
		Kind:      queue.AlertDeliveryFailed,
		EmailID:   id,
		LastError: "timeout",
	}))

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, "Email delivery failed permanently")
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, `"last_error":"timeout"`)
}

func TestService_NotifierErrorsAreSwallowed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.svc.SetNotifier(queue.NotifierFunc(func(context.Context, queue.Alert) error {
		return errors.New("unreachable")
	}))

	assert.NotPanics(t, func() {
		f.svc.Notify(context.Background(), queue.Alert{Kind: queue.AlertLargeQueue})
	})
	f.svc.SetNotifier(nil)
	f.svc.Notify(context.Background(), queue.Alert{Kind: queue.AlertLargeQueue})
}
