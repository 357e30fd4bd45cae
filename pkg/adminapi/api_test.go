package adminapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/adminapi"
	"github.com/dmitrymomot/mailqueue/pkg/audit"
	"github.com/dmitrymomot/mailqueue/pkg/clock"
	"github.com/dmitrymomot/mailqueue/pkg/dispatcher"
	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/ratelimiter"
	"github.com/dmitrymomot/mailqueue/pkg/tracking"
)

const token = "s3cret"

var epoch = time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)

var discard = slog.New(slog.DiscardHandler)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type fixture struct {
	svc     *queue.Service
	audit   *audit.Log
	clock   *clock.Fake
	failing atomic.Bool
	sent    atomic.Int32
	handler http.Handler
}

func newFixture(t *testing.T, opts ...adminapi.Option) *fixture {
	t.Helper()

	f := &fixture{clock: clock.NewFake(epoch)}

	cfg := queue.DefaultConfig()
	cfg.FailureNotifyThreshold = 0
	cfg.RequireApproval = map[queue.MessageType]bool{queue.TypeEventApproved: true}

	var err error
	f.audit, err = audit.NewLog(audit.NewMemoryStorage(), audit.WithClock(f.clock))
	require.NoError(t, err)

	f.svc, err = queue.NewService(queue.NewMemoryStorage(), queue.StaticConfigSource(cfg),
		queue.WithClock(f.clock),
		queue.WithLogger(discard),
		queue.WithAuditor(f.audit),
	)
	require.NoError(t, err)

	tracker, err := tracking.NewTracker(tracking.NewMemoryStore(), f.svc,
		tracking.WithClock(f.clock),
		tracking.WithLogger(discard))
	require.NoError(t, err)

	sender := email.SenderFunc(func(context.Context, *email.Message) (string, error) {
		if f.failing.Load() {
			return "", &email.SendError{Provider: "postmark", Code: 500, Retryable: true, Err: errors.New("upstream unavailable")}
		}
		return fmt.Sprintf("pm-%d", f.sent.Add(1)), nil
	})
	d, err := dispatcher.New(f.svc, dispatcher.Config{From: "events@federation.example"},
		dispatcher.WithSender(sender),
		dispatcher.WithAuditor(f.audit),
		dispatcher.WithRecorder(tracker),
		dispatcher.WithClock(f.clock),
		dispatcher.WithLogger(discard),
	)
	require.NoError(t, err)

	base := []adminapi.Option{
		adminapi.WithAudit(f.audit),
		adminapi.WithTracker(tracker),
		adminapi.WithLogger(discard),
	}
	api, err := adminapi.New(f.svc, d, adminapi.Config{
		Token:           token,
		WebhookUser:     "postmark",
		WebhookPassword: "hook",
	}, append(base, opts...)...)
	require.NoError(t, err)

	f.handler = api.Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (f *fixture) add(t *testing.T, p queue.EnqueueParams) *queue.QueuedEmail {
	t.Helper()
	if len(p.To) == 0 {
		p.To = []string{"secretary@club.example"}
	}
	if p.Subject == "" {
		p.Subject = "Spring regatta"
	}
	p.TextBody = "See you on the water."
	e, err := f.svc.Add(context.Background(), p)
	require.NoError(t, err)
	return e
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := adminapi.New(nil, nil, adminapi.Config{})
	assert.ErrorIs(t, err, adminapi.ErrQueueNil)

	svc, err := queue.NewService(queue.NewMemoryStorage(), queue.StaticConfigSource(queue.DefaultConfig()))
	require.NoError(t, err)
	_, err = adminapi.New(svc, nil, adminapi.Config{})
	assert.ErrorIs(t, err, adminapi.ErrDispatcherNil)
}

func TestRouter_Authentication(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
	}{
		{name: "liveness is public", path: "/health/live", status: http.StatusOK},
		{name: "readiness is public", path: "/health/ready", status: http.StatusOK},
		{name: "missing token", path: "/emails", status: http.StatusUnauthorized},
		{name: "wrong token", path: "/emails", auth: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid token", path: "/emails", auth: "Bearer " + token, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRouter_ReadinessFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, adminapi.WithReadinessCheck(func(context.Context) error {
		return errors.New("mongo: server selection timeout")
	}))

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT_READY", rec.Body.String())
}

func TestEnqueue(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	t.Run("created", func(t *testing.T) {
		t.Parallel()
		rec, env := f.do(t, http.MethodPost, "/emails",
			`{"to":[" Secretary@Club.example "],"subject":"AGM agenda","text_body":"Attached.","type":"custom"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		e := decode[queue.QueuedEmail](t, env.Data)
		assert.NotEqual(t, uuid.Nil, e.ID)
		assert.Equal(t, queue.StatusPending, e.Status)
		assert.Equal(t, []string{"secretary@club.example"}, e.To)
	})

	t.Run("approval required", func(t *testing.T) {
		t.Parallel()
		rec, env := f.do(t, http.MethodPost, "/emails",
			`{"to":["chair@club.example"],"subject":"Event approved","type":"event_approved"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, queue.StatusDraft, decode[queue.QueuedEmail](t, env.Data).Status)
	})

	t.Run("validation error", func(t *testing.T) {
		t.Parallel()
		rec, env := f.do(t, http.MethodPost, "/emails", `{"to":[],"subject":"nobody"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()
		rec, _ := f.do(t, http.MethodPost, "/emails", `{"to":["a@club.example"],"subject":"x","colour":"red"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong media type", func(t *testing.T) {
		t.Parallel()
		rec, _ := f.do(t, http.MethodPost, "/emails", `to=a@club.example`,
			"Content-Type", "application/x-www-form-urlencoded")
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestListEmails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for i := range 3 {
		f.add(t, queue.EnqueueParams{Subject: fmt.Sprintf("Newsletter %d", i)})
	}
	f.add(t, queue.EnqueueParams{Type: queue.TypeEventApproved})

	rec, env := f.do(t, http.MethodGet, "/emails?status=pending&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]queue.QueuedEmail](t, env.Data), 2)
	assert.EqualValues(t, 3, env.Meta["total"])
	assert.EqualValues(t, 2, env.Meta["limit"])

	rec, env = f.do(t, http.MethodGet, "/emails?status=draft,pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, env.Meta["total"])

	rec, _ = f.do(t, http.MethodGet, "/emails?created_after=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUpdateDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.add(t, queue.EnqueueParams{})

	rec, env := f.do(t, http.MethodGet, "/emails/"+e.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, e.ID, decode[queue.QueuedEmail](t, env.Data).ID)

	rec, env = f.do(t, http.MethodPatch, "/emails/"+e.ID.String(), `{"subject":"Regatta moved to Sunday"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Regatta moved to Sunday", decode[queue.QueuedEmail](t, env.Data).Subject)

	rec, _ = f.do(t, http.MethodDelete, "/emails/"+e.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = f.do(t, http.MethodGet, "/emails/"+e.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)

	rec, _ = f.do(t, http.MethodGet, "/emails/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApproveReject(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	approved := f.add(t, queue.EnqueueParams{Type: queue.TypeEventApproved})
	rejected := f.add(t, queue.EnqueueParams{Type: queue.TypeEventApproved})

	rec, env := f.do(t, http.MethodPost, "/emails/"+approved.ID.String()+"/approve", "", "X-Admin-Actor", "chair")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[queue.QueuedEmail](t, env.Data)
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Equal(t, "chair", got.ApprovedBy)

	rec, env = f.do(t, http.MethodPost, "/emails/"+rejected.ID.String()+"/reject", `{"by":"treasurer","reason":"duplicate notice"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decode[queue.QueuedEmail](t, env.Data)
	assert.Equal(t, queue.StatusDraft, got.Status)
	assert.Equal(t, "treasurer", got.RejectedBy)
	assert.Equal(t, "duplicate notice", got.RejectionReason)

	rec, env = f.do(t, http.MethodPost, "/emails/"+rejected.ID.String()+"/approve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "conflict", env.Error.Code)
}

func TestDeliverAndCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.add(t, queue.EnqueueParams{})

	rec, env := f.do(t, http.MethodPost, "/emails/"+e.ID.String()+"/deliver", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[map[string]any](t, env.Data)
	assert.Equal(t, "sent", res["status"])
	assert.Equal(t, "pm-1", res["provider_message_id"])

	rec, _ = f.do(t, http.MethodPost, "/emails/"+e.ID.String()+"/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = f.do(t, http.MethodGet, "/emails/"+e.ID.String()+"/tracking", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[tracking.DeliveryStats](t, env.Data)
	assert.Len(t, stats.Attempts, 1)

	pending := f.add(t, queue.EnqueueParams{})
	rec, env = f.do(t, http.MethodPost, "/emails/"+pending.ID.String()+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, queue.StatusCancelled, decode[queue.QueuedEmail](t, env.Data).Status)
}

func TestDeliver_ProviderFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.failing.Store(true)
	e := f.add(t, queue.EnqueueParams{})

	rec, env := f.do(t, http.MethodPost, "/emails/"+e.ID.String()+"/deliver", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[map[string]any](t, env.Data)
	assert.EqualValues(t, 1, res["attempts"])
	assert.Contains(t, res["error"], "upstream unavailable")

	rec, _ = f.do(t, http.MethodPost, "/emails/"+uuid.NewString()+"/deliver", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkOperations(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.add(t, queue.EnqueueParams{})
	b := f.add(t, queue.EnqueueParams{})
	unknown := uuid.New()

	body := fmt.Sprintf(`{"ids":[%q,%q],"patch":{"priority":75}}`, a.ID, unknown)
	rec, env := f.do(t, http.MethodPost, "/emails/bulk-update", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[map[string]any](t, env.Data)
	assert.EqualValues(t, 1, res["success_count"])
	assert.EqualValues(t, 1, res["failure_count"])

	body = fmt.Sprintf(`{"ids":[%q,%q]}`, a.ID, b.ID)
	rec, env = f.do(t, http.MethodPost, "/emails/bulk-delete", body)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[map[string]any](t, env.Data)
	assert.EqualValues(t, 2, res["success_count"])
	assert.NotContains(t, res, "failures")

	rec, _ = f.do(t, http.MethodPost, "/emails/bulk-delete", `{"ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/emails/bulk-update", fmt.Sprintf(`{"ids":[%q]}`, a.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDuplicate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.add(t, queue.EnqueueParams{Subject: "Club night"})

	rec, env := f.do(t, http.MethodPost, "/emails/"+e.ID.String()+"/duplicate", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dup := decode[queue.QueuedEmail](t, env.Data)
	assert.NotEqual(t, e.ID, dup.ID)
	assert.Equal(t, "Club night", dup.Subject)
}

func TestProcessQueueAndStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.add(t, queue.EnqueueParams{})
	f.add(t, queue.EnqueueParams{})

	rec, env := f.do(t, http.MethodPost, "/queue/process", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cycle := decode[dispatcher.CycleResult](t, env.Data)
	assert.Equal(t, 2, cycle.Sent)

	rec, env = f.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, env.Data)
	assert.NotEmpty(t, stats)

	rec, env = f.do(t, http.MethodGet, "/queue/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[queue.Config](t, env.Data)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestAuditRoutes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.add(t, queue.EnqueueParams{Type: queue.TypeEventApproved})
	rec, _ := f.do(t, http.MethodPost, "/emails/"+e.ID.String()+"/approve", `{"by":"chair"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := f.do(t, http.MethodGet, "/emails/"+e.ID.String()+"/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]audit.Entry](t, env.Data)
	require.NotEmpty(t, entries)

	rec, env = f.do(t, http.MethodGet, "/audit?actor=chair", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, env.Meta["total"])

	rec, env = f.do(t, http.MethodGet, "/audit/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, env.Data)["valid"])
}

func TestPostmarkWebhook(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.add(t, queue.EnqueueParams{})

	post := func(payload string, auth bool) (*httptest.ResponseRecorder, envelope) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/postmark", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		if auth {
			req.SetBasicAuth("postmark", "hook")
		}
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		var env envelope
		if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		}
		return rec, env
	}

	delivery := fmt.Sprintf(`{"RecordType":"Delivery","MessageID":"883953f4","Metadata":{"email_id":%q},"Recipient":"secretary@club.example","DeliveredAt":"2025-05-06T09:01:00Z"}`, e.ID)

	rec, _ := post(delivery, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := post(delivery, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[map[string]any](t, env.Data)
	assert.Equal(t, e.ID.String(), got["email_id"])
	assert.Equal(t, "event", got["kind"])

	rec, env = post(`{"RecordType":"Delivery","MessageID":"x","Metadata":{}}`, true)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, decode[map[string]any](t, env.Data)["ignored"])

	rec, _ = post(`{"RecordType":`, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(epoch)
	store := ratelimiter.NewMemoryStore(
		ratelimiter.WithMemoryClock(clk),
		ratelimiter.WithCleanupInterval(0))
	limiter, err := ratelimiter.NewBucket(store, ratelimiter.PerInterval(1, time.Minute), ratelimiter.WithClock(clk))
	require.NoError(t, err)

	f := newFixture(t, adminapi.WithRateLimiter(limiter))

	rec, _ := f.do(t, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
