package adminapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/audit"
	"github.com/dmitrymomot/mailqueue/pkg/binder"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/tracking"
)

type auditRequest struct {
	EmailID   uuid.UUID      `query:"email_id"`
	Statuses  []audit.Status `query:"status"`
	Recipient string         `query:"recipient"`
	Actor     string         `query:"actor"`
	Since     time.Time      `query:"since"`
	Until     time.Time      `query:"until"`
	Search    string         `query:"search"`
	Limit     int            `query:"limit"`
	Offset    int            `query:"offset"`
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type webhookRequest struct {
	Payload []byte
}

type webhookResponse struct {
	EmailID uuid.UUID           `json:"email_id,omitzero"`
	Kind    tracking.RecordKind `json:"kind,omitempty"`
	Ignored string              `json:"ignored,omitempty"`
}

func (a *API) stats(ctx Context, _ struct{}) Response {
	if a.tracker != nil {
		stats, err := a.tracker.QueueStats(ctx)
		if err != nil {
			return fail(err)
		}
		return JSON(stats)
	}
	stats, err := a.queue.Stats(ctx)
	if err != nil {
		return fail(err)
	}
	return JSON(stats)
}

func (a *API) queueConfig(ctx Context, _ struct{}) Response {
	cfg, err := a.queue.Config(ctx)
	if err != nil {
		return fail(err)
	}
	return JSON(cfg)
}

func (a *API) emailTracking(ctx Context, req emailRequest) Response {
	stats, err := a.tracker.GetStats(ctx, req.ID)
	if err != nil {
		return fail(err)
	}
	return JSON(stats)
}

func (a *API) emailAudit(ctx Context, req emailRequest) Response {
	entries, err := a.audit.Find(ctx, audit.Filter{EmailID: req.ID})
	if err != nil {
		return fail(err)
	}
	return JSON(entries)
}

func (a *API) findAudit(ctx Context, req auditRequest) Response {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	f := audit.Filter{
		EmailID:   req.EmailID,
		Statuses:  req.Statuses,
		Recipient: req.Recipient,
		Actor:     req.Actor,
		Since:     req.Since,
		Until:     req.Until,
		Search:    req.Search,
	}
	total, err := a.audit.Count(ctx, f)
	if err != nil {
		return fail(err)
	}

	f.Limit, f.Offset = min(limit, maxListLimit), max(req.Offset, 0)
	entries, err := a.audit.Find(ctx, f)
	if err != nil {
		return fail(err)
	}
	return JSON(entries, WithMeta(map[string]any{
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	}))
}

func (a *API) verifyAudit(ctx Context, _ struct{}) Response {
	err := a.audit.Verify(ctx)
	switch {
	case err == nil:
		return JSON(verifyResponse{Valid: true})
	case errors.Is(err, audit.ErrChainBroken):
		a.log.WarnContext(ctx, "audit chain verification failed", logger.Error(err))
		return JSON(verifyResponse{Valid: false, Error: err.Error()})
	default:
		return fail(err)
	}
}

// postmarkWebhook records a provider notification. Payloads that reference
// no queued email or carry an unsupported record type are acknowledged and
// dropped so the provider does not redeliver them.
func (a *API) postmarkWebhook(ctx Context, req webhookRequest) Response {
	n, err := a.webhook.HandlePostmark(ctx, req.Payload)
	switch {
	case err == nil:
		return JSON(webhookResponse{EmailID: n.EmailID, Kind: n.Kind})
	case errors.Is(err, tracking.ErrUnknownEmail), errors.Is(err, tracking.ErrUnsupportedEvent):
		a.log.WarnContext(ctx, "postmark webhook ignored", logger.Error(err))
		return JSON(webhookResponse{Ignored: err.Error()}, WithStatus(http.StatusAccepted))
	default:
		return fail(err)
	}
}

func readPayload(r *http.Request, v any) error {
	req, ok := v.(*webhookRequest)
	if !ok {
		return fmt.Errorf("%w: unexpected target %T", binder.ErrFailedToParseJSON, v)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, binder.DefaultMaxJSONSize+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", binder.ErrFailedToParseJSON, err)
	}
	if len(body) > binder.DefaultMaxJSONSize {
		return fmt.Errorf("%w: body larger than %d bytes", binder.ErrFailedToParseJSON, binder.DefaultMaxJSONSize)
	}
	req.Payload = body
	return nil
}
