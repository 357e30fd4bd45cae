package adminapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/dispatcher"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type emailRequest struct {
	ID uuid.UUID `path:"id" json:"-"`
}

type listRequest struct {
	Statuses      []queue.Status    `query:"status"`
	Type          queue.MessageType `query:"type"`
	Recipient     string            `query:"recipient"`
	Search        string            `query:"search"`
	CreatedAfter  time.Time         `query:"created_after"`
	CreatedBefore time.Time         `query:"created_before"`
	Limit         int               `query:"limit"`
	Offset        int               `query:"offset"`
}

type updateRequest struct {
	ID uuid.UUID `path:"id" json:"-"`
	queue.Patch
}

type bulkRequest struct {
	IDs   []uuid.UUID  `json:"ids"`
	Patch *queue.Patch `json:"patch,omitempty"`
}

type duplicateRequest struct {
	ID             uuid.UUID `path:"id" json:"-"`
	ResetToPending bool      `json:"reset_to_pending"`
}

type actorRequest struct {
	ID uuid.UUID `path:"id" json:"-"`
	By string    `json:"by"`
}

type rejectRequest struct {
	ID     uuid.UUID `path:"id" json:"-"`
	By     string    `json:"by"`
	Reason string    `json:"reason"`
}

type bulkResponse struct {
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	Failures     []bulkFailure `json:"failures,omitempty"`
}

type bulkFailure struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

type deliveryResponse struct {
	EmailID           uuid.UUID    `json:"email_id"`
	Status            queue.Status `json:"status"`
	ProviderMessageID string       `json:"provider_message_id,omitempty"`
	InvalidRecipients []string     `json:"invalid_recipients,omitempty"`
	Attempts          int          `json:"attempts"`
	RetryAt           *time.Time   `json:"retry_at,omitempty"`
	Error             string       `json:"error,omitempty"`
}

func (a *API) listEmails(ctx Context, req listRequest) Response {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	f := queue.Filter{
		Statuses:      req.Statuses,
		Type:          req.Type,
		Recipient:     req.Recipient,
		Search:        req.Search,
		CreatedAfter:  req.CreatedAfter,
		CreatedBefore: req.CreatedBefore,
	}
	total, err := a.queue.Count(ctx, f)
	if err != nil {
		return fail(err)
	}

	f.Limit, f.Offset = limit, max(req.Offset, 0)
	emails, err := a.queue.List(ctx, f)
	if err != nil {
		return fail(err)
	}
	return JSON(emails, WithMeta(map[string]any{
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	}))
}

func (a *API) enqueue(ctx Context, req queue.EnqueueParams) Response {
	e, err := a.queue.Add(ctx, req)
	if err != nil {
		return fail(err)
	}
	return JSON(e, WithStatus(http.StatusCreated))
}

func (a *API) getEmail(ctx Context, req emailRequest) Response {
	e, err := a.queue.Get(ctx, req.ID)
	if err != nil {
		return fail(err)
	}
	return JSON(e)
}

func (a *API) updateEmail(ctx Context, req updateRequest) Response {
	e, err := a.queue.Update(ctx, req.ID, req.Patch)
	if err != nil {
		return fail(err)
	}
	return JSON(e)
}

func (a *API) deleteEmail(ctx Context, req emailRequest) Response {
	if err := a.queue.Delete(ctx, req.ID); err != nil {
		return fail(err)
	}
	return Empty()
}

func (a *API) bulkDelete(ctx Context, req bulkRequest) Response {
	res, err := a.queue.BulkDelete(ctx, req.IDs)
	if err != nil {
		return fail(err)
	}
	return JSON(newBulkResponse(res))
}

func (a *API) bulkUpdate(ctx Context, req bulkRequest) Response {
	if req.Patch == nil {
		return fail(ErrBadRequest)
	}
	res, err := a.queue.BulkUpdate(ctx, req.IDs, *req.Patch)
	if err != nil {
		return fail(err)
	}
	return JSON(newBulkResponse(res))
}

func (a *API) duplicate(ctx Context, req duplicateRequest) Response {
	e, err := a.queue.Duplicate(ctx, req.ID, req.ResetToPending)
	if err != nil {
		return fail(err)
	}
	return JSON(e, WithStatus(http.StatusCreated))
}

func (a *API) approve(ctx Context, req actorRequest) Response {
	e, err := a.queue.Approve(ctx, req.ID, a.actor(ctx, req.By))
	if err != nil {
		return fail(err)
	}
	return JSON(e)
}

func (a *API) reject(ctx Context, req rejectRequest) Response {
	e, err := a.queue.Reject(ctx, req.ID, a.actor(ctx, req.By), req.Reason)
	if err != nil {
		return fail(err)
	}
	return JSON(e)
}

func (a *API) cancel(ctx Context, req emailRequest) Response {
	if err := a.dispatcher.Cancel(ctx, req.ID); err != nil {
		return fail(err)
	}
	e, err := a.queue.Get(ctx, req.ID)
	if err != nil {
		return fail(err)
	}
	return JSON(e)
}

func (a *API) retry(ctx Context, req actorRequest) Response {
	e, err := a.queue.Retry(ctx, req.ID, a.actor(ctx, req.By))
	if err != nil {
		return fail(err)
	}
	return JSON(e)
}

// deliver sends one email now. A refused claim, rate limit or size limit is
// an error response; a provider failure is a 200 describing the attempt.
func (a *API) deliver(ctx Context, req emailRequest) Response {
	res, err := a.dispatcher.DeliverOne(ctx, req.ID)
	if err != nil && res.Attempts == 0 {
		return fail(err)
	}
	return JSON(newDeliveryResponse(res))
}

func (a *API) processQueue(ctx Context, _ struct{}) Response {
	res, err := a.dispatcher.ProcessQueue(ctx)
	if err != nil {
		return fail(err)
	}
	return JSON(res)
}

func newBulkResponse(res queue.BulkResult) bulkResponse {
	out := bulkResponse{SuccessCount: res.SuccessCount, FailureCount: res.FailureCount}
	for _, it := range res.Items {
		if it.Err != nil {
			out.Failures = append(out.Failures, bulkFailure{ID: it.ID, Error: it.Err.Error()})
		}
	}
	return out
}

func newDeliveryResponse(res dispatcher.DeliveryResult) deliveryResponse {
	out := deliveryResponse{
		EmailID:           res.EmailID,
		Status:            res.Status,
		ProviderMessageID: res.ProviderMessageID,
		InvalidRecipients: res.InvalidRecipients,
		Attempts:          res.Attempts,
		RetryAt:           res.RetryAt,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}
