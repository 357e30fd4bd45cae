package queue

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType classifies a queued email. Approval policy is keyed by type.
type MessageType string

const (
	TypeEventRequestConfirmation MessageType = "event_request_confirmation"
	TypeEventApproved            MessageType = "event_approved"
	TypeEventRejected            MessageType = "event_rejected"
	TypeEventReminder            MessageType = "event_reminder"
	TypeAdminAlert               MessageType = "admin_alert"
	TypeCustom                   MessageType = "custom"
)

// Priority represents email priority (0-100, higher is sent first)
type Priority int8

const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityMedium  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
	PriorityDefault Priority = PriorityMedium
)

// Valid checks if the priority is within valid range
func (p Priority) Valid() bool {
	return p >= PriorityMin && p <= PriorityMax
}

// Attachment is either inline Content or a Reference (s3://bucket/key, file://path)
// resolved at dispatch time.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Content     []byte `json:"content,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

// QueuedEmail is one unit of outbound work.
type QueuedEmail struct {
	ID       uuid.UUID   `json:"id"`
	Status   Status      `json:"status"`
	Type     MessageType `json:"type"`
	Priority Priority    `json:"priority"`

	To  []string `json:"to"`
	CC  []string `json:"cc,omitempty"`
	BCC []string `json:"bcc,omitempty"`

	Subject      string            `json:"subject"`
	HTMLBody     string            `json:"html_body,omitempty"`
	TextBody     string            `json:"text_body,omitempty"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Attachments  []Attachment      `json:"attachments,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	RetryCount        int        `json:"retry_count"`
	MaxRetries        int        `json:"max_retries"`
	LastError         string     `json:"last_error,omitempty"`
	ScheduledFor      *time.Time `json:"scheduled_for,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`

	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	ClaimedBy    string     `json:"claimed_by,omitempty"`
	ClaimedUntil *time.Time `json:"claimed_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Recipients returns to, cc and bcc addresses in that order.
func (e *QueuedEmail) Recipients() []string {
	out := make([]string, 0, len(e.To)+len(e.CC)+len(e.BCC))
	out = append(out, e.To...)
	out = append(out, e.CC...)
	return append(out, e.BCC...)
}

// IsClaimed reports whether a worker holds an unexpired claim at now.
func (e *QueuedEmail) IsClaimed(now time.Time) bool {
	return e.ClaimedBy != "" && e.ClaimedUntil != nil && e.ClaimedUntil.After(now)
}

// IsDue reports whether the email may be dispatched at now.
func (e *QueuedEmail) IsDue(now time.Time) bool {
	return e.ScheduledFor == nil || !e.ScheduledFor.After(now)
}

// Clone returns a deep copy.
func (e *QueuedEmail) Clone() *QueuedEmail {
	if e == nil {
		return nil
	}
	c := *e
	c.To = slices.Clone(e.To)
	c.CC = slices.Clone(e.CC)
	c.BCC = slices.Clone(e.BCC)
	c.TemplateData = maps.Clone(e.TemplateData)
	c.Metadata = maps.Clone(e.Metadata)
	if e.Attachments != nil {
		c.Attachments = make([]Attachment, len(e.Attachments))
		for i, a := range e.Attachments {
			a.Content = slices.Clone(a.Content)
			c.Attachments[i] = a
		}
	}
	c.ScheduledFor = cloneTime(e.ScheduledFor)
	c.SentAt = cloneTime(e.SentAt)
	c.ApprovedAt = cloneTime(e.ApprovedAt)
	c.RejectedAt = cloneTime(e.RejectedAt)
	c.ClaimedUntil = cloneTime(e.ClaimedUntil)
	return &c
}

// EnqueueParams is the input of Service.Add.
type EnqueueParams struct {
	To           []string          `json:"to"`
	CC           []string          `json:"cc,omitempty"`
	BCC          []string          `json:"bcc,omitempty"`
	Subject      string            `json:"subject,omitempty"`
	HTMLBody     string            `json:"html_body,omitempty"`
	TextBody     string            `json:"text_body,omitempty"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Attachments  []Attachment      `json:"attachments,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Type         MessageType       `json:"type,omitempty"`
	Priority     *Priority         `json:"priority,omitempty"`
	ScheduledFor *time.Time        `json:"scheduled_for,omitempty"`

	// SkipApproval forces the pending path regardless of policy. Used for admin alerts.
	SkipApproval bool `json:"-"`
}

// Filter narrows List and Count. Zero fields match everything.
type Filter struct {
	Statuses      []Status    `json:"statuses,omitempty"`
	Type          MessageType `json:"type,omitempty"`
	Recipient     string      `json:"recipient,omitempty"`
	CreatedAfter  time.Time   `json:"created_after,omitzero"`
	CreatedBefore time.Time   `json:"created_before,omitzero"`
	Search        string      `json:"search,omitempty"`
	Limit         int         `json:"limit,omitempty"`
	Offset        int         `json:"offset,omitempty"`
}

// Match reports whether e satisfies the filter, ignoring Limit and Offset.
func (f Filter) Match(e *QueuedEmail) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, e.Status) {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Recipient != "" && !slices.Contains(e.Recipients(), normalizeAddress(f.Recipient)) {
		return false
	}
	if !f.CreatedAfter.IsZero() && e.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !e.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Subject), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// Less orders records for dispatch: priority desc, scheduledFor asc with
// unscheduled first, createdAt asc.
func Less(a, b *QueuedEmail) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	switch {
	case a.ScheduledFor == nil && b.ScheduledFor != nil:
		return true
	case a.ScheduledFor != nil && b.ScheduledFor == nil:
		return false
	case a.ScheduledFor != nil && !a.ScheduledFor.Equal(*b.ScheduledFor):
		return a.ScheduledFor.Before(*b.ScheduledFor)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// BulkItem is the outcome for one id of a bulk operation.
type BulkItem struct {
	ID  uuid.UUID `json:"id"`
	Err error     `json:"-"`
}

// BulkResult reports per-item outcomes of BulkDelete and BulkUpdate.
type BulkResult struct {
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	Items        []BulkItem `json:"items"`
}

// Failed returns the ids whose operation failed.
func (r BulkResult) Failed() []uuid.UUID {
	var ids []uuid.UUID
	for _, it := range r.Items {
		if it.Err != nil {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func (r *BulkResult) add(id uuid.UUID, err error) {
	r.Items = append(r.Items, BulkItem{ID: id, Err: err})
	if err != nil {
		r.FailureCount++
		return
	}
	r.SuccessCount++
}

// StatsWindow holds the period starts used for created-since counts.
type StatsWindow struct {
	Day   time.Time
	Week  time.Time
	Month time.Time
}

// Stats summarizes the queue.
type Stats struct {
	ByStatus          map[Status]int `json:"by_status"`
	Total             int            `json:"total"`
	Today             int            `json:"today"`
	ThisWeek          int            `json:"this_week"`
	ThisMonth         int            `json:"this_month"`
	AvgProcessingTime time.Duration  `json:"avg_processing_time"`
	SuccessRate       float64        `json:"success_rate"`
}

// Backlog is the number of records counted against MaxQueueSize.
func (s Stats) Backlog() int {
	return s.ByStatus[StatusPending] + s.ByStatus[StatusDraft]
}

// StatsAccumulator folds records into Stats. Storages without aggregate
// queries feed every record through Add.
type StatsAccumulator struct {
	window    StatsWindow
	stats     Stats
	processed time.Duration
	sentTimed int
}

// NewStatsAccumulator starts an empty summary for the given window.
func NewStatsAccumulator(w StatsWindow) *StatsAccumulator {
	return &StatsAccumulator{window: w, stats: Stats{ByStatus: make(map[Status]int)}}
}

func (a *StatsAccumulator) Add(e *QueuedEmail) {
	a.stats.ByStatus[e.Status]++
	a.stats.Total++
	if !e.CreatedAt.Before(a.window.Day) {
		a.stats.Today++
	}
	if !e.CreatedAt.Before(a.window.Week) {
		a.stats.ThisWeek++
	}
	if !e.CreatedAt.Before(a.window.Month) {
		a.stats.ThisMonth++
	}
	if e.Status == StatusSent && e.SentAt != nil {
		a.processed += e.SentAt.Sub(e.CreatedAt)
		a.sentTimed++
	}
}

// Result finalizes the summary.
func (a *StatsAccumulator) Result() Stats {
	s := a.stats
	if a.sentTimed > 0 {
		s.AvgProcessingTime = a.processed / time.Duration(a.sentTimed)
	}
	s.SuccessRate = successRate(s.ByStatus[StatusSent], s.ByStatus[StatusFailed])
	return s
}

func successRate(sent, failed int) float64 {
	if sent+failed == 0 {
		return 0
	}
	return float64(sent) / float64(sent+failed)
}

// WindowAt returns the day, ISO week (Monday) and month starts containing now.
func WindowAt(now time.Time) StatsWindow {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return StatsWindow{
		Day:   day,
		Week:  day.AddDate(0, 0, -offset),
		Month: time.Date(y, m, 1, 0, 0, 0, 0, now.Location()),
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func normalizeAddresses(list []string) []string {
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		if a = normalizeAddress(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
