// Package queue stores outbound emails and enforces their lifecycle.
//
// A QueuedEmail moves through a closed set of statuses:
//
//	draft -> pending -> sent | failed | cancelled
//	failed -> pending (while retries remain)
//
// CanTransition is the only place that decides which changes are legal. Every
// write goes through Service, which validates input, applies the approval
// policy, enforces the queue size limit and keeps the audit trail informed.
//
// # Architecture
//
//   - Storage is the persistence contract. MemoryStorage serves tests and
//     single-process deployments; PostgresStorage uses row locks with
//     SKIP LOCKED so several dispatchers can share one table. The schema
//     lives in the migrations subpackage.
//
//   - ConfigSource supplies the delivery policy (retries, backoff, approval
//     rules, limits). The dispatcher reads it at the start of each cycle so a
//     changed policy applies without a restart. StaticConfigSource,
//     MemoryConfigSource and the YAML-backed FileConfigSource are provided.
//
//   - Claims mark a record as held by one worker until ClaimedUntil. Claim
//     picks the next eligible record in dispatch order (priority desc,
//     scheduled time asc with unscheduled first, creation time asc). An
//     expired claim makes the record claimable again.
//
//   - Notifier receives operational alerts: permanent delivery failures,
//     a large backlog, and failure counts crossing a threshold.
//     EmailNotifier turns them into admin_alert emails that skip approval.
//
//   - Janitor runs maintenance jobs on Schedules: it releases expired claims,
//     archives old terminal records and prunes the audit trail.
//
// # Usage
//
//	svc, err := queue.NewService(
//		queue.NewMemoryStorage(),
//		queue.NewFileConfigSource("policy.yaml", queue.DefaultConfig()),
//		queue.WithAuditor(auditLog),
//	)
//	if err != nil {
//		return err
//	}
//
//	e, err := svc.Add(ctx, queue.EnqueueParams{
//		To:         []string{"secretary@club.example"},
//		Type:       queue.TypeEventApproved,
//		TemplateID: "event_approved",
//		TemplateData: map[string]string{"eventName": "Spring Regatta"},
//	})
//
//	// an administrator releases the draft
//	_, err = svc.Approve(ctx, e.ID, "admin@federation.example")
//
// # Error Handling
//
// Sentinel errors (ErrValidation, ErrNotFound, ErrQueueFull,
// ErrAlreadyClaimed, ...) are wrapped with context and checked with
// errors.Is. Rejected status changes return *TransitionError, which unwraps
// to ErrInvalidStateTransition.
package queue
