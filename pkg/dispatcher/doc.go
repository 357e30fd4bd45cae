// Package dispatcher delivers queued emails through an email.Sender.
//
// Every delivery starts with a claim on the record (see queue.Storage.Claim)
// so concurrent workers and processes never send the same email twice. A
// claimed email is then:
//
//  1. checked recipient by recipient; invalid addresses are dropped and
//     reported in DeliveryResult.InvalidRecipients while the rest still
//     receive the message,
//  2. rendered from its template when it has one,
//  3. assembled with its attachments, resolving stored references,
//  4. measured against the policy's MaxMessageSize before the provider is
//     involved (*SizeLimitError),
//  5. admitted by the process-wide token bucket keyed ProviderKey, after
//     which the claim is renewed (queue.ErrClaimLost if another worker took it),
//  6. handed to the provider under ProviderTimeout.
//
// An oversized email is never sent. Direct calls leave its record untouched;
// ProcessQueue and Pool park it as pending with ScheduledFor moved out by
// OversizedRecheck, alerting admins on the first refusal only.
//
// The outcome is written back through queue.Service.Mutate: sent, pending
// again with a backoff schedule when the failure is transient and retries
// remain, or failed. Each attempt appends exactly one audit entry and one
// tracking record.
//
// # Entry points
//
//   - DeliverOne: a single attempt for one id, refusing with *RateLimitError
//     instead of waiting when the provider budget is spent.
//   - DeliverWithRetry: attempts one id until it settles, sleeping on the
//     dispatcher clock between attempts.
//   - DeliverBatch: paced fan-out over a list of ids.
//   - ProcessQueue: one "process now" cycle over every due email.
//   - Pool: a fixed-size worker pool that keeps claiming due emails.
//
// The policy (queue.Config) is read at the start of every cycle, so edits to
// retries, rate or size limits apply without restarting workers.
//
// # Usage
//
//	d, err := dispatcher.New(queueService, dispatcher.Config{From: "events@federation.example"},
//		dispatcher.WithSender(sender),
//		dispatcher.WithAuditor(auditLog),
//		dispatcher.WithRecorder(tracker),
//	)
//	if err != nil {
//		return err
//	}
//
//	pool, err := dispatcher.NewPool(d, dispatcher.WithWorkers(4))
//	if err != nil {
//		return err
//	}
//	g.Go(pool.Run(ctx))
package dispatcher
