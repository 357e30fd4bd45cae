// Package tracking keeps the delivery history of each queued email: dispatch
// attempts, provider events (delivered, opened, clicked), bounces and
// complaints.
//
// Tracker validates and timestamps records before handing them to a Store.
// MemoryStore suits tests and single-process runs; RedisStore appends to a
// list per email and maintains global counters in a hash with one Lua call.
//
// Bounces keep the provider's classification (permanent or transient) and
// complaints their feedback category (abuse or other). GetStats folds one
// history into DeliveryStats; QueueStats adds bounce and complaint totals to
// the queue summary.
//
// Webhook turns Postmark webhook bodies into records. The dispatcher stores
// the queued email id in message metadata under MetadataEmailID and Postmark
// echoes it back, which is how a bounce finds its email.
//
//	tracker, err := tracking.NewTracker(tracking.NewRedisStore(rdb), queueSvc)
//	if err != nil {
//		return err
//	}
//	hook := tracking.NewWebhook(tracker)
//	n, err := hook.HandlePostmark(ctx, body)
package tracking
