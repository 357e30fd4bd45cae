// Package audit records the append-only delivery trail of the email queue.
//
// Every send attempt, approval and manual retry produces one Entry. Entries are
// never modified; the only way to remove them is Log.Prune, which deletes
// entries older than the configured retention.
//
// # Architecture
//
//   - Log assigns a sequence number, timestamp and chain hash to each entry
//     before handing it to Storage.
//   - Storage persists entries. MemoryStorage serves tests and development,
//     MongoStorage serves production.
//   - AsyncWriter batches writes in front of a slow Storage.
//   - MirroredStorage copies written entries to a BatchWriter such as
//     SearchIndexer, which feeds an OpenSearch index used for free-text search.
//
// # Hash chain
//
// Each entry stores the hash of its predecessor in PrevHash, and its own Hash
// covers its content plus PrevHash. VerifyChain walks entries in Seq order and
// reports ErrChainBroken on the first mismatch. The first entry's PrevHash is
// taken on trust, so a pruned trail still verifies.
//
// # Usage
//
//	store := audit.NewMemoryStorage()
//	log, err := audit.NewLog(store, audit.WithClock(clk))
//	if err != nil {
//		return err
//	}
//
//	err = log.Append(ctx, audit.Entry{
//		EmailID:    email.ID,
//		Status:     audit.StatusSuccess,
//		Subject:    email.Subject,
//		Recipients: email.Recipients(),
//		Attempt:    1,
//	})
//
//	entries, err := log.Find(ctx, audit.Filter{EmailID: email.ID})
//
// # Error Handling
//
// Storage failures wrap ErrStorageNotAvailable or ErrStorageTimeout; malformed
// entries return ErrInvalidEntry. Use errors.Is to check.
package audit
