// Package opensearch connects to the OpenSearch cluster that mirrors the
// audit trail for free-text search from the admin API.
//
// The mirror is optional: Config.Enabled is false without addresses and the
// binary then keeps the trail in MongoDB only.
//
//	if cfg.OpenSearch.Enabled() {
//		client, err := opensearch.New(ctx, cfg.OpenSearch)
//		if err != nil {
//			return err
//		}
//		indexer := audit.NewSearchIndexer(client, cfg.OpenSearch.AuditIndex)
//		store = audit.NewMirroredStorage(store, indexer, log)
//	}
//
// New fails with ErrConnectionFailed or ErrHealthcheckFailed; test them with
// errors.Is.
package opensearch
