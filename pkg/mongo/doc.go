// Package mongo connects to the MongoDB deployment that stores the audit
// trail.
//
// Configuration comes from the environment (MONGODB_URL, MONGODB_DATABASE
// and pool settings). New retries the initial ping because Atlas clusters
// often need a few seconds after a failover:
//
//	db, err := mongo.NewWithDatabase(ctx, cfg.Mongo)
//	if err != nil {
//		return err
//	}
//	store, err := audit.NewMongoStorage(db.Collection(cfg.Mongo.AuditCollection))
//
// Healthcheck returns a probe for the admin API readiness route.
package mongo
