// Package redis connects to the Redis server that backs delivery tracking
// and the delivery rate limit shared by every dispatcher instance.
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	tracker, err := tracking.NewTracker(tracking.NewRedisStore(client, tracking.WithKeyPrefix(cfg.Redis.KeyPrefix)), svc)
//
// Connect retries the initial ping; Healthcheck plugs into the readiness
// probe of the admin API. Errors are joined with the sentinels in this
// package so errors.Is works on them.
package redis
