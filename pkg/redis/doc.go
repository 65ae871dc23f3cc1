// Package redis wraps go-redis/v9 for the notification service: a retrying
// connector, a readiness probe and Guard, a SETNX-based idempotency marker
// used to drop retried trigger events.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	guard := redis.NewGuard(client, cfg.KeyPrefix, 24*time.Hour)
//	first, err := guard.Claim(ctx, "order_created:O1")
package redis
