package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard records keys that have been seen within a TTL. It backs event
// idempotency: the first Claim of a key wins, repeats within the TTL lose.
type Guard struct {
	db     redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewGuard creates a guard. Keys are stored as prefix + "idem:" + key.
func NewGuard(client redis.UniversalClient, prefix string, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{db: client, prefix: prefix + "idem:", ttl: ttl}
}

// Claim returns true when key was not seen before. Empty keys are always
// claimable.
func (g *Guard) Claim(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}
	ok, err := g.db.SetNX(ctx, g.prefix+key, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, errors.Join(ErrGuardUnavailable, err)
	}
	return ok, nil
}

// Release forgets key so the event can be processed again, e.g. after the
// guarded operation failed.
func (g *Guard) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := g.db.Del(ctx, g.prefix+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errors.Join(ErrGuardUnavailable, err)
	}
	return nil
}
