package notify

import (
	"context"
	"strings"
	"sync"
	"time"
)

// IdempotencyGuard suppresses repeated trigger invocations. pkg/redis.Guard
// satisfies it.
type IdempotencyGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryGuard is a process-local IdempotencyGuard.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryGuard{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, ok := g.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.seen[key] = now.Add(g.ttl)

	// opportunistic sweep keeps the map bounded by live keys
	for k, exp := range g.seen {
		if !now.Before(exp) {
			delete(g.seen, k)
		}
	}
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.seen, key)
	g.mu.Unlock()
	return nil
}

// idempotencyKey joins event type, entity ids and status into a guard key.
func idempotencyKey(parts ...string) string {
	return strings.Join(parts, ":")
}
