package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewMemoryGuard(time.Minute)
	g.now = func() time.Time { return now }

	ok, err := g.Claim(ctx, "order_created:O1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = g.Claim(ctx, "order_created:O1")
	assert.False(t, ok, "second claim within ttl")

	ok, _ = g.Claim(ctx, "order_created:O2")
	assert.True(t, ok, "keys are independent")

	require.NoError(t, g.Release(ctx, "order_created:O1"))
	ok, _ = g.Claim(ctx, "order_created:O1")
	assert.True(t, ok, "released key is claimable again")

	now = now.Add(2 * time.Minute)
	ok, _ = g.Claim(ctx, "order_created:O2")
	assert.True(t, ok, "expired key is claimable again")

	ok, _ = g.Claim(ctx, "")
	assert.True(t, ok)
	ok, _ = g.Claim(ctx, "")
	assert.True(t, ok, "empty key is never guarded")
}

func TestIdempotencyKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "order_update:O1:confirmed", idempotencyKey("order_update", "O1", "confirmed"))
}

func TestMemorySource(t *testing.T) {
	t.Parallel()
	s := NewMemorySource().AddZone(Zone{ID: "Z1", Name: "North"})

	z, err := s.GetZone(context.Background(), "Z1")
	require.NoError(t, err)
	assert.Equal(t, "North", z.Name)

	_, err = s.GetOrder(context.Background(), "O1")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}
