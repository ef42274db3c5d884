package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "test:"), mr
}

func TestAllow_WithinLimit(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "user-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "user-1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	_, err := l.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	d, err := l.Allow(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAllow_WindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	_, err := l.Allow(ctx, "user-1", 1, time.Second)
	require.NoError(t, err)
	d, _ := l.Allow(ctx, "user-1", 1, time.Second)
	assert.False(t, d.Allowed)

	mr.FastForward(2 * time.Second)

	d, err = l.Allow(ctx, "user-1", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAllow_NilClientFailsOpen(t *testing.T) {
	l := New(nil, "")
	d, err := l.Allow(context.Background(), "x", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
