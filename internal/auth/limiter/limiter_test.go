package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisLimitsAfterMaxFailures(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewRedis(rdb, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(ctx, "user-1"))
		require.NoError(t, l.Fail(ctx, "user-1"))
	}
	assert.ErrorIs(t, l.Allow(ctx, "user-1"), ErrLimited)
	assert.NoError(t, l.Allow(ctx, "user-2"), "keys are independent")
}

func TestRedisWindowExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRedis(rdb, 2, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Fail(ctx, "k"))
	require.NoError(t, l.Fail(ctx, "k"))
	require.ErrorIs(t, l.Allow(ctx, "k"), ErrLimited)

	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"k"))
	mr.FastForward(time.Minute + time.Second)
	assert.NoError(t, l.Allow(ctx, "k"))
}

func TestRedisResetClearsCounter(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewRedis(rdb, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Fail(ctx, "k"))
	require.ErrorIs(t, l.Allow(ctx, "k"), ErrLimited)
	require.NoError(t, l.Reset(ctx, "k"))
	assert.NoError(t, l.Allow(ctx, "k"))
}

func TestRedisUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRedis(rdb, 0, 0)
	assert.Equal(t, int64(DefaultMaxAttempts), l.maxAttempts)
	assert.Equal(t, DefaultWindow, l.window)

	mr.Close()
	ctx := context.Background()
	assert.ErrorIs(t, l.Allow(ctx, "k"), ErrUnavailable)
	assert.ErrorIs(t, l.Fail(ctx, "k"), ErrUnavailable)
	assert.ErrorIs(t, l.Reset(ctx, "k"), ErrUnavailable)
}

func TestNoop(t *testing.T) {
	var l Limiter = Noop{}
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Fail(ctx, "k"))
	}
	assert.NoError(t, l.Allow(ctx, "k"))
	assert.NoError(t, l.Reset(ctx, "k"))
}
