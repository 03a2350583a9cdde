package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounterWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	counter := NewMemoryCounter(func() time.Time { return now })
	ctx := context.Background()

	count, ttl, err := counter.Incr(ctx, "u1", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 24*time.Hour, ttl)

	now = now.Add(time.Hour)
	count, ttl, err = counter.Incr(ctx, "u1", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 23*time.Hour, ttl)

	count, _, _ = counter.Incr(ctx, "u2", 24*time.Hour)
	assert.Equal(t, int64(1), count, "keys are independent")

	now = now.Add(23 * time.Hour)
	count, _, _ = counter.Incr(ctx, "u1", 24*time.Hour)
	assert.Equal(t, int64(1), count, "window restarts once elapsed")
}

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	_, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, q.Push(ctx, []byte("a")))
	require.NoError(t, q.Push(ctx, []byte("b")))
	n, _ := q.Len(ctx)
	assert.Equal(t, int64(2), n)

	first, ok, _ := q.Pop(ctx)
	assert.True(t, ok)
	assert.Equal(t, "a", string(first))
	second, _, _ := q.Pop(ctx)
	assert.Equal(t, "b", string(second))
}

func TestRedisHandleWithoutClient(t *testing.T) {
	var r *Redis
	assert.ErrorIs(t, r.Ping(context.Background()), ErrRedisDisabled)
	assert.NotPanics(t, r.Close)
	assert.ErrorIs(t, (&Redis{}).Ping(context.Background()), ErrRedisDisabled)
}
