package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowCounter counts hits per key inside a fixed window that starts at the first hit.
type WindowCounter interface {
	// Incr records one hit and returns the count so far and the time left in the window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type redisCounter struct {
	client *redis.Client
}

// NewRedisCounter returns a counter using INCR with an expiry set on the first hit.
func NewRedisCounter(client *redis.Client) WindowCounter {
	return &redisCounter{client: client}
}

func (c *redisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return count, window, err
		}
		return count, window, nil
	}
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return count, 0, err
	}
	if ttl < 0 {
		// The expiry was lost (crash between INCR and EXPIRE); restart the window.
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return count, window, err
		}
		ttl = window
	}
	return count, ttl, nil
}

type memoryCounter struct {
	mu      sync.Mutex
	clock   func() time.Time
	entries map[string]*counterEntry
}

type counterEntry struct {
	count   int64
	resetAt time.Time
}

// NewMemoryCounter returns a process-local counter.
func NewMemoryCounter(clock func() time.Time) WindowCounter {
	if clock == nil {
		clock = time.Now
	}
	return &memoryCounter{clock: clock, entries: make(map[string]*counterEntry)}
}

func (c *memoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	entry, ok := c.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &counterEntry{resetAt: now.Add(window)}
		c.entries[key] = entry
	}
	entry.count++
	return entry.count, entry.resetAt.Sub(now), nil
}
