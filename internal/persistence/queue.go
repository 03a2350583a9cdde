package persistence

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// JobQueue is a FIFO of opaque job payloads.
type JobQueue interface {
	Push(ctx context.Context, payload []byte) error
	// Pop returns ok=false when the queue is empty.
	Pop(ctx context.Context) (payload []byte, ok bool, err error)
	Len(ctx context.Context) (int64, error)
}

type redisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue stores jobs in a Redis list: LPUSH to enqueue, RPOP to dequeue.
func NewRedisQueue(client *redis.Client, key string) JobQueue {
	return &redisQueue{client: client, key: key}
}

func (q *redisQueue) Push(ctx context.Context, payload []byte) error {
	return q.client.LPush(ctx, q.key, payload).Err()
}

func (q *redisQueue) Pop(ctx context.Context) ([]byte, bool, error) {
	payload, err := q.client.RPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (q *redisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

type memoryQueue struct {
	mu    sync.Mutex
	items [][]byte
}

// NewMemoryQueue returns a process-local queue.
func NewMemoryQueue() JobQueue {
	return &memoryQueue{}
}

func (q *memoryQueue) Push(_ context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, append([]byte(nil), payload...))
	return nil
}

func (q *memoryQueue) Pop(_ context.Context) ([]byte, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false, nil
	}
	payload := q.items[0]
	q.items = q.items[1:]
	return payload, true, nil
}

func (q *memoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}
