package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/urbanecho/civic-service/internal/config"
)

const redisDialTimeout = 2 * time.Second

// ErrRedisDisabled is returned by a Redis handle that was never connected.
var ErrRedisDisabled = errors.New("redis not configured")

// Redis holds the client behind the report limiter and the award retry queue.
type Redis struct {
	Client *redis.Client
	addr   string
}

// NewRedis builds the client. An unreachable server is logged and left to readiness.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisDialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, report limiter will fail open",
			zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	}

	return &Redis{Client: client, addr: cfg.Addr}
}

// ReportCounter returns the daily report counter backed by this client.
func (r *Redis) ReportCounter() WindowCounter {
	return NewRedisCounter(r.Client)
}

// AwardQueue returns the coin-award retry list stored under key.
func (r *Redis) AwardQueue(key string) JobQueue {
	return NewRedisQueue(r.Client, key)
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return ErrRedisDisabled
	}
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return errors.Join(errors.New("redis "+r.addr), err)
	}
	return nil
}
