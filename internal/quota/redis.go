package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ppiankov/herbia/internal/logger"
)

// RedisKeyPrefix namespaces the per-day counters
const RedisKeyPrefix = "herbia:quota:"

// RedisCounter shares counters across server instances
type RedisCounter struct {
	rdb *goredis.Client
	log *logger.Logger
}

// NewRedisCounter connects and pings the server
func NewRedisCounter(ctx context.Context, addr string, log *logger.Logger) (*RedisCounter, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisCounterFromClient(rdb, log), nil
}

// NewRedisCounterFromClient wraps an existing client
func NewRedisCounterFromClient(rdb *goredis.Client, log *logger.Logger) *RedisCounter {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisCounter{rdb: rdb, log: log.With("component", "quota", "backend", "redis")}
}

func (r *RedisCounter) Increment(ctx context.Context, day string) (int64, error) {
	key := RedisKeyPrefix + day

	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, expiry(day))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (r *RedisCounter) Count(ctx context.Context, day string) (int64, error) {
	key := RedisKeyPrefix + day
	n, err := r.rdb.Get(ctx, key).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return n, nil
}

func (r *RedisCounter) Close() error {
	return r.rdb.Close()
}
