// Package quota keeps the daily budget of paid external calls.
package quota

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/herbia/internal/logger"
	"github.com/ppiankov/herbia/internal/model"
)

// DayLayout formats the UTC day a counter is keyed on
const DayLayout = "2006-01-02"

// DefaultLimit is the number of suggestion requests allowed per UTC day
const DefaultLimit int64 = 150

// retention keeps a day's counter around after the day ends
const retention = 48 * time.Hour

// Counter is a day-keyed atomic counter
type Counter interface {
	// Increment adds one to day's counter and returns the new value
	Increment(ctx context.Context, day string) (int64, error)

	// Count returns day's counter without changing it
	Count(ctx context.Context, day string) (int64, error)

	Close() error
}

// NewCounter builds the backend named by cfg.Backend
func NewCounter(ctx context.Context, cfg model.QuotaConfig, log *logger.Logger) (Counter, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryCounter(), nil

	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("quota backend redis requires redis_addr")
		}
		return NewRedisCounter(ctx, cfg.RedisAddr, log)

	case "postgres", "postgresql":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("quota backend postgres requires postgres_dsn")
		}
		return OpenPostgresCounter(ctx, cfg.PostgresDSN, log)

	default:
		return nil, fmt.Errorf("unknown quota backend: %s (supported: memory, redis, postgres)", cfg.Backend)
	}
}

// Gate answers "is this request within today's budget"
type Gate struct {
	counter Counter
	limit   int64
	now     func() time.Time
}

// NewGate creates a gate; a limit below 1 uses DefaultLimit
func NewGate(counter Counter, limit int64) *Gate {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Gate{
		counter: counter,
		limit:   limit,
		now:     time.Now,
	}
}

// Today is the UTC day key the gate is currently counting
func (g *Gate) Today() string {
	return g.now().UTC().Format(DayLayout)
}

// Allow counts one request and reports whether it is within the limit
func (g *Gate) Allow(ctx context.Context) (bool, error) {
	n, err := g.counter.Increment(ctx, g.Today())
	if err != nil {
		return false, fmt.Errorf("increment quota: %w", err)
	}
	return n <= g.limit, nil
}

// Exhausted reports whether today's budget is spent, without counting
func (g *Gate) Exhausted(ctx context.Context) (bool, error) {
	n, err := g.counter.Count(ctx, g.Today())
	if err != nil {
		return false, fmt.Errorf("read quota: %w", err)
	}
	return n >= g.limit, nil
}

// Limit returns the daily limit
func (g *Gate) Limit() int64 {
	return g.limit
}

// expiry is when a day's counter may be dropped
func expiry(day string) time.Time {
	start, err := time.Parse(DayLayout, day)
	if err != nil {
		return time.Now().Add(retention)
	}
	return start.Add(retention)
}
