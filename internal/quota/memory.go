package quota

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCounter keeps counters in process memory
type MemoryCounter struct {
	cache *gocache.Cache
}

// NewMemoryCounter creates an in-process counter
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{cache: gocache.New(retention, time.Hour)}
}

func (m *MemoryCounter) Increment(ctx context.Context, day string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// Add fails when the key exists, which is fine
	_ = m.cache.Add(day, int64(0), time.Until(expiry(day)))
	return m.cache.IncrementInt64(day, 1)
}

func (m *MemoryCounter) Count(ctx context.Context, day string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, ok := m.cache.Get(day)
	if !ok {
		return 0, nil
	}
	n, _ := v.(int64)
	return n, nil
}

func (m *MemoryCounter) Close() error {
	return nil
}
