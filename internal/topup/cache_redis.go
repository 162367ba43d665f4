package topup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SettledCache remembers invoices known to be settled. It is advisory:
// a miss or an error always falls through to the ledger.
type SettledCache interface {
	IsSettled(ctx context.Context, invoiceID string) (bool, error)
	MarkSettled(ctx context.Context, invoiceID string) error
}

const settledKeyPrefix = "topup:settled:"

func settledKey(invoiceID string) string { return settledKeyPrefix + invoiceID }

type RedisSettledCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSettledCache(rdb redis.Cmdable, ttl time.Duration) *RedisSettledCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSettledCache{rdb: rdb, ttl: ttl}
}

func (c *RedisSettledCache) IsSettled(ctx context.Context, invoiceID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, settledKey(invoiceID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *RedisSettledCache) MarkSettled(ctx context.Context, invoiceID string) error {
	return c.rdb.Set(ctx, settledKey(invoiceID), "1", c.ttl).Err()
}

// MemorySettledCache is a SettledCache for tests and single-process runs.
type MemorySettledCache struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func NewMemorySettledCache() *MemorySettledCache {
	return &MemorySettledCache{set: map[string]struct{}{}}
}

func (c *MemorySettledCache) IsSettled(_ context.Context, invoiceID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.set[invoiceID]
	return ok, nil
}

func (c *MemorySettledCache) MarkSettled(_ context.Context, invoiceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set[invoiceID] = struct{}{}
	return nil
}
