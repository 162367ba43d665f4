package topup

import (
	"context"
	"sync"

	"topup-ledger/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// CreditedStream carries CreditEvent payloads for the receipt email consumer.
const CreditedStream = "topup:credited"

const creditedStreamMaxLen = 100_000

// Notifier announces committed credits. Delivery is best-effort.
type Notifier interface {
	CreditApplied(ctx context.Context, ev CreditEvent) error
}

type RedisNotifier struct {
	rdb redis.Cmdable
}

func NewRedisNotifier(rdb redis.Cmdable) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) CreditApplied(ctx context.Context, ev CreditEvent) error {
	_, err := utils.PublishJSON(ctx, n.rdb, CreditedStream, ev, creditedStreamMaxLen)
	return err
}

// MemoryNotifier records events for tests.
type MemoryNotifier struct {
	mu     sync.Mutex
	events []CreditEvent
}

func (n *MemoryNotifier) CreditApplied(_ context.Context, ev CreditEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *MemoryNotifier) Events() []CreditEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]CreditEvent, len(n.events))
	copy(out, n.events)
	return out
}
