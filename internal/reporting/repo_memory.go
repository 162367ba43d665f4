package reporting

import (
	"context"
	"sort"
	"sync"
	"time"

	"topup-ledger/internal/ledger"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early development.
type MemoryRepo struct {
	mu sync.Mutex

	Deposits []ledger.Deposit
	Err      error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListDepositsBetween(_ context.Context, from, to time.Time) ([]ledger.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []ledger.Deposit
	for _, d := range r.Deposits {
		if d.CreatedAt.Before(from) || !d.CreatedAt.Before(to) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
