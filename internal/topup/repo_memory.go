package topup

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryInvoiceRepo is an in-memory InvoiceRepository for tests.
type MemoryInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]Invoice
	// FindErr, when set, is returned by FindInvoice.
	FindErr error
}

func NewMemoryInvoiceRepo() *MemoryInvoiceRepo {
	return &MemoryInvoiceRepo{invoices: map[string]Invoice{}}
}

func (r *MemoryInvoiceRepo) FindInvoice(_ context.Context, id string) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FindErr != nil {
		return Invoice{}, r.FindErr
	}
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (r *MemoryInvoiceRepo) CreateInvoice(_ context.Context, inv Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if strings.TrimSpace(inv.UserID) == "" {
		return ErrInvoiceNoUser
	}
	if _, ok := r.invoices[inv.ID]; ok {
		return ErrInvoiceExists
	}
	if inv.Status == "" {
		inv.Status = InvoicePending
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	inv.UpdatedAt = inv.CreatedAt
	r.invoices[inv.ID] = inv
	return nil
}

func (r *MemoryInvoiceRepo) MarkInvoiceStatus(_ context.Context, id string, from, to InvoiceStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.Status != from {
		return false, nil
	}
	inv.Status = to
	inv.UpdatedAt = time.Now().UTC()
	r.invoices[id] = inv
	return true, nil
}
