package topup

import (
	"context"
	"errors"
	"testing"

	"topup-ledger/internal/testdb"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestPostgresInvoiceRepo_Lifecycle(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	repo := NewPostgresInvoiceRepo(db)
	user := testdb.SeedUser(t, db, "0.00")
	id := "INV-" + uuid.NewString()

	inv := Invoice{
		ID:        id,
		UserID:    user,
		AmountUSD: decimal.RequireFromString("25.00"),
		Currency:  "USD",
		Kind:      KindBalanceTopup,
		Metadata:  map[string]any{"userId": user, "topupAmountUsd": "25.00"},
	}
	if err := repo.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.CreateInvoice(ctx, inv); !errors.Is(err, ErrInvoiceExists) {
		t.Fatalf("expected ErrInvoiceExists, got %v", err)
	}
	inv.ID, inv.UserID = "INV-"+uuid.NewString(), ""
	if err := repo.CreateInvoice(ctx, inv); !errors.Is(err, ErrInvoiceNoUser) {
		t.Fatalf("expected ErrInvoiceNoUser, got %v", err)
	}

	got, err := repo.FindInvoice(ctx, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.UserID != user || got.Status != InvoicePending || !got.AmountUSD.Equal(decimal.NewFromInt(25)) || got.Metadata["userId"] != user {
		t.Fatalf("unexpected invoice: %+v", got)
	}
	if _, err := repo.FindInvoice(ctx, "INV-"+uuid.NewString()); !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}

	changed, err := repo.MarkInvoiceStatus(ctx, id, InvoicePending, InvoiceExpired)
	if err != nil || !changed {
		t.Fatalf("expected pending -> expired, got %v %v", changed, err)
	}
	changed, err = repo.MarkInvoiceStatus(ctx, id, InvoicePending, InvoiceFailed)
	if err != nil || changed {
		t.Fatalf("expected no change from expired, got %v %v", changed, err)
	}
}
