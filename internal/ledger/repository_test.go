package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"topup-ledger/internal/testdb"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestPostgresStore_SettleOnce(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	user := testdb.SeedUser(t, db, "10.00")
	store := NewPostgresStore(db)
	svc := NewService(store)
	invoice := "INV-" + uuid.NewString()

	req := SettleRequest{InvoiceID: invoice, UserID: user, Amount: decimal.RequireFromString("25.00"), Method: MethodBTCPay}
	res, err := svc.Settle(ctx, req)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.Status != StatusCredited || !res.NewBalance.Equal(decimal.RequireFromString("35")) {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = svc.Settle(ctx, req)
	if err != nil || res.Status != StatusAlreadySettled {
		t.Fatalf("expected already settled, got %+v %v", res, err)
	}

	bal, err := store.GetBalance(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if !bal.BalanceUSD.Equal(decimal.RequireFromString("35")) {
		t.Fatalf("expected 35.00, got %s", bal.BalanceUSD)
	}
	st, err := store.GetSettlement(ctx, invoice)
	if err != nil || st.Status != SettlementSettled || st.SettledAt == nil {
		t.Fatalf("unexpected settlement: %+v %v", st, err)
	}
	ds, err := store.ListDeposits(ctx, user, 10)
	if err != nil || len(ds) != 1 || ds[0].InvoiceID != invoice {
		t.Fatalf("unexpected deposits: %+v %v", ds, err)
	}
}

func TestPostgresStore_ConcurrentSettle(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	user := testdb.SeedUser(t, db, "0.00")
	store := NewPostgresStore(db)
	svc := NewService(store)
	req := SettleRequest{InvoiceID: "INV-" + uuid.NewString(), UserID: user, Amount: decimal.RequireFromString("5.00")}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		credited int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Settle(ctx, req)
			if err != nil {
				// Exhausted serialization retries are transient; the provider redelivers.
				if !errors.Is(err, ErrTransient) {
					t.Errorf("settle: %v", err)
				}
				return
			}
			if res.Status == StatusCredited {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if credited != 1 {
		t.Fatalf("expected exactly one credit, got %d", credited)
	}
	bal, err := store.GetBalance(ctx, user)
	if err != nil || !bal.BalanceUSD.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("expected 5.00, got %v %v", bal.BalanceUSD, err)
	}
}

func TestPgTx_DuplicateAndMissingRows(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	user := testdb.SeedUser(t, db, "1.00")
	store := NewPostgresStore(db)
	now := time.Now().UTC()
	st := Settlement{
		InvoiceID: "INV-" + uuid.NewString(),
		UserID:    user,
		Amount:    decimal.RequireFromString("2.50"),
		Currency:  DefaultCurrency,
		Kind:      DefaultKind,
		Status:    SettlementSettled,
		CreatedAt: now,
		SettledAt: &now,
	}
	if err := store.InTx(ctx, func(ctx context.Context, tx Tx) error { return tx.InsertSettlement(ctx, st) }); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err := store.InTx(ctx, func(ctx context.Context, tx Tx) error { return tx.InsertSettlement(ctx, st) })
	if !errors.Is(err, ErrDuplicateSettlement) {
		t.Fatalf("expected ErrDuplicateSettlement, got %v", err)
	}

	err = store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.IncrementBalance(ctx, uuid.NewString(), decimal.NewFromInt(1), now)
		return err
	})
	if !errors.Is(err, ErrBalanceNotUpdated) {
		t.Fatalf("expected ErrBalanceNotUpdated, got %v", err)
	}
}
