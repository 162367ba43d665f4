package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"topup-ledger/internal/ledger"

	"github.com/shopspring/decimal"
)

func dep(id, user, amount, method string, at time.Time) ledger.Deposit {
	return ledger.Deposit{ID: id, InvoiceID: "INV-" + id, UserID: user, Amount: decimal.RequireFromString(amount), Method: method, CreatedAt: at}
}

func TestReporting_CreditSummaryAggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Deposits = []ledger.Deposit{
		dep("1", "u1", "25.00", ledger.MethodBTCPay, now),
		dep("2", "u1", "10.50", ledger.MethodBTCPay, now.Add(time.Minute)),
		dep("3", "u2", "4.50", "", now.Add(2*time.Minute)),
		dep("4", "u2", "99.00", ledger.MethodBTCPay, now.Add(-2*time.Hour)),
	}
	svc := NewService(repo)

	out, err := svc.CreditSummary(context.Background(), CreditSummaryRequest{Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Deposits != 3 || out.DistinctUsers != 2 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if !out.TotalUSD.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("expected total 40.00, got %s", out.TotalUSD)
	}
	if !out.AverageUSD.Equal(decimal.RequireFromString("13.33")) {
		t.Fatalf("expected average 13.33, got %s", out.AverageUSD)
	}
	if !out.LargestUSD.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("expected largest 25, got %s", out.LargestUSD)
	}
	if got := out.ByMethod[ledger.MethodBTCPay]; got.Deposits != 2 || !got.TotalUSD.Equal(decimal.RequireFromString("35.5")) {
		t.Fatalf("unexpected btcpay bucket: %+v", got)
	}
	if got := out.ByMethod["unknown"]; got.Deposits != 1 {
		t.Fatalf("expected unknown method bucket, got %+v", got)
	}
}

func TestReporting_CreditSummaryFiltersUser(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Deposits = []ledger.Deposit{
		dep("1", "u1", "25.00", ledger.MethodBTCPay, now),
		dep("2", "u2", "5.00", ledger.MethodBTCPay, now),
	}
	svc := NewService(repo)

	out, err := svc.CreditSummary(context.Background(), CreditSummaryRequest{UserID: "u2", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Deposits != 1 || !out.TotalUSD.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("unexpected summary: %+v", out)
	}
}

func TestReporting_EmptyRangeIsZero(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	out, err := NewService(NewMemoryRepo()).CreditSummary(context.Background(), CreditSummaryRequest{Range: TimeRange{From: now, To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Deposits != 0 || !out.TotalUSD.IsZero() || !out.AverageUSD.IsZero() {
		t.Fatalf("expected zero summary, got %+v", out)
	}
}

func TestReporting_InvalidRanges(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc := NewService(NewMemoryRepo())
	cases := []TimeRange{
		{},
		{From: now, To: now},
		{From: now, To: now.Add(-time.Hour)},
		{From: now, To: now.Add(MaxRange + time.Hour)},
	}
	for _, r := range cases {
		if _, err := svc.CreditSummary(context.Background(), CreditSummaryRequest{Range: r}); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("range %+v: expected ErrInvalidRequest, got %v", r, err)
		}
	}
}

func TestReporting_RepositoryErrorPropagates(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Err = errors.New("db down")
	now := time.Unix(1700000000, 0).UTC()
	_, err := NewService(repo).CreditSummary(context.Background(), CreditSummaryRequest{Range: TimeRange{From: now, To: now.Add(time.Hour)}})
	if err == nil || err.Error() != "db down" {
		t.Fatalf("expected repository error, got %v", err)
	}
}
