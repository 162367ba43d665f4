package reporting

import (
	"context"
	"errors"
	"time"

	"topup-ledger/internal/ledger"

	"github.com/shopspring/decimal"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// MaxRange caps one summary query.
const MaxRange = 366 * 24 * time.Hour

// Repository abstracts data access for reporting.
// Implementations read the deposits table only; it is append-only per invoice.
type Repository interface {
	ListDepositsBetween(ctx context.Context, from, to time.Time) ([]ledger.Deposit, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CreditSummary(ctx context.Context, req CreditSummaryRequest) (CreditSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CreditSummary{}, ErrInvalidRequest
	}
	if req.Range.To.Sub(req.Range.From) > MaxRange {
		return CreditSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CreditSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListDepositsBetween(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return CreditSummary{}, err
	}

	out := CreditSummary{
		Range:      req.Range,
		UserID:     req.UserID,
		Currency:   ledger.DefaultCurrency,
		TotalUSD:   decimal.Zero,
		AverageUSD: decimal.Zero,
		LargestUSD: decimal.Zero,
		ByMethod:   map[string]MethodTotal{},
	}
	users := map[string]struct{}{}
	for _, d := range rows {
		if req.UserID != "" && d.UserID != req.UserID {
			continue
		}
		out.Deposits++
		out.TotalUSD = out.TotalUSD.Add(d.Amount)
		if d.Amount.GreaterThan(out.LargestUSD) {
			out.LargestUSD = d.Amount
		}
		users[d.UserID] = struct{}{}

		method := d.Method
		if method == "" {
			method = "unknown"
		}
		mt := out.ByMethod[method]
		mt.Deposits++
		mt.TotalUSD = mt.TotalUSD.Add(d.Amount)
		out.ByMethod[method] = mt
	}
	out.DistinctUsers = len(users)
	if out.Deposits > 0 {
		out.AverageUSD = out.TotalUSD.Div(decimal.NewFromInt(int64(out.Deposits))).Round(2)
	}
	return out, nil
}
