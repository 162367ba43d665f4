package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service credits balances exactly once per invoice.
//
// Money invariants:
// - The balance changes only through a relative increment.
// - The increment, the settlement row and the deposit commit together or not at all.
// - A settled invoice is never credited again.
type Service struct {
	store Store
	// clock and newID are injectable for deterministic tests.
	clock func() time.Time
	newID func() string
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now, newID: uuid.NewString}
}

type SettleRequest struct {
	InvoiceID string
	UserID    string
	Amount    decimal.Decimal
	Currency  string
	Kind      string
	Method    string
}

type SettleStatus string

const (
	StatusCredited       SettleStatus = "credited"
	StatusAlreadySettled SettleStatus = "already_settled"
)

type SettleResult struct {
	Status     SettleStatus
	Settlement Settlement
	// NewBalance is set only when Status is StatusCredited.
	NewBalance decimal.Decimal
}

// IsIntegrity reports errors that no redelivery can fix.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrBalanceNotUpdated) ||
		errors.Is(err, ErrInvalidArgument)
}

// Settle records the invoice as settled, credits the user and upserts the
// deposit in one transaction. Integrity failures are returned unwrapped; any
// other store failure is wrapped with ErrTransient.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (SettleResult, error) {
	if err := validateSettleReq(req); err != nil {
		return SettleResult{}, err
	}
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}
	if req.Kind == "" {
		req.Kind = DefaultKind
	}
	if req.Method == "" {
		req.Method = MethodBTCPay
	}

	var out SettleResult
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		// Reset per attempt; the store may retry fn.
		out = SettleResult{}
		now := s.clock().UTC()

		existing, found, err := tx.FindSettlement(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		if found && existing.Status == SettlementSettled {
			out = SettleResult{Status: StatusAlreadySettled, Settlement: existing}
			return nil
		}

		if _, err := uuid.Parse(req.UserID); err != nil {
			return ErrInvalidUserID
		}
		ok, err := tx.UserExists(ctx, req.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserNotFound
		}

		st := Settlement{
			InvoiceID: req.InvoiceID,
			UserID:    req.UserID,
			Amount:    req.Amount,
			Currency:  req.Currency,
			Kind:      req.Kind,
			Status:    SettlementSettled,
			CreatedAt: now,
			SettledAt: &now,
		}
		if found {
			st.CreatedAt = existing.CreatedAt
			moved, err := tx.MarkSettled(ctx, st)
			if err != nil {
				return err
			}
			if !moved {
				out = SettleResult{Status: StatusAlreadySettled, Settlement: existing}
				return nil
			}
		} else if err := tx.InsertSettlement(ctx, st); err != nil {
			return err
		}

		bal, err := tx.IncrementBalance(ctx, req.UserID, req.Amount, now)
		if err != nil {
			return err
		}

		if err := tx.UpsertDeposit(ctx, Deposit{
			ID:        s.newID(),
			InvoiceID: req.InvoiceID,
			UserID:    req.UserID,
			Amount:    req.Amount,
			Method:    req.Method,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if err := tx.MarkInvoiceSettled(ctx, req.InvoiceID, now); err != nil {
			return err
		}

		out = SettleResult{Status: StatusCredited, Settlement: st, NewBalance: bal}
		return nil
	})

	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, ErrDuplicateSettlement):
		// Lost the insert race; the winner already credited.
		return SettleResult{Status: StatusAlreadySettled, Settlement: Settlement{InvoiceID: req.InvoiceID, Status: SettlementSettled}}, nil
	case IsIntegrity(err):
		return SettleResult{}, err
	default:
		return SettleResult{}, fmt.Errorf("%w: %w", ErrTransient, err)
	}
}

func validateSettleReq(req SettleRequest) error {
	if strings.TrimSpace(req.InvoiceID) == "" {
		return ErrInvalidArgument
	}
	if strings.TrimSpace(req.UserID) == "" {
		return ErrInvalidUserID
	}
	if !req.Amount.IsPositive() {
		return ErrInvalidArgument
	}
	return nil
}
