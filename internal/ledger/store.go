package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// Integrity errors: retrying the delivery cannot fix them.
	ErrInvalidUserID     = errors.New("invalid user id")
	ErrUserNotFound      = errors.New("user not found")
	ErrBalanceNotUpdated = errors.New("balance update affected no rows")

	// ErrDuplicateSettlement means a concurrent transaction inserted the same invoice first.
	ErrDuplicateSettlement = errors.New("settlement already exists")

	ErrTransient = errors.New("transient ledger failure")
)

// Tx is the set of writes a settlement performs inside one transaction.
type Tx interface {
	FindSettlement(ctx context.Context, invoiceID string) (Settlement, bool, error)
	UserExists(ctx context.Context, userID string) (bool, error)
	// InsertSettlement returns ErrDuplicateSettlement on a primary key conflict.
	InsertSettlement(ctx context.Context, s Settlement) error
	// MarkSettled moves a pending settlement to settled and reports whether it did.
	MarkSettled(ctx context.Context, s Settlement) (bool, error)
	// IncrementBalance adds delta and returns the new balance, or ErrBalanceNotUpdated.
	IncrementBalance(ctx context.Context, userID string, delta decimal.Decimal, at time.Time) (decimal.Decimal, error)
	UpsertDeposit(ctx context.Context, d Deposit) error
	MarkInvoiceSettled(ctx context.Context, invoiceID string, at time.Time) error
}

// Store runs fn in a single atomic transaction. Implementations may retry fn.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Reader serves the operator read API.
type Reader interface {
	GetSettlement(ctx context.Context, invoiceID string) (Settlement, error)
	GetBalance(ctx context.Context, userID string) (Balance, error)
	ListDeposits(ctx context.Context, userID string, limit int) ([]Deposit, error)
}
