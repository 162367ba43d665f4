package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is the idempotency record for one invoice.
// Invariant: at most one row per invoice id, and it reaches settled at most once.
type Settlement struct {
	InvoiceID string           `json:"invoice_id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	Amount    decimal.Decimal  `json:"amount_usd" db:"amount_usd"`
	Currency  string           `json:"currency" db:"currency"`
	Kind      string           `json:"kind" db:"kind"`
	Status    SettlementStatus `json:"status" db:"status"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	SettledAt *time.Time `json:"settled_at,omitempty" db:"settled_at"`
}

type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSettled SettlementStatus = "settled"
)

// Deposit records the user-facing history line for a credited invoice.
// Unique on (invoice_id, user_id).
type Deposit struct {
	ID        string          `json:"id" db:"id"`
	InvoiceID string          `json:"invoice_id" db:"invoice_id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Amount    decimal.Decimal `json:"amount_usd" db:"amount_usd"`
	Method    string          `json:"method" db:"method"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type Balance struct {
	UserID     string          `json:"user_id"`
	BalanceUSD decimal.Decimal `json:"balance_usd"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

const (
	DefaultCurrency = "USD"
	DefaultKind     = "BALANCE_TOPUP"
	MethodBTCPay    = "btcpay"
)
