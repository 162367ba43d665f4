package topup

import (
	"time"

	"github.com/shopspring/decimal"
)

// KindBalanceTopup marks invoices whose settlement credits the user balance.
const KindBalanceTopup = "BALANCE_TOPUP"

// Invoice is the snapshot written by the invoice-creation flow before the
// checkout link is handed out. It is the fallback source for user and amount.
type Invoice struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	AmountUSD decimal.Decimal `json:"amount_usd" db:"amount_usd"`
	Currency  string          `json:"currency" db:"currency"`
	Kind      string          `json:"kind" db:"kind"`
	Status    InvoiceStatus   `json:"status" db:"status"`

	// Metadata is the JSON object sent to the processor at creation time.
	Metadata map[string]any `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoiceSettled InvoiceStatus = "settled"
	InvoiceExpired InvoiceStatus = "expired"
	InvoiceFailed  InvoiceStatus = "failed"
)

// Resolved is what the resolver could establish about a delivery.
type Resolved struct {
	UserID   string
	Amount   decimal.Decimal
	Kind     string
	Currency string
	// Sources names the strategies that contributed, in order.
	Sources []string
}

// CreditEvent is published after a committed credit.
type CreditEvent struct {
	InvoiceID  string          `json:"invoice_id"`
	UserID     string          `json:"user_id"`
	AmountUSD  decimal.Decimal `json:"amount_usd"`
	BalanceUSD decimal.Decimal `json:"balance_usd"`
	CreditedAt time.Time       `json:"credited_at"`
}
