package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CreditSummaryRequest asks for credited top-ups in a half-open range.
// UserID narrows the summary to one account when set.
type CreditSummaryRequest struct {
	Range  TimeRange `json:"range"`
	UserID string    `json:"user_id,omitempty"`
}

// CreditSummary is derived from immutable deposit rows, one per settled invoice.
type CreditSummary struct {
	Range    TimeRange `json:"range"`
	UserID   string    `json:"user_id,omitempty"`
	Currency string    `json:"currency"`

	Deposits      int             `json:"deposits"`
	DistinctUsers int             `json:"distinct_users"`
	TotalUSD      decimal.Decimal `json:"total_usd"`
	AverageUSD    decimal.Decimal `json:"average_usd"`
	LargestUSD    decimal.Decimal `json:"largest_usd"`

	ByMethod map[string]MethodTotal `json:"by_method"`
}

type MethodTotal struct {
	Deposits int             `json:"deposits"`
	TotalUSD decimal.Decimal `json:"total_usd"`
}
