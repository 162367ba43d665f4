package topup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"topup-ledger/internal/btcpay"

	"github.com/shopspring/decimal"
)

var ErrMetadataUnresolved = errors.New("user or amount could not be resolved")

var (
	userIDKeys   = []string{"userId", "user_id", "userID"}
	amountKeys   = []string{"topupAmountUsd", "topup_amount_usd", "amountUsd", "amount"}
	kindKeys     = []string{"type", "kind"}
	currencyKeys = []string{"currency"}
)

// Strategy contributes whatever fields it can find. An empty field means no opinion.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, n btcpay.Notification) (Resolved, error)
}

// Resolver merges strategies in order; the first strategy to supply a field wins.
type Resolver struct {
	strategies []Strategy
}

func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// Resolve stops consulting strategies once user, positive amount and kind are known.
func (r *Resolver) Resolve(ctx context.Context, n btcpay.Notification) (Resolved, error) {
	var out Resolved
	for _, s := range r.strategies {
		if complete(out) {
			break
		}
		part, err := s.Resolve(ctx, n)
		if err != nil {
			return Resolved{}, fmt.Errorf("%s: %w", s.Name(), err)
		}
		if merge(&out, part) {
			out.Sources = append(out.Sources, s.Name())
		}
	}
	if out.UserID == "" || !out.Amount.IsPositive() {
		return out, ErrMetadataUnresolved
	}
	return out, nil
}

func complete(r Resolved) bool {
	return r.UserID != "" && r.Amount.IsPositive() && r.Kind != ""
}

func merge(dst *Resolved, src Resolved) bool {
	changed := false
	if dst.UserID == "" && src.UserID != "" {
		dst.UserID, changed = src.UserID, true
	}
	if !dst.Amount.IsPositive() && src.Amount.IsPositive() {
		dst.Amount, changed = src.Amount, true
	}
	if dst.Kind == "" && src.Kind != "" {
		dst.Kind, changed = src.Kind, true
	}
	if dst.Currency == "" && src.Currency != "" {
		dst.Currency, changed = src.Currency, true
	}
	return changed
}

// EventMetadataStrategy reads the metadata carried in the delivery itself.
type EventMetadataStrategy struct{}

func (EventMetadataStrategy) Name() string { return "event_metadata" }

func (EventMetadataStrategy) Resolve(_ context.Context, n btcpay.Notification) (Resolved, error) {
	return fromFields(n.Metadata.Fields), nil
}

// InvoiceSnapshotStrategy reads the invoice row persisted at creation time:
// its stored metadata first, then its typed columns.
type InvoiceSnapshotStrategy struct {
	Invoices InvoiceRepository
}

func (InvoiceSnapshotStrategy) Name() string { return "invoice_snapshot" }

func (s InvoiceSnapshotStrategy) Resolve(ctx context.Context, n btcpay.Notification) (Resolved, error) {
	if s.Invoices == nil || n.InvoiceID == "" {
		return Resolved{}, nil
	}
	inv, err := s.Invoices.FindInvoice(ctx, n.InvoiceID)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return Resolved{}, nil
		}
		return Resolved{}, err
	}

	out := fromFields(inv.Metadata)
	merge(&out, Resolved{
		UserID:   strings.TrimSpace(inv.UserID),
		Amount:   money(inv.AmountUSD),
		Kind:     normalizeKind(inv.Kind),
		Currency: strings.ToUpper(strings.TrimSpace(inv.Currency)),
	})
	return out, nil
}

func fromFields(fields map[string]any) Resolved {
	if len(fields) == 0 {
		return Resolved{}
	}
	m := btcpay.Metadata{Fields: fields}
	out := Resolved{
		UserID:   m.String(userIDKeys...),
		Kind:     normalizeKind(m.String(kindKeys...)),
		Currency: strings.ToUpper(m.String(currencyKeys...)),
	}
	for _, k := range amountKeys {
		if d, err := decimal.NewFromString(m.String(k)); err == nil && money(d).IsPositive() {
			out.Amount = money(d)
			break
		}
	}
	return out
}

// money rounds to cents, matching numeric(18,2).
func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func normalizeKind(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
