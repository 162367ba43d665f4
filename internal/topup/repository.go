package topup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"topup-ledger/pkg/utils"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvoiceExists   = errors.New("invoice already exists")
	ErrInvoiceNoUser   = errors.New("invoice user id is required")
)

// InvoiceRepository is the persistence contract for invoice snapshots.
type InvoiceRepository interface {
	FindInvoice(ctx context.Context, id string) (Invoice, error)
	CreateInvoice(ctx context.Context, inv Invoice) error
	// MarkInvoiceStatus moves an invoice from one status to another and
	// reports whether a row changed.
	MarkInvoiceStatus(ctx context.Context, id string, from, to InvoiceStatus) (bool, error)
}

type PostgresInvoiceRepo struct {
	db *sql.DB
}

func NewPostgresInvoiceRepo(db *sql.DB) *PostgresInvoiceRepo {
	return &PostgresInvoiceRepo{db: db}
}

func (r *PostgresInvoiceRepo) FindInvoice(ctx context.Context, id string) (Invoice, error) {
	const q = `
SELECT id, COALESCE(user_id::text, ''), amount_usd, currency, kind, status, COALESCE(metadata::text, '{}'), created_at, updated_at
FROM invoices
WHERE id = $1
`
	var (
		inv  Invoice
		meta string
	)
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&inv.ID,
		&inv.UserID,
		&inv.AmountUSD,
		&inv.Currency,
		&inv.Kind,
		&inv.Status,
		&meta,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	// A corrupt metadata column should not hide the typed columns.
	_ = json.Unmarshal([]byte(meta), &inv.Metadata)
	return inv, nil
}

func (r *PostgresInvoiceRepo) CreateInvoice(ctx context.Context, inv Invoice) error {
	if strings.TrimSpace(inv.UserID) == "" {
		return ErrInvoiceNoUser
	}
	meta, err := json.Marshal(inv.Metadata)
	if err != nil {
		return err
	}
	if inv.Metadata == nil {
		meta = []byte("{}")
	}
	now := time.Now().UTC()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	if inv.Status == "" {
		inv.Status = InvoicePending
	}
	const q = `
INSERT INTO invoices (id, user_id, amount_usd, currency, kind, status, metadata, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8,$8)
`
	_, err = r.db.ExecContext(ctx, q, inv.ID, inv.UserID, inv.AmountUSD, inv.Currency, inv.Kind, inv.Status, string(meta), inv.CreatedAt)
	if utils.IsUniqueViolation(err) {
		return ErrInvoiceExists
	}
	return err
}

func (r *PostgresInvoiceRepo) MarkInvoiceStatus(ctx context.Context, id string, from, to InvoiceStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
