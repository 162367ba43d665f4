package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"topup-ledger/pkg/utils"

	"github.com/shopspring/decimal"
)

// NOTE: This repository assumes the tables created by internal/migrations:
// users, invoices, transactions (primary key = invoice id), deposits with
// UNIQUE (invoice_id, user_id).

// serializableAttempts bounds in-process retries of 40001/40P01.
const serializableAttempts = 3

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return utils.WithSerializableTx(ctx, s.db, serializableAttempts, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, pgTx{tx: tx})
	})
}

type pgTx struct {
	tx *sql.Tx
}

const settlementColumns = `id, user_id, amount_usd, currency, kind, status, created_at, settled_at`

func (p pgTx) FindSettlement(ctx context.Context, invoiceID string) (Settlement, bool, error) {
	q := `SELECT ` + settlementColumns + ` FROM transactions WHERE id = $1`
	st, err := scanSettlement(p.tx.QueryRowContext(ctx, q, invoiceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Settlement{}, false, nil
		}
		return Settlement{}, false, err
	}
	return st, true, nil
}

func (p pgTx) UserExists(ctx context.Context, userID string) (bool, error) {
	var ok bool
	err := p.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&ok)
	return ok, err
}

func (p pgTx) InsertSettlement(ctx context.Context, s Settlement) error {
	const q = `
INSERT INTO transactions (id, user_id, amount_usd, currency, kind, status, created_at, settled_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := p.tx.ExecContext(ctx, q,
		s.InvoiceID,
		s.UserID,
		s.Amount,
		s.Currency,
		s.Kind,
		s.Status,
		s.CreatedAt,
		s.SettledAt,
	)
	if utils.IsUniqueViolation(err) {
		return ErrDuplicateSettlement
	}
	return err
}

func (p pgTx) MarkSettled(ctx context.Context, s Settlement) (bool, error) {
	const q = `
UPDATE transactions
SET status = 'settled', settled_at = $2, user_id = $3, amount_usd = $4
WHERE id = $1 AND status = 'pending'
`
	res, err := p.tx.ExecContext(ctx, q, s.InvoiceID, s.SettledAt, s.UserID, s.Amount)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p pgTx) IncrementBalance(ctx context.Context, userID string, delta decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	// Relative update only; never write an absolute balance computed in Go.
	const q = `
UPDATE users
SET balance_usd = balance_usd + $2, updated_at = $3
WHERE id = $1
RETURNING balance_usd
`
	var out decimal.Decimal
	if err := p.tx.QueryRowContext(ctx, q, userID, delta, at).Scan(&out); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrBalanceNotUpdated
		}
		return decimal.Zero, err
	}
	return out, nil
}

func (p pgTx) UpsertDeposit(ctx context.Context, d Deposit) error {
	const q = `
INSERT INTO deposits (id, invoice_id, user_id, amount_usd, method, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (invoice_id, user_id)
DO UPDATE SET amount_usd = EXCLUDED.amount_usd, method = EXCLUDED.method
`
	_, err := p.tx.ExecContext(ctx, q, d.ID, d.InvoiceID, d.UserID, d.Amount, d.Method, d.CreatedAt)
	return err
}

func (p pgTx) MarkInvoiceSettled(ctx context.Context, invoiceID string, at time.Time) error {
	// Invoices created outside this service may be absent; no row-count check.
	_, err := p.tx.ExecContext(ctx,
		`UPDATE invoices SET status = 'settled', updated_at = $2 WHERE id = $1 AND status <> 'settled'`,
		invoiceID, at)
	return err
}

func (s *PostgresStore) GetSettlement(ctx context.Context, invoiceID string) (Settlement, error) {
	q := `SELECT ` + settlementColumns + ` FROM transactions WHERE id = $1`
	st, err := scanSettlement(s.db.QueryRowContext(ctx, q, invoiceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Settlement{}, ErrNotFound
		}
		return Settlement{}, err
	}
	return st, nil
}

func (s *PostgresStore) GetBalance(ctx context.Context, userID string) (Balance, error) {
	const q = `SELECT id, balance_usd, updated_at FROM users WHERE id = $1`
	var b Balance
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(&b.UserID, &b.BalanceUSD, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ErrNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

func (s *PostgresStore) ListDeposits(ctx context.Context, userID string, limit int) ([]Deposit, error) {
	const q = `
SELECT id, invoice_id, user_id, amount_usd, method, created_at
FROM deposits
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Deposit
	for rows.Next() {
		var d Deposit
		if err := rows.Scan(&d.ID, &d.InvoiceID, &d.UserID, &d.Amount, &d.Method, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanSettlement(row *sql.Row) (Settlement, error) {
	var (
		s         Settlement
		settledAt sql.NullTime
	)
	if err := row.Scan(
		&s.InvoiceID,
		&s.UserID,
		&s.Amount,
		&s.Currency,
		&s.Kind,
		&s.Status,
		&s.CreatedAt,
		&settledAt,
	); err != nil {
		return Settlement{}, err
	}
	if settledAt.Valid {
		t := settledAt.Time
		s.SettledAt = &t
	}
	return s, nil
}

// ListDepositsBetween returns deposits created in [from, to), oldest first.
func (s *PostgresStore) ListDepositsBetween(ctx context.Context, from, to time.Time) ([]Deposit, error) {
	const q = `
SELECT id, invoice_id, user_id, amount_usd, method, created_at
FROM deposits
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at ASC
`
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Deposit
	for rows.Next() {
		var d Deposit
		if err := rows.Scan(&d.ID, &d.InvoiceID, &d.UserID, &d.Amount, &d.Method, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
