package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo writes to webhook_audit_events. The table has no UPDATE or
// DELETE grants for the service role.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO webhook_audit_events (
  id, type, invoice_id, user_id, provider_event_type, delivery_id, outcome,
  ip_address, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		nullIfEmpty(e.InvoiceID),
		nullIfEmpty(e.UserID),
		nullIfEmpty(e.ProviderEventType),
		nullIfEmpty(e.DeliveryID),
		e.Outcome,
		nullIfEmpty(e.IPAddress),
		nullIfEmpty(e.Message),
		nullIfEmpty(e.Metadata),
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByInvoice(ctx context.Context, invoiceID string, limit int) ([]Event, error) {
	const q = `
SELECT id, type, COALESCE(invoice_id, ''), COALESCE(user_id, ''),
       COALESCE(provider_event_type, ''), COALESCE(delivery_id, ''), outcome,
       COALESCE(ip_address, ''), COALESCE(message, ''), COALESCE(metadata::text, ''), created_at
FROM webhook_audit_events
WHERE invoice_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, invoiceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID,
			&e.Type,
			&e.InvoiceID,
			&e.UserID,
			&e.ProviderEventType,
			&e.DeliveryID,
			&e.Outcome,
			&e.IPAddress,
			&e.Message,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
