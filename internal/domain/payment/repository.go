package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// Create persists a freshly issued invoice with status=created
func (r *Repository) Create(ctx context.Context, p *Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (invoice_id, telegram_id, amount, amount_eur, status, purpose, purchase_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`, p.InvoiceID, p.TelegramID, p.Amount, p.AmountEur, p.Status, p.Purpose, p.PurchaseID)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *Repository) GetByInvoiceID(ctx context.Context, invoiceID string) (*Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, `
		SELECT invoice_id, telegram_id, amount, amount_eur, status, purpose, purchase_id, webhook_data, created_at, completed_at
		FROM payments
		WHERE invoice_id = $1
	`, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

// SettleTx applies a reported status to the invoice. Terminal states win: a
// success is never overwritten, and a failed invoice ignores late non-terminal
// reports (a provider retry can deliver an old "processing" event after the
// expiry webhook). The check and the write are a single conditional statement,
// so a webhook push and a manual poll racing on the same invoice cannot both
// observe an unsettled row. Returns the updated payment, or
// ErrAlreadyProcessed when the row was left untouched.
func (r *Repository) SettleTx(ctx context.Context, tx *sqlx.Tx, invoiceID string, status Status, rawEvent []byte) (*Payment, error) {
	var p Payment
	err := tx.GetContext(ctx, &p, `
		UPDATE payments
		SET status = $2,
		    webhook_data = COALESCE($3, webhook_data),
		    completed_at = CASE WHEN $2 = 'success' THEN now() ELSE completed_at END
		WHERE invoice_id = $1
		  AND status <> 'success'
		  AND (status <> 'failed' OR $2 IN ('success', 'failed'))
		RETURNING invoice_id, telegram_id, amount, amount_eur, status, purpose, purchase_id, webhook_data, created_at, completed_at
	`, invoiceID, status, nullableJSON(rawEvent))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Untouched: unknown invoice, or an already-terminal row the
			// incoming status may not overwrite. Read through the open tx.
			var existing Payment
			getErr := tx.GetContext(ctx, &existing, `
				SELECT invoice_id, telegram_id, amount, amount_eur, status, purpose, purchase_id, webhook_data, created_at, completed_at
				FROM payments
				WHERE invoice_id = $1
			`, invoiceID)
			if getErr != nil {
				if errors.Is(getErr, sql.ErrNoRows) {
					return nil, ErrNotFound
				}
				return nil, fmt.Errorf("get payment: %w", getErr)
			}
			if existing.IsSettled() {
				return &existing, ErrAlreadyProcessed
			}
			return nil, fmt.Errorf("%w: settle matched no row", ErrInternal)
		}
		return nil, fmt.Errorf("settle payment: %w", err)
	}
	return &p, nil
}

// ListByUser returns a user's invoices, newest first
func (r *Repository) ListByUser(ctx context.Context, telegramID int64, limit, offset int) ([]Payment, error) {
	if limit <= 0 {
		limit = 20
	}

	payments := make([]Payment, 0)
	err := r.db.SelectContext(ctx, &payments, `
		SELECT invoice_id, telegram_id, amount, amount_eur, status, purpose, purchase_id, webhook_data, created_at, completed_at
		FROM payments
		WHERE telegram_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, telegramID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
