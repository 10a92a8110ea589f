package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
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

func (r *Repository) CreatePackagePurchaseTx(ctx context.Context, tx *sqlx.Tx, p *PackagePurchase) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO package_purchases (id, telegram_id, package_type, amount_eur, payment_method, status, invoice_id, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), $8)
	`, p.ID, p.TelegramID, p.PackageType, p.AmountEur, p.PaymentMethod, p.Status, p.InvoiceID, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert package purchase: %w", err)
	}
	return nil
}

func (r *Repository) CreatePromotionPurchaseTx(ctx context.Context, tx *sqlx.Tx, p *PromotionPurchase) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO promotion_purchases (id, telegram_id, listing_id, promotion_type, amount_eur, payment_method, status, invoice_id, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), $9)
	`, p.ID, p.TelegramID, p.ListingID, p.PromotionType, p.AmountEur, p.PaymentMethod, p.Status, p.InvoiceID, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert promotion purchase: %w", err)
	}
	return nil
}

// AttachInvoice links the provider invoice issued for a direct-payment purchase
func (r *Repository) AttachInvoice(ctx context.Context, table string, purchaseID uuid.UUID, invoiceID string) error {
	var query string
	switch table {
	case "package_purchases":
		query = `UPDATE package_purchases SET invoice_id = $2 WHERE id = $1`
	case "promotion_purchases":
		query = `UPDATE promotion_purchases SET invoice_id = $2 WHERE id = $1`
	default:
		return fmt.Errorf("%w: unknown purchase table %q", ErrInternal, table)
	}
	_, err := r.db.ExecContext(ctx, query, purchaseID, invoiceID)
	if err != nil {
		return fmt.Errorf("attach invoice: %w", err)
	}
	return nil
}

// CompletePackagePurchaseTx advances a pending package purchase to completed.
// Conditional on status=pending so a repeated settlement cannot fulfill twice.
func (r *Repository) CompletePackagePurchaseTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*PackagePurchase, error) {
	var p PackagePurchase
	err := tx.GetContext(ctx, &p, `
		UPDATE package_purchases
		SET status = 'completed', completed_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, telegram_id, package_type, amount_eur, payment_method, status, invoice_id, created_at, completed_at
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("complete package purchase: %w", err)
	}
	return &p, nil
}

// ActivatePromotionPurchaseTx advances a pending promotion purchase to active
func (r *Repository) ActivatePromotionPurchaseTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*PromotionPurchase, error) {
	var p PromotionPurchase
	err := tx.GetContext(ctx, &p, `
		UPDATE promotion_purchases
		SET status = 'active', completed_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, telegram_id, listing_id, promotion_type, amount_eur, payment_method, status, invoice_id, created_at, completed_at
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("activate promotion purchase: %w", err)
	}
	return &p, nil
}

// FailPackagePurchaseTx marks a pending package purchase failed after its
// invoice settled unsuccessfully. Zero rows means the purchase already left
// pending and is not an error.
func (r *Repository) FailPackagePurchaseTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE package_purchases
		SET status = 'failed', completed_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("fail package purchase: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail package purchase: %w", err)
	}
	return rows > 0, nil
}

// FailPromotionPurchaseTx marks a pending promotion purchase failed. Clearing
// the pending row also releases the delete guard on the listing.
func (r *Repository) FailPromotionPurchaseTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE promotion_purchases
		SET status = 'failed', completed_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("fail promotion purchase: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail promotion purchase: %w", err)
	}
	return rows > 0, nil
}

// HasPendingPromotionForListing reports whether a direct-payment promotion
// purchase is still awaiting settlement for the listing. Used to refuse
// deleting a listing mid-reconciliation.
func (r *Repository) HasPendingPromotionForListing(ctx context.Context, listingID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM promotion_purchases WHERE listing_id = $1 AND status = 'pending')
	`, listingID)
	if err != nil {
		return false, fmt.Errorf("check pending promotions: %w", err)
	}
	return exists, nil
}

func (r *Repository) ListPackagePurchases(ctx context.Context, telegramID int64, limit, offset int) ([]PackagePurchase, error) {
	if limit <= 0 {
		limit = 20
	}
	purchases := make([]PackagePurchase, 0)
	err := r.db.SelectContext(ctx, &purchases, `
		SELECT id, telegram_id, package_type, amount_eur, payment_method, status, invoice_id, created_at, completed_at
		FROM package_purchases
		WHERE telegram_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, telegramID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list package purchases: %w", err)
	}
	return purchases, nil
}
