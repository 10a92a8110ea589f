package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const listingColumns = `id, telegram_id, source, title, description, price, city, category,
	status, moderation_status, rejection_reason, paid_with, published_at, expires_at,
	promotion_type, promotion_ends, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sqlx.DB {
	return r.db
}

func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, l *Listing) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO listings (id, telegram_id, source, title, description, price, city, category,
			status, moderation_status, paid_with, promotion_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'none', now(), now())
	`, l.ID, l.TelegramID, l.Source, l.Title, l.Description, l.Price, l.City, l.Category,
		l.Status, l.ModerationStatus, l.PaidWith)
	if err != nil {
		return fmt.Errorf("%w: create listing", ErrInternal)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Listing, error) {
	var l Listing
	err := r.db.GetContext(ctx, &l,
		fmt.Sprintf(`SELECT %s FROM listings WHERE id = $1`, listingColumns), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get listing", ErrInternal)
	}
	return &l, nil
}

func (r *Repository) ListByOwner(ctx context.Context, telegramID int64, limit, offset int) ([]Listing, error) {
	listings := []Listing{}
	err := r.db.SelectContext(ctx, &listings, fmt.Sprintf(`
		SELECT %s FROM listings
		WHERE telegram_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, listingColumns), telegramID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list by owner", ErrInternal)
	}
	return listings, nil
}

// Browse lists active listings for the public catalog. Promoted listings sort
// first, vip ahead of the cheaper tiers, then by publication time.
func (r *Repository) Browse(ctx context.Context, filter BrowseFilter) ([]Listing, int, error) {
	conditions := []string{"status = 'active'"}
	args := []interface{}{}
	argIndex := 1

	if filter.City != "" {
		conditions = append(conditions, fmt.Sprintf("city ILIKE $%d", argIndex))
		args = append(args, "%"+filter.City+"%")
		argIndex++
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, filter.Category)
		argIndex++
	}
	if filter.Query != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Query+"%")
		argIndex++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM listings %s", where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: count listings", ErrInternal)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM listings
		%s
		ORDER BY
			CASE promotion_type
				WHEN 'vip' THEN 0
				WHEN 'top_category' THEN 1
				WHEN 'highlighted' THEN 2
				ELSE 3
			END,
			published_at DESC NULLS LAST
		LIMIT $%d OFFSET $%d
	`, listingColumns, where, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	listings := []Listing{}
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: browse listings", ErrInternal)
	}
	return listings, total, nil
}

func (r *Repository) ListPendingModeration(ctx context.Context, limit, offset int) ([]Listing, error) {
	listings := []Listing{}
	err := r.db.SelectContext(ctx, &listings, fmt.Sprintf(`
		SELECT %s FROM listings
		WHERE status = 'pending_moderation'
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, listingColumns), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list pending moderation", ErrInternal)
	}
	return listings, nil
}

// ResubmitTx moves an expired or rejected listing back into moderation,
// recording what the resubmission consumed. The status condition makes
// concurrent resubmits settle on one winner.
func (r *Repository) ResubmitTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, telegramID int64, paidWith PaidWith) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE listings
		SET status = 'pending_moderation',
		    moderation_status = 'pending',
		    rejection_reason = NULL,
		    paid_with = $3,
		    expires_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND telegram_id = $2 AND status IN ('expired', 'rejected')
	`, id, telegramID, paidWith)
	if err != nil {
		return fmt.Errorf("%w: resubmit listing", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Approve publishes a pending listing. published_at and expires_at keep their
// first values across re-approvals after resubmission.
func (r *Repository) Approve(ctx context.Context, id uuid.UUID, lifetime time.Duration) (*Listing, error) {
	var l Listing
	err := r.db.GetContext(ctx, &l, fmt.Sprintf(`
		UPDATE listings
		SET status = 'active',
		    moderation_status = 'approved',
		    rejection_reason = NULL,
		    published_at = COALESCE(published_at, now()),
		    expires_at = COALESCE(expires_at, now() + $2 * interval '1 second'),
		    updated_at = now()
		WHERE id = $1 AND status = 'pending_moderation'
		RETURNING %s
	`, listingColumns), id, int64(lifetime.Seconds()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("%w: approve listing", ErrInternal)
	}
	return &l, nil
}

// RejectTx stores the verdict and returns the row so the caller can refund
// whatever the submission consumed, in the same transaction.
func (r *Repository) RejectTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string) (*Listing, error) {
	var l Listing
	err := tx.GetContext(ctx, &l, fmt.Sprintf(`
		UPDATE listings
		SET status = 'rejected',
		    moderation_status = 'rejected',
		    rejection_reason = $2,
		    updated_at = now()
		WHERE id = $1 AND status = 'pending_moderation'
		RETURNING %s
	`, listingColumns), id, reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("%w: reject listing", ErrInternal)
	}
	return &l, nil
}

func (r *Repository) UpdateOwnerStatus(ctx context.Context, id uuid.UUID, telegramID int64, from []Status, to Status) error {
	placeholders := make([]string, len(from))
	args := []interface{}{id, telegramID, to}
	for i, s := range from {
		placeholders[i] = fmt.Sprintf("$%d", i+4)
		args = append(args, s)
	}

	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE listings
		SET status = $3, updated_at = now()
		WHERE id = $1 AND telegram_id = $2 AND status IN (%s)
	`, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return fmt.Errorf("%w: update listing status", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete listing", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireActive sweeps listings past their lifetime. Safe to run repeatedly.
func (r *Repository) ExpireActive(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE listings
		SET status = 'expired', updated_at = now()
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < now()
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: expire listings", ErrInternal)
	}
	return result.RowsAffected()
}

// EndLapsedPromotions clears promotions past their paid window
func (r *Repository) EndLapsedPromotions(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE listings
		SET promotion_type = 'none', promotion_ends = NULL, updated_at = now()
		WHERE promotion_type <> 'none' AND promotion_ends IS NOT NULL AND promotion_ends < now()
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: end promotions", ErrInternal)
	}
	return result.RowsAffected()
}

// ValidatePromotable checks ownership and public visibility before a
// promotion purchase is accepted.
func (r *Repository) ValidatePromotable(ctx context.Context, listingID uuid.UUID, ownerID int64) error {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM listings
			WHERE id = $1 AND telegram_id = $2 AND status = 'active'
		)
	`, listingID, ownerID)
	if err != nil {
		return fmt.Errorf("%w: validate promotable", ErrInternal)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// ActivatePromotionTx applies a purchased boost. A listing deleted between
// purchase and settlement simply matches no row; the payment stands.
func (r *Repository) ActivatePromotionTx(ctx context.Context, tx *sqlx.Tx, listingID uuid.UUID, promotionType string, ends time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE listings
		SET promotion_type = $2, promotion_ends = $3, updated_at = now()
		WHERE id = $1
	`, listingID, promotionType, ends)
	if err != nil {
		return fmt.Errorf("%w: activate promotion", ErrInternal)
	}
	return nil
}

// CountApproved counts listings that ever passed moderation for one owner
func (r *Repository) CountApproved(ctx context.Context, telegramID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM listings
		WHERE telegram_id = $1 AND moderation_status = 'approved'
	`, telegramID)
	if err != nil {
		return 0, fmt.Errorf("%w: count approved", ErrInternal)
	}
	return count, nil
}
