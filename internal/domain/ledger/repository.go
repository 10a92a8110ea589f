package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository provides balance mutations and the transaction audit log.
// Every EUR or package-slot mutation is a single conditional UPDATE paired
// with exactly one transactions insert in the same database transaction.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Credit adds EUR cents to a user's balance
func (r *Repository) Credit(ctx context.Context, telegramID, cents int64, txType TransactionType, description string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		return r.CreditTx(ctx, tx, telegramID, cents, txType, description)
	})
}

// CreditTx is Credit within an external transaction. The caller commits.
func (r *Repository) CreditTx(ctx context.Context, tx *sqlx.Tx, telegramID, cents int64, txType TransactionType, description string) error {
	if cents <= 0 {
		return ErrInvalidAmount
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET balance = balance + $2::numeric / 100
		WHERE telegram_id = $1
	`, telegramID, cents)
	if err != nil {
		return fmt.Errorf("%w: credit balance", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return r.insertTransaction(ctx, tx, telegramID, cents, txType, description)
}

// Debit removes EUR cents from a user's balance. The balance check and the
// write are one conditional statement so two concurrent debits cannot both
// pass a stale check.
func (r *Repository) Debit(ctx context.Context, telegramID, cents int64, txType TransactionType, description string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		return r.DebitTx(ctx, tx, telegramID, cents, txType, description)
	})
}

// DebitTx is Debit within an external transaction. The caller commits.
func (r *Repository) DebitTx(ctx context.Context, tx *sqlx.Tx, telegramID, cents int64, txType TransactionType, description string) error {
	if cents <= 0 {
		return ErrInvalidAmount
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET balance = balance - $2::numeric / 100
		WHERE telegram_id = $1 AND balance >= $2::numeric / 100
	`, telegramID, cents)
	if err != nil {
		return fmt.Errorf("%w: debit balance", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrInsufficientBalance
	}

	return r.insertTransaction(ctx, tx, telegramID, -cents, txType, description)
}

// CreditPackages adds prepaid listing slots
func (r *Repository) CreditPackages(ctx context.Context, telegramID int64, slots int, description string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		return r.CreditPackagesTx(ctx, tx, telegramID, slots, description)
	})
}

// CreditPackagesTx is CreditPackages within an external transaction
func (r *Repository) CreditPackagesTx(ctx context.Context, tx *sqlx.Tx, telegramID int64, slots int, description string) error {
	if slots <= 0 {
		return ErrInvalidAmount
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET listing_packages_balance = listing_packages_balance + $2
		WHERE telegram_id = $1
	`, telegramID, slots)
	if err != nil {
		return fmt.Errorf("%w: credit packages", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// DebitPackagesTx removes prepaid listing slots within an external
// transaction, failing when the counter would go negative.
func (r *Repository) DebitPackagesTx(ctx context.Context, tx *sqlx.Tx, telegramID int64, slots int) error {
	if slots <= 0 {
		return ErrInvalidAmount
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET listing_packages_balance = listing_packages_balance - $2
		WHERE telegram_id = $1 AND listing_packages_balance >= $2
	`, telegramID, slots)
	if err != nil {
		return fmt.Errorf("%w: debit packages", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrInsufficientPackages
	}

	return nil
}

// ConsumeFreeAdTx flips has_used_free_ad false->true. ErrFreeAdUsed when the
// allowance was already consumed.
func (r *Repository) ConsumeFreeAdTx(ctx context.Context, tx *sqlx.Tx, telegramID int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET has_used_free_ad = true
		WHERE telegram_id = $1 AND has_used_free_ad = false
	`, telegramID)
	if err != nil {
		return fmt.Errorf("%w: consume free ad", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrFreeAdUsed
	}
	return nil
}

// RestoreFreeAdTx returns the free-ad allowance on moderation rejection
// RefundPackageSlotTx returns one listing slot and writes a refund row to the
// audit trail. Slot refunds carry no monetary amount.
func (r *Repository) RefundPackageSlotTx(ctx context.Context, tx *sqlx.Tx, telegramID int64, description string) error {
	if err := r.CreditPackagesTx(ctx, tx, telegramID, 1, description); err != nil {
		return err
	}
	return r.insertTransaction(ctx, tx, telegramID, 0, TransactionTypeRefund, description)
}

func (r *Repository) RestoreFreeAdTx(ctx context.Context, tx *sqlx.Tx, telegramID int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET has_used_free_ad = false
		WHERE telegram_id = $1
	`, telegramID)
	if err != nil {
		return fmt.Errorf("%w: restore free ad", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetBalance returns the user's spendable state
func (r *Repository) GetBalance(ctx context.Context, telegramID int64) (*Balance, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var b Balance
	err := r.db.GetContext(ctx2, &b, `
		SELECT telegram_id,
		       (balance * 100)::bigint AS balance_cents,
		       listing_packages_balance,
		       has_used_free_ad
		FROM users
		WHERE telegram_id = $1
	`, telegramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: get balance", ErrInternal)
	}
	return &b, nil
}

// ListTransactions returns a user's ledger history, newest first
func (r *Repository) ListTransactions(ctx context.Context, telegramID int64, limit, offset int) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, telegram_id, type, amount, currency, status, description, created_at, completed_at
		FROM transactions
		WHERE telegram_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, telegramID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}
	return transactions, nil
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

func (r *Repository) insertTransaction(ctx context.Context, tx *sqlx.Tx, telegramID, signedCents int64, txType TransactionType, description string) error {
	if description == "" {
		description = "balance adjustment"
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, telegram_id, type, amount, currency, status, description, created_at, completed_at)
		VALUES (gen_random_uuid(), $1, $2, $3::numeric / 100, 'EUR', 'completed', $4, now(), now())
	`, telegramID, string(txType), signedCents, description)
	if err != nil {
		return fmt.Errorf("%w: insert transaction", ErrInternal)
	}
	return nil
}
