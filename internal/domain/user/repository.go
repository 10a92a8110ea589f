package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Upsert creates the user on first launch and refreshes the profile fields
// on every later one. Balance columns are untouched on conflict.
func (r *Repository) Upsert(ctx context.Context, telegramID int64, username, firstName string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		INSERT INTO users (telegram_id, username, first_name)
		VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = NULLIF($2, ''), first_name = $3
		RETURNING telegram_id, username, first_name, balance, listing_packages_balance, has_used_free_ad, created_at
	`, telegramID, username, firstName)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		SELECT telegram_id, username, first_name, balance, listing_packages_balance, has_used_free_ad, created_at
		FROM users
		WHERE telegram_id = $1
	`, telegramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
