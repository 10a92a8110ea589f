package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrInternal = errors.New("internal referral error")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// Create records a referral-link click. Self-referrals and repeat clicks are
// silently ignored; only the first referrer counts.
func (r *Repository) Create(ctx context.Context, referrerID, referredID int64) error {
	if referrerID == referredID {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO referrals (id, referrer_telegram_id, referred_telegram_id, reward_paid, created_at)
		VALUES (gen_random_uuid(), $1, $2, false, now())
		ON CONFLICT (referred_telegram_id) DO NOTHING
	`, referrerID, referredID)
	if err != nil {
		return fmt.Errorf("%w: create referral", ErrInternal)
	}
	return nil
}

// ClaimRewardTx flips reward_paid exactly once and returns the referrer to
// credit. sql.ErrNoRows means no referral exists or the reward was already
// paid; the caller treats both as a no-op.
func (r *Repository) ClaimRewardTx(ctx context.Context, tx *sqlx.Tx, referredID int64) (int64, error) {
	var referrerID int64
	err := tx.GetContext(ctx, &referrerID, `
		UPDATE referrals
		SET reward_paid = true, reward_paid_at = now()
		WHERE referred_telegram_id = $1 AND reward_paid = false
		RETURNING referrer_telegram_id
	`, referredID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("%w: claim reward", ErrInternal)
	}
	return referrerID, nil
}

func (r *Repository) StatsForReferrer(ctx context.Context, referrerID int64) (*Stats, error) {
	var s Stats
	err := r.db.GetContext(ctx, &s, `
		SELECT COUNT(*) AS invited,
		       COUNT(*) FILTER (WHERE reward_paid) AS rewarded
		FROM referrals
		WHERE referrer_telegram_id = $1
	`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("%w: referral stats", ErrInternal)
	}
	s.Earned = int64(s.Rewarded) * rewardCents
	return &s, nil
}
