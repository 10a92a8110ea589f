package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tgmarket/market-api/internal/domain/ledger"
	"github.com/tgmarket/market-api/internal/metrics"
)

// Service records referrals and pays the one-time referrer reward
type Service struct {
	repo   *Repository
	ledger *ledger.Service
}

func NewService(repo *Repository, ledgerSvc *ledger.Service) *Service {
	return &Service{repo: repo, ledger: ledgerSvc}
}

// Record satisfies the user service's referral recorder
func (s *Service) Record(ctx context.Context, referrerID, referredID int64) error {
	return s.repo.Create(ctx, referrerID, referredID)
}

// RewardFirstApproval pays the referrer after the referred user's first
// listing passes moderation. The reward_paid flip and the credit commit
// together; a missing or already-claimed referral is a no-op.
func (s *Service) RewardFirstApproval(ctx context.Context, referredID int64) error {
	tx, err := s.repo.DB().BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	referrerID, err := s.repo.ClaimRewardTx(ctx, tx, referredID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	description := fmt.Sprintf("Referral reward for inviting user %d", referredID)
	if err := s.ledger.CreditTx(ctx, tx, referrerID, rewardCents, ledger.TransactionTypePayment, description); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	metrics.ReferralRewardsTotal.Inc()
	log.Info().Int64("referrer_id", referrerID).Int64("referred_id", referredID).Msg("referral reward credited")
	return nil
}

func (s *Service) Stats(ctx context.Context, referrerID int64) (*Stats, error) {
	return s.repo.StatsForReferrer(ctx, referrerID)
}
