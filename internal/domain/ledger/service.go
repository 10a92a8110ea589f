package ledger

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Service is the only path other components use to move money
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetBalance(ctx context.Context, telegramID int64) (*Balance, error) {
	return s.repo.GetBalance(ctx, telegramID)
}

func (s *Service) ListTransactions(ctx context.Context, telegramID int64, limit, offset int) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, telegramID, limit, offset)
}

func (s *Service) Credit(ctx context.Context, telegramID, cents int64, txType TransactionType, description string) error {
	if cents <= 0 {
		return ErrInvalidAmount
	}
	if err := s.repo.Credit(ctx, telegramID, cents, txType, description); err != nil {
		return err
	}
	log.Info().Int64("telegram_id", telegramID).Int64("cents", cents).Str("type", string(txType)).Msg("ledger credit applied")
	return nil
}

func (s *Service) Debit(ctx context.Context, telegramID, cents int64, txType TransactionType, description string) error {
	if cents <= 0 {
		return ErrInvalidAmount
	}
	if err := s.repo.Debit(ctx, telegramID, cents, txType, description); err != nil {
		return err
	}
	log.Info().Int64("telegram_id", telegramID).Int64("cents", cents).Str("type", string(txType)).Msg("ledger debit applied")
	return nil
}

func (s *Service) CreditPackages(ctx context.Context, telegramID int64, slots int, description string) error {
	if err := s.repo.CreditPackages(ctx, telegramID, slots, description); err != nil {
		return err
	}
	log.Info().Int64("telegram_id", telegramID).Int("slots", slots).Msg("package slots credited")
	return nil
}

// Tx variants for cross-domain atomic units (reconcile+credit, reject+refund).
// The caller owns commit/rollback.

func (s *Service) CreditTx(ctx context.Context, tx *sqlx.Tx, telegramID, cents int64, txType TransactionType, description string) error {
	return s.repo.CreditTx(ctx, tx, telegramID, cents, txType, description)
}

func (s *Service) DebitTx(ctx context.Context, tx *sqlx.Tx, telegramID, cents int64, txType TransactionType, description string) error {
	return s.repo.DebitTx(ctx, tx, telegramID, cents, txType, description)
}

func (s *Service) CreditPackagesTx(ctx context.Context, tx *sqlx.Tx, telegramID int64, slots int, description string) error {
	return s.repo.CreditPackagesTx(ctx, tx, telegramID, slots, description)
}

func (s *Service) DebitPackagesTx(ctx context.Context, tx *sqlx.Tx, telegramID int64, slots int) error {
	return s.repo.DebitPackagesTx(ctx, tx, telegramID, slots)
}

func (s *Service) ConsumeFreeAdTx(ctx context.Context, tx *sqlx.Tx, telegramID int64) error {
	return s.repo.ConsumeFreeAdTx(ctx, tx, telegramID)
}

func (s *Service) RestoreFreeAdTx(ctx context.Context, tx *sqlx.Tx, telegramID int64) error {
	return s.repo.RestoreFreeAdTx(ctx, tx, telegramID)
}

func (s *Service) RefundPackageSlotTx(ctx context.Context, tx *sqlx.Tx, telegramID int64, description string) error {
	return s.repo.RefundPackageSlotTx(ctx, tx, telegramID, description)
}
