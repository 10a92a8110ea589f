package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/tgmarket/market-api/internal/domain/ledger"
	"github.com/tgmarket/market-api/internal/metrics"
	"github.com/tgmarket/market-api/internal/pkg/telegram"
)

// ReferralRewarder pays the referrer once the referred user's first listing
// passes moderation. Implemented by the referral service.
type ReferralRewarder interface {
	RewardFirstApproval(ctx context.Context, referredTelegramID int64) error
}

// PendingPromotionChecker guards deletion while a direct-payment promotion
// for the listing is still being reconciled. Implemented by the purchase
// service.
type PendingPromotionChecker interface {
	HasPendingPromotionForListing(ctx context.Context, listingID uuid.UUID) (bool, error)
}

// SubmitResult distinguishes a created listing from a refused submission that
// needs a package first.
type SubmitResult struct {
	NeedsPackage bool     `json:"needsPackage,omitempty"`
	Listing      *Listing `json:"listing,omitempty"`
}

type Service struct {
	repo       *Repository
	ledger     *ledger.Service
	rewarder   ReferralRewarder
	promotions PendingPromotionChecker
	notifier   *telegram.Notifier
	lifetime   time.Duration
}

func NewService(repo *Repository, ledgerSvc *ledger.Service, notifier *telegram.Notifier, lifetime time.Duration) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, notifier: notifier, lifetime: lifetime}
}

// SetRewarder and SetPromotionChecker break the construction cycle between
// listing, referral and purchase; wired in main.
func (s *Service) SetRewarder(r ReferralRewarder) {
	s.rewarder = r
}

func (s *Service) SetPromotionChecker(c PendingPromotionChecker) {
	s.promotions = c
}

// Submit creates a listing and sends it to moderation. The free ad is burned
// first; otherwise one package slot. Both the consumption and the insert
// commit together or not at all.
func (s *Service) Submit(ctx context.Context, telegramID int64, req SubmitRequest) (*SubmitResult, error) {
	source := Source(req.Source)
	if source == "" {
		source = SourceMarketplace
	}

	l := &Listing{
		ID:               uuid.New(),
		TelegramID:       telegramID,
		Source:           source,
		Title:            req.Title,
		Description:      req.Description,
		Price:            req.Price,
		City:             req.City,
		Category:         req.Category,
		Status:           StatusPendingModeration,
		ModerationStatus: ModerationPending,
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		paidWith, err := s.consumeSlot(ctx, tx, telegramID)
		if err != nil {
			return err
		}
		l.PaidWith = paidWith
		return s.repo.CreateTx(ctx, tx, l)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientPackages) {
			return &SubmitResult{NeedsPackage: true}, nil
		}
		return nil, err
	}

	log.Info().Int64("telegram_id", telegramID).Str("listing_id", l.ID.String()).
		Str("paid_with", string(l.PaidWith)).Msg("listing submitted for moderation")
	return &SubmitResult{Listing: l}, nil
}

// Reactivate resubmits an expired or rejected listing, consuming a free ad or
// package slot again.
func (s *Service) Reactivate(ctx context.Context, telegramID int64, id uuid.UUID) (*SubmitResult, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		paidWith, err := s.consumeSlot(ctx, tx, telegramID)
		if err != nil {
			return err
		}
		return s.repo.ResubmitTx(ctx, tx, id, telegramID, paidWith)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientPackages) {
			return &SubmitResult{NeedsPackage: true}, nil
		}
		return nil, err
	}

	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Listing: l}, nil
}

func (s *Service) consumeSlot(ctx context.Context, tx *sqlx.Tx, telegramID int64) (PaidWith, error) {
	err := s.ledger.ConsumeFreeAdTx(ctx, tx, telegramID)
	if err == nil {
		return PaidWithFree, nil
	}
	if !errors.Is(err, ledger.ErrFreeAdUsed) {
		return "", err
	}
	if err := s.ledger.DebitPackagesTx(ctx, tx, telegramID, 1); err != nil {
		return "", err
	}
	return PaidWithPackage, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Listing, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) MyListings(ctx context.Context, telegramID int64, limit, offset int) ([]Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByOwner(ctx, telegramID, limit, offset)
}

func (s *Service) Browse(ctx context.Context, filter BrowseFilter) ([]Listing, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.repo.Browse(ctx, filter)
}

func (s *Service) PendingModeration(ctx context.Context, limit, offset int) ([]Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListPendingModeration(ctx, limit, offset)
}

// Approve publishes a listing. The referral trigger, channel publish and
// owner notification run after the state change; their failures are logged,
// never propagated.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Listing, error) {
	l, err := s.repo.Approve(ctx, id, s.lifetime)
	if err != nil {
		return nil, err
	}
	metrics.ListingsModeratedTotal.WithLabelValues("approved").Inc()
	log.Info().Str("listing_id", id.String()).Int64("telegram_id", l.TelegramID).Msg("listing approved")

	s.afterApproval(ctx, l)
	return l, nil
}

func (s *Service) afterApproval(ctx context.Context, l *Listing) {
	if s.rewarder != nil {
		count, err := s.repo.CountApproved(ctx, l.TelegramID)
		if err != nil {
			log.Error().Err(err).Int64("telegram_id", l.TelegramID).Msg("approved-listing count failed, referral trigger skipped")
		} else if count == 1 {
			if err := s.rewarder.RewardFirstApproval(ctx, l.TelegramID); err != nil {
				log.Error().Err(err).Int64("telegram_id", l.TelegramID).Msg("referral reward trigger failed")
			}
		}
	}

	if s.notifier == nil || !s.notifier.Enabled() {
		return
	}

	if l.Source == SourceBot {
		text := fmt.Sprintf("📢 %s\n%s\n💶 %.2f EUR — %s", l.Title, l.Description, l.Price, l.City)
		if err := s.notifier.PublishToChannel(ctx, text); err != nil {
			log.Error().Err(err).Str("listing_id", l.ID.String()).Msg("channel publish failed")
		}
	}

	text := fmt.Sprintf("✅ Your listing \"%s\" was approved and is now live.", l.Title)
	if err := s.notifier.SendMessage(ctx, strconv.FormatInt(l.TelegramID, 10), text); err != nil {
		log.Warn().Err(err).Int64("telegram_id", l.TelegramID).Msg("owner approval notification failed")
	}
}

// Reject stores the verdict and refunds what the submission consumed, both in
// one transaction.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*Listing, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var l *Listing
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		l, err = s.repo.RejectTx(ctx, tx, id, reason)
		if err != nil {
			return err
		}
		switch l.PaidWith {
		case PaidWithFree:
			return s.ledger.RestoreFreeAdTx(ctx, tx, l.TelegramID)
		case PaidWithPackage:
			return s.ledger.RefundPackageSlotTx(ctx, tx, l.TelegramID,
				fmt.Sprintf("Slot refund, listing %s rejected", l.ID))
		default:
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	metrics.ListingsModeratedTotal.WithLabelValues("rejected").Inc()
	log.Info().Str("listing_id", id.String()).Str("paid_with", string(l.PaidWith)).Msg("listing rejected")

	if s.notifier != nil && s.notifier.Enabled() {
		text := fmt.Sprintf("❌ Your listing \"%s\" was rejected: %s", l.Title, reason)
		if err := s.notifier.SendMessage(ctx, strconv.FormatInt(l.TelegramID, 10), text); err != nil {
			log.Warn().Err(err).Int64("telegram_id", l.TelegramID).Msg("owner rejection notification failed")
		}
	}
	return l, nil
}

func (s *Service) MarkSold(ctx context.Context, telegramID int64, id uuid.UUID) error {
	return s.repo.UpdateOwnerStatus(ctx, id, telegramID, []Status{StatusActive}, StatusSold)
}

func (s *Service) Hide(ctx context.Context, telegramID int64, id uuid.UUID) error {
	return s.repo.UpdateOwnerStatus(ctx, id, telegramID, []Status{StatusActive}, StatusHidden)
}

// Delete removes a listing permanently. Refused while a direct-payment
// promotion for it is mid-reconciliation; no refunds either way.
func (s *Service) Delete(ctx context.Context, telegramID int64, id uuid.UUID, asAdmin bool) error {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !asAdmin && l.TelegramID != telegramID {
		return ErrForbidden
	}

	if s.promotions != nil {
		pending, err := s.promotions.HasPendingPromotionForListing(ctx, id)
		if err != nil {
			return err
		}
		if pending {
			return ErrReconciling
		}
	}

	return s.repo.Delete(ctx, id)
}

// ExpireSweep ends overdue listings and lapsed promotions. Called by the
// worker; exposed for tests.
func (s *Service) ExpireSweep(ctx context.Context) {
	expired, err := s.repo.ExpireActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("listing expiry sweep failed")
	} else if expired > 0 {
		metrics.ListingsExpiredTotal.Add(float64(expired))
		log.Info().Int64("count", expired).Msg("listings expired")
	}

	ended, err := s.repo.EndLapsedPromotions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("promotion lapse sweep failed")
	} else if ended > 0 {
		log.Info().Int64("count", ended).Msg("promotions ended")
	}
}

func (s *Service) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.repo.DB().BeginTxx(ctx, &sql.TxOptions{})
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
