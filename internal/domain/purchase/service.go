package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/tgmarket/market-api/internal/domain/ledger"
	"github.com/tgmarket/market-api/internal/domain/payment"
	"github.com/tgmarket/market-api/internal/metrics"
)

// PromotionActivator is the listing-side surface the processor needs.
// Implemented by the listing repository.
type PromotionActivator interface {
	// ValidatePromotable fails unless the listing exists, belongs to the
	// owner and is publicly visible.
	ValidatePromotable(ctx context.Context, listingID uuid.UUID, ownerID int64) error
	ActivatePromotionTx(ctx context.Context, tx *sqlx.Tx, listingID uuid.UUID, promotionType string, ends time.Time) error
}

// Service validates and executes package and promotion purchases. Balance
// payments settle immediately; direct payments defer fulfillment to the
// payment reconciler via FulfillTx.
type Service struct {
	repo      *Repository
	ledger    *ledger.Service
	payments  *payment.Service
	activator PromotionActivator
}

func NewService(repo *Repository, ledgerSvc *ledger.Service, payments *payment.Service, activator PromotionActivator) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, payments: payments, activator: activator}
}

// Result is the outcome of a purchase request
type Result struct {
	PaymentRequired bool    `json:"paymentRequired,omitempty"`
	InvoiceID       string  `json:"invoiceId,omitempty"`
	PageURL         string  `json:"pageUrl,omitempty"`
	Success         bool    `json:"success,omitempty"`
	NewBalance      float64 `json:"newBalance,omitempty"`
}

// PurchasePackage buys a listing-slot bundle
func (s *Service) PurchasePackage(ctx context.Context, telegramID int64, rawType string, method PaymentMethod) (*Result, error) {
	packageType, info, err := PackageByType(rawType)
	if err != nil {
		return nil, err
	}

	switch method {
	case PaymentMethodBalance:
		return s.packageFromBalance(ctx, telegramID, packageType, info)
	case PaymentMethodDirect:
		return s.packageDirect(ctx, telegramID, packageType, info)
	default:
		return nil, ErrInvalidPaymentMethod
	}
}

func (s *Service) packageFromBalance(ctx context.Context, telegramID int64, packageType PackageType, info PackageInfo) (*Result, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		description := fmt.Sprintf("Listing package %s (%d slots)", packageType, info.Slots)
		if err := s.ledger.DebitTx(ctx, tx, telegramID, info.PriceCents, ledger.TransactionTypePurchase, description); err != nil {
			return err
		}
		if err := s.ledger.CreditPackagesTx(ctx, tx, telegramID, info.Slots, description); err != nil {
			return err
		}
		return s.repo.CreatePackagePurchaseTx(ctx, tx, &PackagePurchase{
			ID:            uuid.New(),
			TelegramID:    telegramID,
			PackageType:   packageType,
			AmountEur:     ledger.Eur(info.PriceCents),
			PaymentMethod: PaymentMethodBalance,
			Status:        StatusCompleted,
			CompletedAt:   sql.NullTime{Time: time.Now(), Valid: true},
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.PurchasesTotal.WithLabelValues("package", "balance", "completed").Inc()
	log.Info().Int64("telegram_id", telegramID).Str("package", string(packageType)).Msg("package purchased from balance")

	balance, err := s.ledger.GetBalance(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, NewBalance: ledger.Eur(balance.BalanceCents)}, nil
}

func (s *Service) packageDirect(ctx context.Context, telegramID int64, packageType PackageType, info PackageInfo) (*Result, error) {
	purchaseID := uuid.New()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return s.repo.CreatePackagePurchaseTx(ctx, tx, &PackagePurchase{
			ID:            purchaseID,
			TelegramID:    telegramID,
			PackageType:   packageType,
			AmountEur:     ledger.Eur(info.PriceCents),
			PaymentMethod: PaymentMethodDirect,
			Status:        StatusPending,
		})
	})
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Listing package %s (%d slots)", packageType, info.Slots)
	ref, err := s.payments.CreateInvoice(ctx, telegramID, info.PriceCents, payment.PurposePackage,
		uuid.NullUUID{UUID: purchaseID, Valid: true}, description)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AttachInvoice(ctx, "package_purchases", purchaseID, ref.InvoiceID); err != nil {
		log.Error().Err(err).Str("invoice_id", ref.InvoiceID).Msg("failed to link invoice to package purchase")
	}

	metrics.PurchasesTotal.WithLabelValues("package", "direct", "pending").Inc()
	return &Result{PaymentRequired: true, InvoiceID: ref.InvoiceID, PageURL: ref.PageURL}, nil
}

// PurchasePromotion buys a visibility boost for one listing
func (s *Service) PurchasePromotion(ctx context.Context, telegramID int64, rawType string, listingID uuid.UUID, method PaymentMethod) (*Result, error) {
	promotionType, info, err := PromotionByType(rawType)
	if err != nil {
		return nil, err
	}

	if err := s.activator.ValidatePromotable(ctx, listingID, telegramID); err != nil {
		log.Debug().Err(err).Str("listing_id", listingID.String()).Msg("listing rejected for promotion")
		return nil, ErrListingNotPromotable
	}

	switch method {
	case PaymentMethodBalance:
		return s.promotionFromBalance(ctx, telegramID, promotionType, info, listingID)
	case PaymentMethodDirect:
		return s.promotionDirect(ctx, telegramID, promotionType, info, listingID)
	default:
		return nil, ErrInvalidPaymentMethod
	}
}

func (s *Service) promotionFromBalance(ctx context.Context, telegramID int64, promotionType PromotionType, info PromotionInfo, listingID uuid.UUID) (*Result, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		description := fmt.Sprintf("Promotion %s for listing %s", promotionType, listingID)
		if err := s.ledger.DebitTx(ctx, tx, telegramID, info.PriceCents, ledger.TransactionTypePurchase, description); err != nil {
			return err
		}
		if err := s.activator.ActivatePromotionTx(ctx, tx, listingID, string(promotionType), time.Now().Add(info.Duration)); err != nil {
			return err
		}
		return s.repo.CreatePromotionPurchaseTx(ctx, tx, &PromotionPurchase{
			ID:            uuid.New(),
			TelegramID:    telegramID,
			ListingID:     listingID,
			PromotionType: promotionType,
			AmountEur:     ledger.Eur(info.PriceCents),
			PaymentMethod: PaymentMethodBalance,
			Status:        StatusActive,
			CompletedAt:   sql.NullTime{Time: time.Now(), Valid: true},
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.PurchasesTotal.WithLabelValues("promotion", "balance", "active").Inc()
	log.Info().Int64("telegram_id", telegramID).Str("promotion", string(promotionType)).Str("listing_id", listingID.String()).Msg("promotion purchased from balance")

	balance, err := s.ledger.GetBalance(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, NewBalance: ledger.Eur(balance.BalanceCents)}, nil
}

func (s *Service) promotionDirect(ctx context.Context, telegramID int64, promotionType PromotionType, info PromotionInfo, listingID uuid.UUID) (*Result, error) {
	purchaseID := uuid.New()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return s.repo.CreatePromotionPurchaseTx(ctx, tx, &PromotionPurchase{
			ID:            purchaseID,
			TelegramID:    telegramID,
			ListingID:     listingID,
			PromotionType: promotionType,
			AmountEur:     ledger.Eur(info.PriceCents),
			PaymentMethod: PaymentMethodDirect,
			Status:        StatusPending,
		})
	})
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Promotion %s for listing %s", promotionType, listingID)
	ref, err := s.payments.CreateInvoice(ctx, telegramID, info.PriceCents, payment.PurposePromotion,
		uuid.NullUUID{UUID: purchaseID, Valid: true}, description)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AttachInvoice(ctx, "promotion_purchases", purchaseID, ref.InvoiceID); err != nil {
		log.Error().Err(err).Str("invoice_id", ref.InvoiceID).Msg("failed to link invoice to promotion purchase")
	}

	metrics.PurchasesTotal.WithLabelValues("promotion", "direct", "pending").Inc()
	return &Result{PaymentRequired: true, InvoiceID: ref.InvoiceID, PageURL: ref.PageURL}, nil
}

// FulfillTx completes a direct-payment purchase once its invoice settled.
// Runs inside the reconciler's transaction; the conditional status advance
// in the purchase row is a second idempotency gate behind the payment one.
func (s *Service) FulfillTx(ctx context.Context, tx *sqlx.Tx, p *payment.Payment) error {
	if !p.PurchaseID.Valid {
		return fmt.Errorf("%w: settled %s invoice %s carries no purchase id", ErrInternal, p.Purpose, p.InvoiceID)
	}

	switch p.Purpose {
	case payment.PurposePackage:
		pp, err := s.repo.CompletePackagePurchaseTx(ctx, tx, p.PurchaseID.UUID)
		if err != nil {
			if errors.Is(err, ErrPurchaseNotFound) {
				log.Warn().Str("invoice_id", p.InvoiceID).Msg("package purchase already fulfilled or missing")
				return nil
			}
			return err
		}
		info := packageCatalog[pp.PackageType]
		description := fmt.Sprintf("Listing package %s (%d slots), invoice %s", pp.PackageType, info.Slots, p.InvoiceID)
		if err := s.ledger.CreditPackagesTx(ctx, tx, pp.TelegramID, info.Slots, description); err != nil {
			return err
		}
		metrics.PurchasesTotal.WithLabelValues("package", "direct", "completed").Inc()
		return nil

	case payment.PurposePromotion:
		pp, err := s.repo.ActivatePromotionPurchaseTx(ctx, tx, p.PurchaseID.UUID)
		if err != nil {
			if errors.Is(err, ErrPurchaseNotFound) {
				log.Warn().Str("invoice_id", p.InvoiceID).Msg("promotion purchase already fulfilled or missing")
				return nil
			}
			return err
		}
		info := promotionCatalog[pp.PromotionType]
		if err := s.activator.ActivatePromotionTx(ctx, tx, pp.ListingID, string(pp.PromotionType), time.Now().Add(info.Duration)); err != nil {
			return err
		}
		metrics.PurchasesTotal.WithLabelValues("promotion", "direct", "active").Inc()
		return nil

	default:
		return fmt.Errorf("%w: unexpected purpose %q", ErrInternal, p.Purpose)
	}
}

// CancelTx marks the purchase behind a failed or expired invoice as failed.
// Runs inside the reconciler's transaction together with the payment settle,
// so the purchase can never stay pending once its invoice is terminal. A
// purchase that already left pending is untouched.
func (s *Service) CancelTx(ctx context.Context, tx *sqlx.Tx, p *payment.Payment) error {
	if !p.PurchaseID.Valid {
		return fmt.Errorf("%w: failed %s invoice %s carries no purchase id", ErrInternal, p.Purpose, p.InvoiceID)
	}

	var (
		failed bool
		err    error
		kind   string
	)
	switch p.Purpose {
	case payment.PurposePackage:
		kind = "package"
		failed, err = s.repo.FailPackagePurchaseTx(ctx, tx, p.PurchaseID.UUID)
	case payment.PurposePromotion:
		kind = "promotion"
		failed, err = s.repo.FailPromotionPurchaseTx(ctx, tx, p.PurchaseID.UUID)
	default:
		return fmt.Errorf("%w: unexpected purpose %q", ErrInternal, p.Purpose)
	}
	if err != nil {
		return err
	}
	if failed {
		metrics.PurchasesTotal.WithLabelValues(kind, "direct", "failed").Inc()
		log.Info().Str("invoice_id", p.InvoiceID).Str("kind", kind).Msg("purchase cancelled after failed invoice")
	}
	return nil
}

// ListPackagePurchases returns the caller's package purchase history
func (s *Service) ListPackagePurchases(ctx context.Context, telegramID int64, limit, offset int) ([]PackagePurchase, error) {
	return s.repo.ListPackagePurchases(ctx, telegramID, limit, offset)
}

// HasPendingPromotionForListing is the delete-guard used by the listing domain
func (s *Service) HasPendingPromotionForListing(ctx context.Context, listingID uuid.UUID) (bool, error) {
	return s.repo.HasPendingPromotionForListing(ctx, listingID)
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
