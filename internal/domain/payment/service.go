package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/tgmarket/market-api/internal/domain/ledger"
	"github.com/tgmarket/market-api/internal/metrics"
	"github.com/tgmarket/market-api/internal/pkg/monopay"
)

// InvoiceProvider is the external payment provider surface the service needs
type InvoiceProvider interface {
	CreateInvoice(ctx context.Context, req monopay.CreateInvoiceRequest) (*monopay.CreateInvoiceResponse, error)
	GetInvoiceStatus(ctx context.Context, invoiceID string) (*monopay.InvoiceStatus, error)
}

// Fulfiller settles a package or promotion purchase alongside its invoice.
// FulfillTx grants on success, CancelTx fails the pending purchase when the
// invoice ends unsuccessfully. Implemented by the purchase processor; both
// run inside the same database transaction as the payment settlement.
type Fulfiller interface {
	FulfillTx(ctx context.Context, tx *sqlx.Tx, p *Payment) error
	CancelTx(ctx context.Context, tx *sqlx.Tx, p *Payment) error
}

// Service is the invoice gateway adapter and the webhook/poll reconciler
type Service struct {
	repo      *Repository
	provider  InvoiceProvider
	ledger    *ledger.Service
	fulfiller Fulfiller
}

func NewService(repo *Repository, provider InvoiceProvider, ledgerSvc *ledger.Service) *Service {
	return &Service{repo: repo, provider: provider, ledger: ledgerSvc}
}

// SetFulfiller breaks the construction cycle with the purchase processor
func (s *Service) SetFulfiller(f Fulfiller) {
	s.fulfiller = f
}

// InvoiceRef is what the caller needs to send the user to the payment page
type InvoiceRef struct {
	InvoiceID string `json:"invoiceId"`
	PageURL   string `json:"pageUrl"`
}

// CreateInvoice asks the provider for an invoice and records it locally.
// Ordering matters: provider call first, then the durable write, then the
// response — a write failure after the provider issued the invoice leaves an
// orphan that the manual status poll can still reconcile by invoice id.
func (s *Service) CreateInvoice(ctx context.Context, telegramID, cents int64, purpose Purpose, purchaseID uuid.NullUUID, description string) (*InvoiceRef, error) {
	if cents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvoiceCreationFailed)
	}

	reference := string(purpose) + ":" + uuid.New().String()
	if purchaseID.Valid {
		reference = string(purpose) + ":" + purchaseID.UUID.String()
	}

	resp, err := s.provider.CreateInvoice(ctx, monopay.CreateInvoiceRequest{
		Amount:      cents,
		Reference:   reference,
		Destination: description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvoiceCreationFailed, err)
	}

	p := &Payment{
		InvoiceID:  resp.InvoiceID,
		TelegramID: telegramID,
		Amount:     cents,
		AmountEur:  ledger.Eur(cents),
		Status:     StatusCreated,
		Purpose:    purpose,
		PurchaseID: purchaseID,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		// The provider invoice exists but we lost the record; the invoice id
		// in the log is the handle for reconciling the orphan.
		log.Error().Err(err).Str("invoice_id", resp.InvoiceID).Int64("telegram_id", telegramID).Msg("failed to persist issued invoice")
		return nil, fmt.Errorf("persist invoice %s: %w", resp.InvoiceID, err)
	}

	log.Info().Str("invoice_id", resp.InvoiceID).Str("purpose", string(purpose)).Int64("cents", cents).Msg("invoice created")
	return &InvoiceRef{InvoiceID: resp.InvoiceID, PageURL: resp.PageURL}, nil
}

// CreateTopupInvoice issues a balance top-up invoice
func (s *Service) CreateTopupInvoice(ctx context.Context, telegramID, cents int64) (*InvoiceRef, error) {
	return s.CreateInvoice(ctx, telegramID, cents, PurposeTopup, uuid.NullUUID{}, "Balance top-up")
}

// Reconcile turns a reported invoice status into at most one local effect.
// Both triggers (webhook push and manual poll) funnel through here; a
// duplicate success report is a logged no-op.
func (s *Service) Reconcile(ctx context.Context, invoiceID, providerStatus string, rawEvent []byte) error {
	status := Status(monopay.NormalizeStatus(providerStatus))

	tx, err := s.repo.DB().BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin reconcile tx: %w", err)
	}
	defer tx.Rollback()

	p, err := s.repo.SettleTx(ctx, tx, invoiceID, status, rawEvent)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			metrics.DuplicateWebhooksTotal.Inc()
			log.Info().Str("invoice_id", invoiceID).Msg("invoice already settled, skipping")
			return nil
		}
		return err
	}

	switch {
	case p.Status == StatusSuccess:
		if err := s.fulfill(ctx, tx, p); err != nil {
			return fmt.Errorf("fulfill invoice %s: %w", invoiceID, err)
		}
	case p.Status == StatusFailed && p.PurchaseID.Valid:
		// A pending purchase must not outlive its invoice, or the listing
		// delete guard would never release.
		if err := s.cancel(ctx, tx, p); err != nil {
			return fmt.Errorf("cancel purchase for invoice %s: %w", invoiceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconcile tx: %w", err)
	}

	metrics.PaymentsReconciledTotal.WithLabelValues(string(p.Status), string(p.Purpose)).Inc()
	log.Info().Str("invoice_id", invoiceID).Str("status", string(p.Status)).Str("purpose", string(p.Purpose)).Msg("invoice reconciled")
	return nil
}

func (s *Service) fulfill(ctx context.Context, tx *sqlx.Tx, p *Payment) error {
	switch p.Purpose {
	case PurposeTopup:
		return s.ledger.CreditTx(ctx, tx, p.TelegramID, p.AmountCents(), ledger.TransactionTypePayment, "Balance top-up, invoice "+p.InvoiceID)
	case PurposePackage, PurposePromotion:
		if s.fulfiller == nil {
			return fmt.Errorf("%w: no fulfiller configured", ErrInternal)
		}
		return s.fulfiller.FulfillTx(ctx, tx, p)
	default:
		return fmt.Errorf("%w: unknown purpose %q", ErrInternal, p.Purpose)
	}
}

func (s *Service) cancel(ctx context.Context, tx *sqlx.Tx, p *Payment) error {
	if s.fulfiller == nil {
		return fmt.Errorf("%w: no fulfiller configured", ErrInternal)
	}
	return s.fulfiller.CancelTx(ctx, tx, p)
}

// CheckInvoice is the user-initiated manual poll. It asks the provider for
// the current status, feeds the reconciler and returns the fresh record.
func (s *Service) CheckInvoice(ctx context.Context, telegramID int64, invoiceID string) (*Payment, error) {
	p, err := s.repo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if p.TelegramID != telegramID {
		return nil, ErrNotFound
	}

	if p.Status == StatusSuccess {
		return p, nil
	}

	providerStatus, err := s.provider.GetInvoiceStatus(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("poll invoice %s: %w", invoiceID, err)
	}

	if err := s.Reconcile(ctx, invoiceID, providerStatus.Status, nil); err != nil {
		return nil, err
	}

	return s.repo.GetByInvoiceID(ctx, invoiceID)
}
