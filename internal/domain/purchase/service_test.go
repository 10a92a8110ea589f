package purchase

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/tgmarket/market-api/internal/domain/ledger"
	"github.com/tgmarket/market-api/internal/domain/payment"
)

type stubActivator struct {
	validateErr error
	activated   bool
}

func (a *stubActivator) ValidatePromotable(ctx context.Context, listingID uuid.UUID, ownerID int64) error {
	return a.validateErr
}

func (a *stubActivator) ActivatePromotionTx(ctx context.Context, tx *sqlx.Tx, listingID uuid.UUID, promotionType string, ends time.Time) error {
	a.activated = true
	return nil
}

func setupPurchaseMock(t *testing.T, activator PromotionActivator) (*Service, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)
	ledgerSvc := ledger.NewService(ledger.NewRepository(sqlxDB))
	svc := NewService(repo, ledgerSvc, nil, activator)

	closer := func() { sqlxDB.Close() }
	return svc, mock, closer
}

func TestPurchasePackageFromBalance(t *testing.T) {
	svc, mock, close := setupPurchaseMock(t, &stubActivator{})
	defer close()

	mock.ExpectBegin()
	// EUR debit for the pack price
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42), int64(800)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// Slot credit
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO package_purchases").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT telegram_id").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"telegram_id", "balance_cents", "listing_packages_balance", "has_used_free_ad"}).
			AddRow(int64(42), int64(200), 5, true))

	res, err := svc.PurchasePackage(context.Background(), 42, "pack_5", PaymentMethodBalance)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.InDelta(t, 2.0, res.NewBalance, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchasePackageInsufficientBalance(t *testing.T) {
	svc, mock, close := setupPurchaseMock(t, &stubActivator{})
	defer close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42), int64(1400)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.PurchasePackage(context.Background(), 42, "pack_10", PaymentMethodBalance)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchasePackageRejectsUnknownType(t *testing.T) {
	svc, _, close := setupPurchaseMock(t, &stubActivator{})
	defer close()

	_, err := svc.PurchasePackage(context.Background(), 42, "mega", PaymentMethodBalance)
	require.ErrorIs(t, err, ErrInvalidPackageType)
}

func TestPurchasePromotionFromBalanceActivates(t *testing.T) {
	activator := &stubActivator{}
	svc, mock, close := setupPurchaseMock(t, activator)
	defer close()

	listingID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42), int64(800)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO promotion_purchases").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT telegram_id").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"telegram_id", "balance_cents", "listing_packages_balance", "has_used_free_ad"}).
			AddRow(int64(42), int64(0), 0, true))

	res, err := svc.PurchasePromotion(context.Background(), 42, "vip", listingID, PaymentMethodBalance)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, activator.activated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchasePromotionRejectsForeignListing(t *testing.T) {
	svc, _, close := setupPurchaseMock(t, &stubActivator{validateErr: context.DeadlineExceeded})
	defer close()

	_, err := svc.PurchasePromotion(context.Background(), 42, "vip", uuid.New(), PaymentMethodBalance)
	require.ErrorIs(t, err, ErrListingNotPromotable)
}

func TestFulfillPackageCreditsSlots(t *testing.T) {
	svc, mock, close := setupPurchaseMock(t, &stubActivator{})
	defer close()

	purchaseID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE package_purchases").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "telegram_id", "package_type", "amount_eur", "payment_method",
			"status", "invoice_id", "created_at", "completed_at",
		}).AddRow(purchaseID, int64(42), "pack_5", 8.0, "direct", "completed", "inv_9", now, now))
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	db := svc.repo.DB()
	tx, err := db.Beginx()
	require.NoError(t, err)

	p := &payment.Payment{
		InvoiceID:  "inv_9",
		TelegramID: 42,
		Purpose:    payment.PurposePackage,
		PurchaseID: uuid.NullUUID{UUID: purchaseID, Valid: true},
	}
	require.NoError(t, svc.FulfillTx(context.Background(), tx, p))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelFailsPendingPromotionPurchase(t *testing.T) {
	svc, mock, close := setupPurchaseMock(t, &stubActivator{})
	defer close()

	purchaseID := uuid.New()

	mock.ExpectBegin()
	// The pending row must leave 'pending' so the listing delete guard releases
	mock.ExpectExec("UPDATE promotion_purchases").
		WithArgs(purchaseID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := svc.repo.DB().Beginx()
	require.NoError(t, err)

	p := &payment.Payment{
		InvoiceID:  "inv_7",
		TelegramID: 42,
		Purpose:    payment.PurposePromotion,
		PurchaseID: uuid.NullUUID{UUID: purchaseID, Valid: true},
	}
	require.NoError(t, svc.CancelTx(context.Background(), tx, p))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelLeavesCompletedPurchaseUntouched(t *testing.T) {
	svc, mock, close := setupPurchaseMock(t, &stubActivator{})
	defer close()

	purchaseID := uuid.New()

	mock.ExpectBegin()
	// Purchase already completed by an earlier success settlement
	mock.ExpectExec("UPDATE package_purchases").
		WithArgs(purchaseID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := svc.repo.DB().Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	p := &payment.Payment{
		InvoiceID:  "inv_8",
		Purpose:    payment.PurposePackage,
		PurchaseID: uuid.NullUUID{UUID: purchaseID, Valid: true},
	}
	require.NoError(t, svc.CancelTx(context.Background(), tx, p))
}

func TestListPackagePurchases(t *testing.T) {
	svc, mock, close := setupPurchaseMock(t, &stubActivator{})
	defer close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM package_purchases").
		WithArgs(int64(42), 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "telegram_id", "package_type", "amount_eur", "payment_method",
			"status", "invoice_id", "created_at", "completed_at",
		}).AddRow(uuid.New(), int64(42), "pack_5", 8.0, "direct", "completed", "inv_1", now, now))

	purchases, err := svc.ListPackagePurchases(context.Background(), 42, 50, 0)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	require.Equal(t, PackagePack5, purchases[0].PackageType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfillIsIdempotentPerPurchase(t *testing.T) {
	svc, mock, close := setupPurchaseMock(t, &stubActivator{})
	defer close()

	purchaseID := uuid.New()

	mock.ExpectBegin()
	// Purchase already advanced past pending by an earlier settlement
	mock.ExpectQuery("UPDATE package_purchases").
		WillReturnError(sql.ErrNoRows)

	tx, err := svc.repo.DB().Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	p := &payment.Payment{
		InvoiceID:  "inv_9",
		Purpose:    payment.PurposePackage,
		PurchaseID: uuid.NullUUID{UUID: purchaseID, Valid: true},
	}
	require.NoError(t, svc.FulfillTx(context.Background(), tx, p))
}
