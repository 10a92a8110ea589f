package payment

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
	"github.com/tgmarket/market-api/internal/pkg/monopay"
)

var paymentColumns = []string{
	"invoice_id", "telegram_id", "amount", "amount_eur", "status", "purpose",
	"purchase_id", "webhook_data", "created_at", "completed_at",
}

type stubProvider struct {
	created *monopay.CreateInvoiceResponse
	status  *monopay.InvoiceStatus
	err     error
}

func (p *stubProvider) CreateInvoice(ctx context.Context, req monopay.CreateInvoiceRequest) (*monopay.CreateInvoiceResponse, error) {
	return p.created, p.err
}

func (p *stubProvider) GetInvoiceStatus(ctx context.Context, invoiceID string) (*monopay.InvoiceStatus, error) {
	return p.status, p.err
}

type stubFulfiller struct {
	fulfilled int
	cancelled int
}

func (f *stubFulfiller) FulfillTx(ctx context.Context, tx *sqlx.Tx, p *Payment) error {
	f.fulfilled++
	return nil
}

func (f *stubFulfiller) CancelTx(ctx context.Context, tx *sqlx.Tx, p *Payment) error {
	f.cancelled++
	return nil
}

func setupPaymentMock(t *testing.T) (*Service, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)
	ledgerSvc := ledger.NewService(ledger.NewRepository(sqlxDB))
	svc := NewService(repo, &stubProvider{}, ledgerSvc)

	closer := func() { sqlxDB.Close() }
	return svc, mock, closer
}

func TestReconcileTopupCreditsBalance(t *testing.T) {
	svc, mock, close := setupPaymentMock(t)
	defer close()

	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE payments").
		WillReturnRows(sqlmock.NewRows(paymentColumns).
			AddRow("inv_1", int64(42), int64(500), 5.0, "success", "topup", nil, nil, now, now))
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42), int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := svc.Reconcile(context.Background(), "inv_1", "success", []byte(`{"invoiceId":"inv_1","status":"success"}`))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileDuplicateSuccessIsNoop(t *testing.T) {
	svc, mock, close := setupPaymentMock(t)
	defer close()

	now := time.Now()

	mock.ExpectBegin()
	// The conditional settle skips invoices already marked success
	mock.ExpectQuery("UPDATE payments").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM payments").
		WillReturnRows(sqlmock.NewRows(paymentColumns).
			AddRow("inv_1", int64(42), int64(500), 5.0, "success", "topup", nil, nil, now, now))
	mock.ExpectRollback()

	err := svc.Reconcile(context.Background(), "inv_1", "success", nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileFailureSkipsFulfillment(t *testing.T) {
	svc, mock, close := setupPaymentMock(t)
	defer close()

	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE payments").
		WillReturnRows(sqlmock.NewRows(paymentColumns).
			AddRow("inv_2", int64(42), int64(500), 5.0, "failed", "topup", nil, nil, now, nil))
	mock.ExpectCommit()

	err := svc.Reconcile(context.Background(), "inv_2", "failure", nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileFailedPromotionCancelsPurchase(t *testing.T) {
	svc, mock, close := setupPaymentMock(t)
	defer close()

	fulfiller := &stubFulfiller{}
	svc.SetFulfiller(fulfiller)

	purchaseID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE payments").
		WillReturnRows(sqlmock.NewRows(paymentColumns).
			AddRow("inv_4", int64(42), int64(300), 3.0, "failed", "promotion",
				uuid.NullUUID{UUID: purchaseID, Valid: true}, nil, now, nil))
	mock.ExpectCommit()

	err := svc.Reconcile(context.Background(), "inv_4", "expired", nil)
	require.NoError(t, err)
	require.Equal(t, 1, fulfiller.cancelled)
	require.Zero(t, fulfiller.fulfilled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileLateProcessingKeepsFailedTerminal(t *testing.T) {
	svc, mock, close := setupPaymentMock(t)
	defer close()

	now := time.Now()

	mock.ExpectBegin()
	// Non-terminal report against a failed invoice matches no row
	mock.ExpectQuery("UPDATE payments").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM payments").
		WillReturnRows(sqlmock.NewRows(paymentColumns).
			AddRow("inv_5", int64(42), int64(500), 5.0, "failed", "topup", nil, nil, now, nil))
	mock.ExpectRollback()

	err := svc.Reconcile(context.Background(), "inv_5", "processing", nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcilePackageWithoutFulfillerFails(t *testing.T) {
	svc, mock, close := setupPaymentMock(t)
	defer close()

	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE payments").
		WillReturnRows(sqlmock.NewRows(paymentColumns).
			AddRow("inv_3", int64(42), int64(800), 8.0, "success", "package", nil, nil, now, now))
	mock.ExpectRollback()

	err := svc.Reconcile(context.Background(), "inv_3", "success", nil)
	require.Error(t, err)
}
