package listing

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
)

var listingTestColumns = []string{
	"id", "telegram_id", "source", "title", "description", "price", "city", "category",
	"status", "moderation_status", "rejection_reason", "paid_with", "published_at",
	"expires_at", "promotion_type", "promotion_ends", "created_at", "updated_at",
}

func listingRow(id uuid.UUID, owner int64, status Status, paidWith PaidWith) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(listingTestColumns).
		AddRow(id, owner, "marketplace", "Bike", "A fine bike for sale", 120.0, "Berlin", "sports",
			status, "pending", nil, paidWith, nil, nil, "none", nil, now, now)
}

type stubChecker struct {
	pending bool
}

func (c *stubChecker) HasPendingPromotionForListing(ctx context.Context, listingID uuid.UUID) (bool, error) {
	return c.pending, nil
}

func setupListingMock(t *testing.T) (*Service, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)
	ledgerSvc := ledger.NewService(ledger.NewRepository(sqlxDB))
	svc := NewService(repo, ledgerSvc, nil, 720*time.Hour)

	closer := func() { sqlxDB.Close() }
	return svc, mock, closer
}

func submitReq() SubmitRequest {
	return SubmitRequest{
		Title:       "Bike",
		Description: "A fine bike for sale",
		Price:       120,
		City:        "Berlin",
		Category:    "sports",
	}
}

func TestSubmitConsumesFreeAdFirst(t *testing.T) {
	svc, mock, close := setupListingMock(t)
	defer close()

	mock.ExpectBegin()
	// Free ad still available: flag flip hits one row
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO listings").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res, err := svc.Submit(context.Background(), 42, submitReq())
	require.NoError(t, err)
	require.False(t, res.NeedsPackage)
	require.NotNil(t, res.Listing)
	require.Equal(t, PaidWithFree, res.Listing.PaidWith)
	require.Equal(t, StatusPendingModeration, res.Listing.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitFallsBackToPackageSlot(t *testing.T) {
	svc, mock, close := setupListingMock(t)
	defer close()

	mock.ExpectBegin()
	// Free ad already used
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// One slot debited instead
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO listings").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res, err := svc.Submit(context.Background(), 42, submitReq())
	require.NoError(t, err)
	require.Equal(t, PaidWithPackage, res.Listing.PaidWith)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitWithoutSlotAnswersNeedsPackage(t *testing.T) {
	svc, mock, close := setupListingMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42), 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	res, err := svc.Submit(context.Background(), 42, submitReq())
	require.NoError(t, err)
	require.True(t, res.NeedsPackage)
	require.Nil(t, res.Listing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectRefundsPackageSlot(t *testing.T) {
	svc, mock, close := setupListingMock(t)
	defer close()

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE listings").
		WillReturnRows(listingRow(id, 42, StatusRejected, PaidWithPackage))
	// Slot back plus a zero-amount refund row in the audit trail
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	l, err := svc.Reject(context.Background(), id, "spam")
	require.NoError(t, err)
	require.Equal(t, int64(42), l.TelegramID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectRestoresFreeAd(t *testing.T) {
	svc, mock, close := setupListingMock(t)
	defer close()

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE listings").
		WillReturnRows(listingRow(id, 42, StatusRejected, PaidWithFree))
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := svc.Reject(context.Background(), id, "duplicate")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectRequiresReason(t *testing.T) {
	svc, _, close := setupListingMock(t)
	defer close()

	_, err := svc.Reject(context.Background(), uuid.New(), "")
	require.ErrorIs(t, err, ErrReasonRequired)
}

func TestApproveOnlyFromPendingModeration(t *testing.T) {
	svc, mock, close := setupListingMock(t)
	defer close()

	mock.ExpectQuery("UPDATE listings").
		WillReturnError(sql.ErrNoRows)

	_, err := svc.Approve(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeleteRefusedWhilePromotionReconciling(t *testing.T) {
	svc, mock, close := setupListingMock(t)
	defer close()

	svc.SetPromotionChecker(&stubChecker{pending: true})

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM listings").
		WillReturnRows(listingRow(id, 42, StatusActive, PaidWithPackage))

	err := svc.Delete(context.Background(), 42, id, false)
	require.ErrorIs(t, err, ErrReconciling)
}

func TestDeleteForbiddenForOtherUser(t *testing.T) {
	svc, mock, close := setupListingMock(t)
	defer close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM listings").
		WillReturnRows(listingRow(id, 42, StatusActive, PaidWithPackage))

	err := svc.Delete(context.Background(), 77, id, false)
	require.ErrorIs(t, err, ErrForbidden)
}
