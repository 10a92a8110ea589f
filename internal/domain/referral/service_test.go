package referral

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/tgmarket/market-api/internal/domain/ledger"
)

func setupReferralMock(t *testing.T) (*Service, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	svc := NewService(NewRepository(sqlxDB), ledger.NewService(ledger.NewRepository(sqlxDB)))

	closer := func() { sqlxDB.Close() }
	return svc, mock, closer
}

func TestRewardFirstApprovalPaysOnce(t *testing.T) {
	svc, mock, close := setupReferralMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE referrals").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"referrer_telegram_id"}).AddRow(int64(7)))
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(7), int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := svc.RewardFirstApproval(context.Background(), 42)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardFirstApprovalNoopWhenAlreadyPaid(t *testing.T) {
	svc, mock, close := setupReferralMock(t)
	defer close()

	mock.ExpectBegin()
	// Flag already set, or no referral recorded at all
	mock.ExpectQuery("UPDATE referrals").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := svc.RewardFirstApproval(context.Background(), 42)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordIgnoresSelfReferral(t *testing.T) {
	svc, _, close := setupReferralMock(t)
	defer close()

	// No INSERT expected; a self-referral never reaches the database
	err := svc.Record(context.Background(), 42, 42)
	require.NoError(t, err)
}
