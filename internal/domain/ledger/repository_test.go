package ledger

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupLedgerMock(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func TestDebitInsufficientBalance(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	// Conditional debit matches no row when the balance is short
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42), int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Debit(context.Background(), 42, 500, TransactionTypePurchase, "test debit")
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitWritesAuditRow(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42), int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(int64(42), "purchase", int64(-500), "test debit").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Debit(context.Background(), 42, 500, TransactionTypePurchase, "test debit")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectRollback()
	err := repo.Credit(context.Background(), 42, 0, TransactionTypePayment, "zero")
	require.ErrorIs(t, err, ErrInvalidAmount)

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = repo.Credit(context.Background(), 42, -100, TransactionTypePayment, "negative")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestConsumeFreeAdOnlyOnce(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	// Flag already flipped: conditional update touches nothing
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := repo.db.Beginx()
	require.NoError(t, err)

	err = repo.ConsumeFreeAdTx(context.Background(), tx, 42)
	require.ErrorIs(t, err, ErrFreeAdUsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitPackagesInsufficient(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").
		WithArgs(int64(42), 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := repo.db.Beginx()
	require.NoError(t, err)

	err = repo.DebitPackagesTx(context.Background(), tx, 42, 1)
	require.ErrorIs(t, err, ErrInsufficientPackages)
	require.NoError(t, mock.ExpectationsWereMet())
}
