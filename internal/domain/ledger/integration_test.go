package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/tgmarket/market-api/internal/domain/ledger"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("db not available: %v", err)
	}
	return db
}

func cleanupTestDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	db.Exec("DELETE FROM transactions")
	db.Exec("DELETE FROM users")
	db.Close()
}

func createTestUser(t *testing.T, db *sqlx.DB, telegramID int64) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO users (telegram_id, username, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (telegram_id) DO NOTHING
	`, telegramID, fmt.Sprintf("ledger_test_%d", telegramID))
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
}

// Ten workers race to spend from a balance that covers five debits. Exactly
// five must win; the rest see ErrInsufficientBalance, never a negative
// balance.
func TestConcurrentDebits(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	const userID int64 = 900001
	createTestUser(t, db, userID)

	svc := ledger.NewService(ledger.NewRepository(db))

	if err := svc.Credit(context.Background(), userID, 500, ledger.TransactionTypePayment, "seed"); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	success := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := svc.Debit(context.Background(), userID, 100, ledger.TransactionTypePurchase, fmt.Sprintf("spend-%d", i))
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ledger.ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if success != 5 {
		t.Errorf("expected exactly 5 successful debits, got %d", success)
	}

	balance, err := svc.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if balance.BalanceCents != 0 {
		t.Errorf("expected zero balance, got %d cents", balance.BalanceCents)
	}
}

func TestFreeAdConsumedOnce(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	const userID int64 = 900002
	createTestUser(t, db, userID)

	repo := ledger.NewRepository(db)

	tx, err := db.Beginx()
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if err := repo.ConsumeFreeAdTx(context.Background(), tx, userID); err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	tx, err = db.Beginx()
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	defer tx.Rollback()
	if err := repo.ConsumeFreeAdTx(context.Background(), tx, userID); !errors.Is(err, ledger.ErrFreeAdUsed) {
		t.Fatalf("expected ErrFreeAdUsed, got %v", err)
	}
}
