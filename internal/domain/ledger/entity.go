package ledger

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionTypePayment  TransactionType = "payment"
	TransactionTypeRefund   TransactionType = "refund"
	TransactionTypePurchase TransactionType = "purchase"
)

// Transaction is an append-only ledger row. One row per balance mutation,
// never updated after creation.
type Transaction struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	TelegramID  int64           `db:"telegram_id" json:"telegram_id"`
	Type        TransactionType `db:"type" json:"type"`
	Amount      float64         `db:"amount" json:"amount"` // signed EUR delta
	Currency    string          `db:"currency" json:"currency"`
	Status      string          `db:"status" json:"status"`
	Description string          `db:"description" json:"description"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	CompletedAt sql.NullTime    `db:"completed_at" json:"completed_at,omitempty"`
}

// Balance is a user's spendable state
type Balance struct {
	TelegramID      int64 `db:"telegram_id" json:"telegram_id"`
	BalanceCents    int64 `db:"balance_cents" json:"balance_cents"`
	ListingPackages int   `db:"listing_packages_balance" json:"listing_packages_balance"`
	HasUsedFreeAd   bool  `db:"has_used_free_ad" json:"has_used_free_ad"`
}

// Eur renders cents as a decimal EUR amount for API payloads
func Eur(cents int64) float64 {
	return float64(cents) / 100
}
