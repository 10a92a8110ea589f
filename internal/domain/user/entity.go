package user

import (
	"database/sql"
	"time"
)

// User is a mini-app account keyed by telegram id. Balance columns are
// mutated exclusively through the ledger and the purchase processor.
type User struct {
	TelegramID      int64          `db:"telegram_id" json:"telegram_id"`
	Username        sql.NullString `db:"username" json:"-"`
	FirstName       string         `db:"first_name" json:"first_name"`
	Balance         float64        `db:"balance" json:"balance"`
	ListingPackages int            `db:"listing_packages_balance" json:"listing_packages_balance"`
	HasUsedFreeAd   bool           `db:"has_used_free_ad" json:"has_used_free_ad"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// PublicUsername returns the username or empty string
func (u *User) PublicUsername() string {
	if u.Username.Valid {
		return u.Username.String
	}
	return ""
}
