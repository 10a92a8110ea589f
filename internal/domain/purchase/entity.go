package purchase

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod selects how a purchase is funded
type PaymentMethod string

const (
	PaymentMethodBalance PaymentMethod = "balance"
	PaymentMethodDirect  PaymentMethod = "direct"
)

// Status tracks a purchase attempt
type Status string

const (
	StatusPending   Status = "pending"   // waiting for invoice settlement
	StatusCompleted Status = "completed" // package slots credited
	StatusActive    Status = "active"    // promotion running on the listing
	StatusFailed    Status = "failed"    // invoice failed or expired, nothing granted
)

// PackageType tags a prepaid listing-slot bundle
type PackageType string

const (
	PackagePack1  PackageType = "pack_1"
	PackagePack5  PackageType = "pack_5"
	PackagePack10 PackageType = "pack_10"
)

// PromotionType tags a paid visibility boost
type PromotionType string

const (
	PromotionHighlighted PromotionType = "highlighted"
	PromotionTopCategory PromotionType = "top_category"
	PromotionVIP         PromotionType = "vip"
)

// PackageInfo is a price-table row
type PackageInfo struct {
	PriceCents int64
	Slots      int
}

// PromotionInfo is a price-table row
type PromotionInfo struct {
	PriceCents int64
	Duration   time.Duration
}

// Closed price tables. Unknown tags are rejected at the boundary before any
// side effect.
var packageCatalog = map[PackageType]PackageInfo{
	PackagePack1:  {PriceCents: 200, Slots: 1},
	PackagePack5:  {PriceCents: 800, Slots: 5},
	PackagePack10: {PriceCents: 1400, Slots: 10},
}

var promotionCatalog = map[PromotionType]PromotionInfo{
	PromotionHighlighted: {PriceCents: 300, Duration: 7 * 24 * time.Hour},
	PromotionTopCategory: {PriceCents: 500, Duration: 7 * 24 * time.Hour},
	PromotionVIP:         {PriceCents: 800, Duration: 14 * 24 * time.Hour},
}

// PackageByType resolves a package tag against the catalog
func PackageByType(raw string) (PackageType, PackageInfo, error) {
	t := PackageType(raw)
	info, ok := packageCatalog[t]
	if !ok {
		return "", PackageInfo{}, ErrInvalidPackageType
	}
	return t, info, nil
}

// PromotionByType resolves a promotion tag against the catalog
func PromotionByType(raw string) (PromotionType, PromotionInfo, error) {
	t := PromotionType(raw)
	info, ok := promotionCatalog[t]
	if !ok {
		return "", PromotionInfo{}, ErrInvalidPromotionType
	}
	return t, info, nil
}

// PackagePurchase records one package purchase attempt
type PackagePurchase struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	TelegramID    int64          `db:"telegram_id" json:"telegram_id"`
	PackageType   PackageType    `db:"package_type" json:"package_type"`
	AmountEur     float64        `db:"amount_eur" json:"amount_eur"`
	PaymentMethod PaymentMethod  `db:"payment_method" json:"payment_method"`
	Status        Status         `db:"status" json:"status"`
	InvoiceID     sql.NullString `db:"invoice_id" json:"invoice_id,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	CompletedAt   sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
}

// PromotionPurchase records one promotion purchase attempt
type PromotionPurchase struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	TelegramID    int64          `db:"telegram_id" json:"telegram_id"`
	ListingID     uuid.UUID      `db:"listing_id" json:"listing_id"`
	PromotionType PromotionType  `db:"promotion_type" json:"promotion_type"`
	AmountEur     float64        `db:"amount_eur" json:"amount_eur"`
	PaymentMethod PaymentMethod  `db:"payment_method" json:"payment_method"`
	Status        Status         `db:"status" json:"status"`
	InvoiceID     sql.NullString `db:"invoice_id" json:"invoice_id,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	CompletedAt   sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
}
