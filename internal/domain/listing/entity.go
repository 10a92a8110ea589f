package listing

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Source marks where the listing was submitted from
type Source string

const (
	SourceMarketplace Source = "marketplace"
	SourceBot         Source = "bot"
)

// Status is the listing lifecycle state
type Status string

const (
	StatusDraft             Status = "draft"
	StatusPendingModeration Status = "pending_moderation"
	StatusActive            Status = "active"
	StatusRejected          Status = "rejected"
	StatusSold              Status = "sold"
	StatusExpired           Status = "expired"
	StatusHidden            Status = "hidden"
)

// ModerationStatus tracks the moderation verdict independently of the
// lifecycle state, so a sold or expired listing keeps its approval record.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// PaidWith records what submission consumed, so rejection knows what to refund
type PaidWith string

const (
	PaidWithNothing PaidWith = ""
	PaidWithFree    PaidWith = "free"
	PaidWithPackage PaidWith = "package"
)

type Listing struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	TelegramID       int64            `db:"telegram_id" json:"telegram_id"`
	Source           Source           `db:"source" json:"source"`
	Title            string           `db:"title" json:"title"`
	Description      string           `db:"description" json:"description"`
	Price            float64          `db:"price" json:"price"`
	City             string           `db:"city" json:"city"`
	Category         string           `db:"category" json:"category"`
	Status           Status           `db:"status" json:"status"`
	ModerationStatus ModerationStatus `db:"moderation_status" json:"moderation_status"`
	RejectionReason  sql.NullString   `db:"rejection_reason" json:"rejection_reason,omitempty"`
	PaidWith         PaidWith         `db:"paid_with" json:"-"`
	PublishedAt      sql.NullTime     `db:"published_at" json:"published_at,omitempty"`
	ExpiresAt        sql.NullTime     `db:"expires_at" json:"expires_at,omitempty"`
	PromotionType    string           `db:"promotion_type" json:"promotion_type"`
	PromotionEnds    sql.NullTime     `db:"promotion_ends" json:"promotion_ends,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}
