package referral

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// rewardCents is the fixed referrer payout, credited once per referred user
const rewardCents int64 = 100

type Referral struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	ReferrerTelegramID int64        `db:"referrer_telegram_id" json:"referrer_telegram_id"`
	ReferredTelegramID int64        `db:"referred_telegram_id" json:"referred_telegram_id"`
	RewardPaid         bool         `db:"reward_paid" json:"reward_paid"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	RewardPaidAt       sql.NullTime `db:"reward_paid_at" json:"reward_paid_at,omitempty"`
}

// Stats is what a referrer sees about their link
type Stats struct {
	Invited  int   `db:"invited" json:"invited"`
	Rewarded int   `db:"rewarded" json:"rewarded"`
	Earned   int64 `json:"earned_cents"`
}
