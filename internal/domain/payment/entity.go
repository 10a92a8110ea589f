package payment

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents invoice payment status
type Status string

const (
	StatusCreated Status = "created"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Purpose routes a settled invoice to its fulfillment
type Purpose string

const (
	PurposeTopup     Purpose = "topup"
	PurposePackage   Purpose = "package"
	PurposePromotion Purpose = "promotion"
)

// JSONRawMessage handles NULL json fields from DB
type JSONRawMessage []byte

func (j *JSONRawMessage) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("unsupported type: %T", src)
	}
	return nil
}

func (j JSONRawMessage) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// Payment is the local record of a provider-issued invoice. Created with
// status=created when the invoice is issued; transitions to success exactly
// once. Never deleted.
type Payment struct {
	InvoiceID   string         `db:"invoice_id" json:"invoice_id"`
	TelegramID  int64          `db:"telegram_id" json:"telegram_id"`
	Amount      int64          `db:"amount" json:"amount"` // provider minor units
	AmountEur   float64        `db:"amount_eur" json:"amount_eur"`
	Status      Status         `db:"status" json:"status"`
	Purpose     Purpose        `db:"purpose" json:"purpose"`
	PurchaseID  uuid.NullUUID  `db:"purchase_id" json:"purchase_id,omitempty"`
	WebhookData JSONRawMessage `db:"webhook_data" json:"webhook_data,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	CompletedAt sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
}

// IsSettled reports whether the invoice reached a terminal state
func (p *Payment) IsSettled() bool {
	return p.Status == StatusSuccess || p.Status == StatusFailed
}

// AmountCents returns the invoice amount as EUR cents
func (p *Payment) AmountCents() int64 {
	return p.Amount
}
