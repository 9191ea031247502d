package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is an admin-entered cost against an order, used to compute
// realized profit after fulfillment.
type Expense struct {
	ID          uint                `json:"id" gorm:"primaryKey"`
	OrderID     uint                `json:"order_id" gorm:"not null;index"`
	Description string              `json:"description" gorm:"not null"`
	Cost        decimal.Decimal     `json:"cost" gorm:"type:numeric(12,2);not null"`
	DeliveryFee decimal.NullDecimal `json:"delivery_fee" gorm:"type:numeric(12,2)"`
	EvidenceURL string              `json:"evidence_url"`
	CreatedBy   uint                `json:"created_by" gorm:"not null"`
	CreatedAt   time.Time           `json:"created_at"`
}
