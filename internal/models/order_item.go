package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is created together with its order and never edited afterwards.
// ProductID is nulled when the referenced product is deleted; ItemName keeps
// the label the customer saw (or a free-text request with no product).
type OrderItem struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	OrderID      uint            `json:"order_id" gorm:"not null;index"`
	ProductID    *uint           `json:"product_id"`
	Product      *Product        `json:"product,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	ItemName     string          `json:"item_name" gorm:"not null"`
	Quantity     int             `json:"quantity" gorm:"not null"`
	UnitPrice    decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	LineEstimate decimal.Decimal `json:"line_estimate" gorm:"type:numeric(12,2);not null"`
	CreatedAt    time.Time       `json:"created_at"`
}
