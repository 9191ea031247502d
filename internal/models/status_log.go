package models

import "time"

// StatusLog is the append-only audit trail of an order. Rows are never
// updated or deleted; every status or payment transition appends exactly
// one entry in the same transaction as the order update.
type StatusLog struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	OrderID   uint        `json:"order_id" gorm:"not null;index"`
	Status    OrderStatus `json:"status" gorm:"type:varchar(24);not null"`
	Actor     Actor       `json:"actor" gorm:"type:varchar(16);not null"`
	Channel   string      `json:"channel"`
	Note      string      `json:"note" gorm:"type:text"`
	CreatedAt time.Time   `json:"created_at"`
}

type Actor string

const (
	ActorCustomer Actor = "CUSTOMER"
	ActorAdmin    Actor = "ADMIN"
	ActorSystem   Actor = "SYSTEM"
)
