package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                   uint                 `json:"id" gorm:"primaryKey"`
	OrderNumber          string               `json:"order_number" gorm:"unique;not null"`
	CustomerID           uint                 `json:"customer_id" gorm:"not null;index"`
	CustomerPhone        string               `json:"customer_phone"`
	DeliveryAddress      string               `json:"delivery_address"`
	TotalEstimate        decimal.Decimal      `json:"total_estimate" gorm:"type:numeric(12,2);not null"`
	ServiceFee           decimal.Decimal      `json:"service_fee" gorm:"type:numeric(12,2)"`
	DeliveryFeeEstimated decimal.Decimal      `json:"delivery_fee_estimated" gorm:"type:numeric(12,2)"`
	DeliveryFeeActual    decimal.NullDecimal  `json:"delivery_fee_actual" gorm:"type:numeric(12,2)"`
	AmountCollected      decimal.Decimal      `json:"amount_collected" gorm:"type:numeric(12,2)"`
	AmountReconciled     decimal.Decimal      `json:"amount_reconciled" gorm:"type:numeric(12,2)"`
	PaymentStatus        PaymentStatus        `json:"payment_status" gorm:"type:varchar(16);default:'PENDING';index"`
	OrderStatus          OrderStatus          `json:"order_status" gorm:"type:varchar(24);default:'DRAFT';index"`
	ReconciliationStatus ReconciliationStatus `json:"reconciliation_status" gorm:"type:varchar(16);default:'NOT_REQUIRED'"`
	MerchantRequestID    *string              `json:"merchant_request_id"`
	CheckoutRequestID    *string              `json:"checkout_request_id" gorm:"uniqueIndex"`
	MpesaReceipt         *string              `json:"mpesa_receipt" gorm:"uniqueIndex"`
	PaymentDueAt         *time.Time           `json:"payment_due_at"`
	CancellationReason   string               `json:"cancellation_reason"`
	Items                []OrderItem          `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	StatusLogs           []StatusLog          `json:"status_logs,omitempty" gorm:"foreignKey:OrderID"`
	Expenses             []Expense            `json:"expenses,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

type OrderStatus string

const (
	OrderDraft          OrderStatus = "DRAFT"
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderProcessing     OrderStatus = "PROCESSING"
	OrderShopping       OrderStatus = "SHOPPING"
	OrderOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderDelivered      OrderStatus = "DELIVERED"
	OrderCancelled      OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
	PaymentPartial  PaymentStatus = "PARTIAL"
)

type ReconciliationStatus string

const (
	ReconcileNotRequired ReconciliationStatus = "NOT_REQUIRED"
	ReconcilePending     ReconciliationStatus = "PENDING"
	ReconcileCompleted   ReconciliationStatus = "COMPLETED"
	ReconcileDiscrepancy ReconciliationStatus = "DISCREPANCY"
)

// Fulfillment moves forward one step at a time; any non-terminal
// status can be cancelled.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:          {OrderPendingPayment, OrderCancelled},
	OrderPendingPayment: {OrderProcessing, OrderCancelled},
	OrderProcessing:     {OrderShopping, OrderCancelled},
	OrderShopping:       {OrderOutForDelivery, OrderCancelled},
	OrderOutForDelivery: {OrderDelivered, OrderCancelled},
	OrderDelivered:      {},
	OrderCancelled:      {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
