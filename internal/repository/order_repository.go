package repository

import (
	"shop_concierge/internal/models"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransitionFunc inspects a row-locked order and decides the transition.
// It may mutate order for the caller's benefit, but persistence uses only
// the returned column map plus the returned log entry. Returning
// (nil, nil, nil) commits nothing (already in the desired state).
type TransitionFunc func(order *models.Order) (updates map[string]interface{}, logEntry *models.StatusLog, err error)

type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetDetail(id uint) (*models.Order, error)
	GetByOrderNumber(orderNumber string) (*models.Order, error)
	GetByCustomerID(customerID uint) ([]models.Order, error)
	GetAll() ([]models.Order, error)
	Apply(orderID uint, fn TransitionFunc) (*models.Order, error)
	ApplyByCheckoutRequestID(checkoutRequestID string, fn TransitionFunc) (*models.Order, error)
	ListExpiredPending(cutoff time.Time) ([]models.Order, error)
	ListUnreconciledPaid() ([]models.Order, error)
	StatusLogs(orderID uint) ([]models.StatusLog, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(order *models.Order) error {
	// Items and the initial status log are created with the order in one
	// transaction by the association writer.
	return r.db.Create(order).Error
}

func (r *orderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetDetail(id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.
		Preload("Items").
		Preload("StatusLogs", func(db *gorm.DB) *gorm.DB { return db.Order("status_logs.id ASC") }).
		Preload("Expenses").
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByOrderNumber(orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("order_number = ?", orderNumber).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByCustomerID(customerID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Where("customer_id = ?", customerID).Order("id DESC").Find(&orders).Error
	return orders, err
}

func (r *orderRepository) GetAll() ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Order("id DESC").Find(&orders).Error
	return orders, err
}

// Apply runs fn against the order row locked FOR UPDATE and commits the
// returned column updates together with the status-log append. The row
// lock serializes concurrent transitions for the same order across
// process instances; the scoped column map keeps the write from
// clobbering unrelated fields edited concurrently.
func (r *orderRepository) Apply(orderID uint, fn TransitionFunc) (*models.Order, error) {
	return r.applyWhere("id = ?", orderID, fn)
}

func (r *orderRepository) ApplyByCheckoutRequestID(checkoutRequestID string, fn TransitionFunc) (*models.Order, error) {
	return r.applyWhere("checkout_request_id = ?", checkoutRequestID, fn)
}

func (r *orderRepository) applyWhere(query string, arg interface{}, fn TransitionFunc) (*models.Order, error) {
	var order models.Order
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(query, arg).First(&order).Error; err != nil {
			return err
		}

		updates, logEntry, err := fn(&order)
		if err != nil {
			return err
		}
		if updates == nil && logEntry == nil {
			return nil
		}

		if updates != nil {
			if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if logEntry != nil {
			logEntry.OrderID = order.ID
			if err := tx.Create(logEntry).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListExpiredPending(cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.
		Where("payment_status = ?", models.PaymentPending).
		Where("payment_due_at IS NOT NULL AND payment_due_at <= ?", cutoff).
		Where("order_status <> ?", models.OrderCancelled).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) ListUnreconciledPaid() ([]models.Order, error) {
	var orders []models.Order
	err := r.db.
		Where("payment_status = ?", models.PaymentPaid).
		Where("reconciliation_status NOT IN ?", []models.ReconciliationStatus{
			models.ReconcileCompleted,
			models.ReconcileDiscrepancy,
		}).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) StatusLogs(orderID uint) ([]models.StatusLog, error) {
	var logs []models.StatusLog
	err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&logs).Error
	return logs, err
}
