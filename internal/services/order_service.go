package services

import (
	"errors"
	"fmt"
	"shop_concierge/internal/models"
	"shop_concierge/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StatusCache invalidates cached polling snapshots after a transition.
// Implemented by the redis client; may be nil in tests.
type StatusCache interface {
	DeleteOrderStatus(orderID uint) error
}

type CreateOrderItemInput struct {
	ProductID *uint
	ItemName  string
	Quantity  int
	UnitPrice decimal.Decimal
}

type CreateOrderInput struct {
	CustomerID           uint
	CustomerPhone        string
	DeliveryAddress      string
	ServiceFee           decimal.Decimal
	DeliveryFeeEstimated decimal.Decimal
	Channel              string
	Items                []CreateOrderItemInput
}

type StatusUpdateInput struct {
	Status   models.OrderStatus
	Note     string
	Channel  string
	Override bool
}

type OrderService interface {
	CreateOrder(input CreateOrderInput) (*models.Order, error)
	GetOrderByID(id uint) (*models.Order, error)
	GetOrderDetail(id uint) (*models.Order, error)
	GetOrdersByCustomer(customerID uint) ([]models.Order, error)
	GetAllOrders() ([]models.Order, error)
	UpdateOrderStatus(orderID uint, actor *models.User, input StatusUpdateInput) (*models.Order, []string, error)
	AddExpense(orderID uint, expense *models.Expense) error
	RealizedProfit(orderID uint) (decimal.Decimal, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	expenseRepo repository.ExpenseRepository
	cache       StatusCache
}

func NewOrderService(orderRepo repository.OrderRepository, productRepo repository.ProductRepository, expenseRepo repository.ExpenseRepository, cache StatusCache) OrderService {
	return &orderService{orderRepo: orderRepo, productRepo: productRepo, expenseRepo: expenseRepo, cache: cache}
}

func (s *orderService) CreateOrder(input CreateOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, &ValidationError{Field: "items", Message: "order must contain at least one item"}
	}

	channel := input.Channel
	if channel == "" {
		channel = "web"
	}

	items := make([]models.OrderItem, 0, len(input.Items))
	subtotal := decimal.Zero
	for i, in := range input.Items {
		if in.Quantity < 1 {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "quantity must be at least 1"}
		}

		name := in.ItemName
		unitPrice := in.UnitPrice
		if in.ProductID != nil {
			product, err := s.productRepo.GetByID(*in.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, &ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Message: "product does not exist"}
				}
				return nil, err
			}
			if name == "" {
				name = product.Name
			}
			if unitPrice.IsZero() {
				unitPrice = product.UnitPrice
			}
		}
		if name == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].item_name", i), Message: "item name is required"}
		}
		if unitPrice.IsNegative() {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].unit_price", i), Message: "unit price cannot be negative"}
		}

		lineEstimate := unitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
		subtotal = subtotal.Add(lineEstimate)
		items = append(items, models.OrderItem{
			ProductID:    in.ProductID,
			ItemName:     name,
			Quantity:     in.Quantity,
			UnitPrice:    unitPrice,
			LineEstimate: lineEstimate,
		})
	}

	order := &models.Order{
		OrderNumber:          uuid.NewString(),
		CustomerID:           input.CustomerID,
		CustomerPhone:        input.CustomerPhone,
		DeliveryAddress:      input.DeliveryAddress,
		ServiceFee:           input.ServiceFee,
		DeliveryFeeEstimated: input.DeliveryFeeEstimated,
		TotalEstimate:        subtotal.Add(input.ServiceFee).Add(input.DeliveryFeeEstimated),
		PaymentStatus:        models.PaymentPending,
		OrderStatus:          models.OrderDraft,
		ReconciliationStatus: models.ReconcileNotRequired,
		Items:                items,
		StatusLogs: []models.StatusLog{{
			Status:  models.OrderDraft,
			Actor:   models.ActorCustomer,
			Channel: channel,
			Note:    "order created",
		}},
	}

	if err := s.orderRepo.Create(order); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.TotalEstimate.String(),
	}).Info("order created")

	return order, nil
}

func (s *orderService) GetOrderByID(id uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *orderService) GetOrderDetail(id uint) (*models.Order, error) {
	order, err := s.orderRepo.GetDetail(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *orderService) GetOrdersByCustomer(customerID uint) ([]models.Order, error) {
	return s.orderRepo.GetByCustomerID(customerID)
}

func (s *orderService) GetAllOrders() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

// UpdateOrderStatus is the manual-transition entry into the status
// machine. System transitions (payment callback, reconciliation sweep)
// validate against the same transition table before writing.
func (s *orderService) UpdateOrderStatus(orderID uint, actor *models.User, input StatusUpdateInput) (*models.Order, []string, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, nil, ErrNotAuthorized
	}
	if !input.Status.Valid() {
		return nil, nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", input.Status)}
	}

	channel := input.Channel
	if channel == "" {
		channel = "admin"
	}

	var warnings []string
	order, err := s.orderRepo.Apply(orderID, func(order *models.Order) (map[string]interface{}, *models.StatusLog, error) {
		current := order.OrderStatus
		next := input.Status
		if current == next {
			return nil, nil, nil
		}

		note := input.Note
		if !current.CanTransitionTo(next) {
			if !current.IsTerminal() {
				return nil, nil, &TransitionError{From: string(current), To: string(next)}
			}
			// Leaving CANCELLED or DELIVERED is a policy exception, only
			// with an explicit admin confirmation.
			if !input.Override {
				return nil, nil, ErrOverrideRequired
			}
			note = fmt.Sprintf("admin override: %s -> %s. %s", current, next, note)
		}

		warnings = transitionWarnings(order, next)

		updates := map[string]interface{}{"order_status": next}
		if next == models.OrderCancelled {
			reason := input.Note
			if reason == "" {
				reason = "cancelled by admin"
			}
			updates["cancellation_reason"] = reason
			order.CancellationReason = reason
		}
		order.OrderStatus = next

		return updates, &models.StatusLog{
			Status:  next,
			Actor:   models.ActorAdmin,
			Channel: channel,
			Note:    note,
		}, nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, err
	}

	if s.cache != nil {
		_ = s.cache.DeleteOrderStatus(order.ID)
	}

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"status":   order.OrderStatus,
	}).Info("order status updated")

	return order, warnings, nil
}

// transitionWarnings surfaces advisory inconsistencies to the human
// actor. They never block the transition.
func transitionWarnings(order *models.Order, next models.OrderStatus) []string {
	var warnings []string
	fulfillmentAdvance := next == models.OrderProcessing || next == models.OrderShopping ||
		next == models.OrderOutForDelivery || next == models.OrderDelivered
	if fulfillmentAdvance && order.PaymentStatus == models.PaymentPending {
		warnings = append(warnings, "payment is still pending for this order")
	}
	if next == models.OrderDelivered && order.MpesaReceipt == nil {
		warnings = append(warnings, "order has no payment receipt on record")
	}
	return warnings
}

func (s *orderService) AddExpense(orderID uint, expense *models.Expense) error {
	if expense.Description == "" {
		return &ValidationError{Field: "description", Message: "description is required"}
	}
	if expense.Cost.IsNegative() {
		return &ValidationError{Field: "cost", Message: "cost cannot be negative"}
	}

	if _, err := s.GetOrderByID(orderID); err != nil {
		return err
	}

	expense.OrderID = orderID
	return s.expenseRepo.Create(expense)
}

// RealizedProfit is the collected amount minus all recorded expenses
// (cost plus actual delivery fee where entered).
func (s *orderService) RealizedProfit(orderID uint) (decimal.Decimal, error) {
	order, err := s.GetOrderByID(orderID)
	if err != nil {
		return decimal.Zero, err
	}

	expenses, err := s.expenseRepo.GetByOrderID(orderID)
	if err != nil {
		return decimal.Zero, err
	}

	profit := order.AmountCollected
	for _, expense := range expenses {
		profit = profit.Sub(expense.Cost)
		if expense.DeliveryFee.Valid {
			profit = profit.Sub(expense.DeliveryFee.Decimal)
		}
	}
	return profit, nil
}
