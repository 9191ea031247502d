package services

import (
	"shop_concierge/internal/models"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func admin() *models.User {
	return &models.User{ID: 1, Role: string(models.RoleAdmin), IsActive: true}
}

func customer() *models.User {
	return &models.User{ID: 2, Role: string(models.RoleCustomer), IsActive: true}
}

func newOrderServiceForTest(orderRepo *fakeOrderRepo, productRepo *fakeProductRepo, expenseRepo *fakeExpenseRepo) OrderService {
	if productRepo == nil {
		productRepo = newFakeProductRepo()
	}
	if expenseRepo == nil {
		expenseRepo = newFakeExpenseRepo()
	}
	return NewOrderService(orderRepo, productRepo, expenseRepo, nil)
}

func TestCreateOrderComputesTotals(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newOrderServiceForTest(repo, nil, nil)

	order, err := svc.CreateOrder(CreateOrderInput{
		CustomerID:    2,
		CustomerPhone: "0712345678",
		ServiceFee:    decimal.NewFromInt(200),
		Items: []CreateOrderItemInput{
			{ItemName: "Rice 5kg", Quantity: 2, UnitPrice: decimal.NewFromInt(400)},
			{ItemName: "Sugar 1kg", Quantity: 1, UnitPrice: decimal.NewFromInt(200)},
		},
	})
	require.NoError(t, err)

	assert.True(t, order.TotalEstimate.Equal(decimal.NewFromInt(1200)), "total is %s", order.TotalEstimate)
	assert.Equal(t, models.OrderDraft, order.OrderStatus)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.Equal(t, models.ReconcileNotRequired, order.ReconciliationStatus)
	assert.NotEmpty(t, order.OrderNumber)
	require.Len(t, order.Items, 2)
	assert.True(t, order.Items[0].LineEstimate.Equal(decimal.NewFromInt(800)))

	logs, _ := repo.StatusLogs(order.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, models.OrderDraft, logs[0].Status)
	assert.Equal(t, models.ActorCustomer, logs[0].Actor)
}

func TestCreateOrderResolvesProductBinding(t *testing.T) {
	products := newFakeProductRepo(&models.Product{
		ID:        7,
		Name:      "Cooking oil 1L",
		UnitPrice: decimal.NewFromInt(320),
		IsActive:  true,
	})
	repo := newFakeOrderRepo()
	svc := newOrderServiceForTest(repo, products, nil)

	productID := uint(7)
	order, err := svc.CreateOrder(CreateOrderInput{
		CustomerID: 2,
		Items:      []CreateOrderItemInput{{ProductID: &productID, Quantity: 3}},
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, "Cooking oil 1L", order.Items[0].ItemName)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.NewFromInt(320)))
	assert.True(t, order.TotalEstimate.Equal(decimal.NewFromInt(960)))
}

func TestCreateOrderValidation(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newOrderServiceForTest(repo, nil, nil)

	tests := []struct {
		name  string
		input CreateOrderInput
	}{
		{"empty cart", CreateOrderInput{CustomerID: 2}},
		{"zero quantity", CreateOrderInput{CustomerID: 2, Items: []CreateOrderItemInput{{ItemName: "Bread", Quantity: 0, UnitPrice: decimal.NewFromInt(65)}}}},
		{"missing name", CreateOrderInput{CustomerID: 2, Items: []CreateOrderItemInput{{Quantity: 1, UnitPrice: decimal.NewFromInt(65)}}}},
		{"unknown product", CreateOrderInput{CustomerID: 2, Items: []CreateOrderItemInput{{ProductID: uintPtr(99), Quantity: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(tt.input)
			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func uintPtr(v uint) *uint { return &v }

func TestUpdateOrderStatusRequiresAdmin(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo, nil)
	svc := newOrderServiceForTest(repo, nil, nil)

	_, _, err := svc.UpdateOrderStatus(order.ID, customer(), StatusUpdateInput{Status: models.OrderCancelled})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, _, err = svc.UpdateOrderStatus(order.ID, nil, StatusUpdateInput{Status: models.OrderCancelled})
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestUpdateOrderStatusForwardChain(t *testing.T) {
	repo := newFakeOrderRepo()
	receipt := "ABC123"
	order := seedOrder(t, repo, func(o *models.Order) {
		o.OrderStatus = models.OrderProcessing
		o.PaymentStatus = models.PaymentPaid
		o.MpesaReceipt = &receipt
	})
	svc := newOrderServiceForTest(repo, nil, nil)

	for _, next := range []models.OrderStatus{
		models.OrderShopping,
		models.OrderOutForDelivery,
		models.OrderDelivered,
	} {
		updated, warnings, err := svc.UpdateOrderStatus(order.ID, admin(), StatusUpdateInput{Status: next})
		require.NoError(t, err)
		assert.Equal(t, next, updated.OrderStatus)
		assert.Empty(t, warnings)
	}

	logs, _ := repo.StatusLogs(order.ID)
	assert.Len(t, logs, 3, "every transition appends exactly one audit entry")
	for _, entry := range logs {
		assert.Equal(t, models.ActorAdmin, entry.Actor)
	}
}

func TestUpdateOrderStatusRejectsSkips(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo, nil) // DRAFT
	svc := newOrderServiceForTest(repo, nil, nil)

	_, _, err := svc.UpdateOrderStatus(order.ID, admin(), StatusUpdateInput{Status: models.OrderShopping})
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)

	logs, _ := repo.StatusLogs(order.ID)
	assert.Empty(t, logs, "rejected transitions leave no audit entry")
}

func TestUpdateOrderStatusWarnsOnPendingPayment(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo, func(o *models.Order) {
		o.OrderStatus = models.OrderPendingPayment
	})
	svc := newOrderServiceForTest(repo, nil, nil)

	updated, warnings, err := svc.UpdateOrderStatus(order.ID, admin(), StatusUpdateInput{Status: models.OrderProcessing})
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, updated.OrderStatus, "warnings never block the transition")
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "pending")
}

func TestUpdateOrderStatusTerminalOverride(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo, func(o *models.Order) {
		o.OrderStatus = models.OrderCancelled
	})
	svc := newOrderServiceForTest(repo, nil, nil)

	_, _, err := svc.UpdateOrderStatus(order.ID, admin(), StatusUpdateInput{Status: models.OrderProcessing})
	assert.ErrorIs(t, err, ErrOverrideRequired)

	updated, _, err := svc.UpdateOrderStatus(order.ID, admin(), StatusUpdateInput{
		Status:   models.OrderProcessing,
		Note:     "customer paid in person",
		Override: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, updated.OrderStatus)

	logs, _ := repo.StatusLogs(order.ID)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Note, "override")
}

func TestUpdateOrderStatusCancelRecordsReason(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo, func(o *models.Order) {
		o.OrderStatus = models.OrderProcessing
	})
	svc := newOrderServiceForTest(repo, nil, nil)

	updated, _, err := svc.UpdateOrderStatus(order.ID, admin(), StatusUpdateInput{
		Status: models.OrderCancelled,
		Note:   "customer unreachable",
	})
	require.NoError(t, err)
	assert.Equal(t, "customer unreachable", updated.CancellationReason)
}

func TestUpdateOrderStatusSameStatusIsNoop(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo, func(o *models.Order) {
		o.OrderStatus = models.OrderProcessing
	})
	svc := newOrderServiceForTest(repo, nil, nil)

	_, _, err := svc.UpdateOrderStatus(order.ID, admin(), StatusUpdateInput{Status: models.OrderProcessing})
	require.NoError(t, err)

	logs, _ := repo.StatusLogs(order.ID)
	assert.Empty(t, logs)
}

func TestRealizedProfit(t *testing.T) {
	repo := newFakeOrderRepo()
	expenses := newFakeExpenseRepo()
	order := seedOrder(t, repo, func(o *models.Order) {
		o.PaymentStatus = models.PaymentPaid
		o.AmountCollected = decimal.NewFromInt(1200)
	})
	svc := newOrderServiceForTest(repo, nil, expenses)

	require.NoError(t, svc.AddExpense(order.ID, &models.Expense{
		Description: "groceries",
		Cost:        decimal.NewFromInt(850),
		CreatedBy:   1,
	}))
	require.NoError(t, svc.AddExpense(order.ID, &models.Expense{
		Description: "rider",
		Cost:        decimal.NewFromInt(100),
		DeliveryFee: decimal.NullDecimal{Decimal: decimal.NewFromInt(50), Valid: true},
		CreatedBy:   1,
	}))

	profit, err := svc.RealizedProfit(order.ID)
	require.NoError(t, err)
	assert.True(t, profit.Equal(decimal.NewFromInt(200)), "profit is %s", profit)
}
