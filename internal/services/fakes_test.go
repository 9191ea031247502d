package services

import (
	"context"
	"errors"
	"shop_concierge/internal/models"
	"shop_concierge/internal/repository"
	"shop_concierge/pkg/mpesa"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeOrderRepo is an in-memory OrderRepository. Apply mirrors the real
// implementation's transactional contract: fn runs against a copy, and
// nothing is committed if the status-log append fails.
type fakeOrderRepo struct {
	orders        map[uint]*models.Order
	logs          map[uint][]models.StatusLog
	nextID        uint
	failLogAppend bool
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[uint]*models.Order),
		logs:   make(map[uint][]models.StatusLog),
		nextID: 1,
	}
}

func (r *fakeOrderRepo) Create(order *models.Order) error {
	order.ID = r.nextID
	r.nextID++
	order.CreatedAt = time.Now()
	order.UpdatedAt = time.Now()
	for i := range order.StatusLogs {
		order.StatusLogs[i].OrderID = order.ID
		r.logs[order.ID] = append(r.logs[order.ID], order.StatusLogs[i])
	}
	stored := *order
	r.orders[order.ID] = &stored
	return nil
}

func (r *fakeOrderRepo) GetByID(id uint) (*models.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *fakeOrderRepo) GetDetail(id uint) (*models.Order, error) {
	order, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	order.StatusLogs = append([]models.StatusLog(nil), r.logs[id]...)
	return order, nil
}

func (r *fakeOrderRepo) GetByOrderNumber(orderNumber string) (*models.Order, error) {
	for _, order := range r.orders {
		if order.OrderNumber == orderNumber {
			copied := *order
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) GetByCustomerID(customerID uint) ([]models.Order, error) {
	var result []models.Order
	for _, order := range r.orders {
		if order.CustomerID == customerID {
			result = append(result, *order)
		}
	}
	return result, nil
}

func (r *fakeOrderRepo) GetAll() ([]models.Order, error) {
	var result []models.Order
	for _, order := range r.orders {
		result = append(result, *order)
	}
	return result, nil
}

func (r *fakeOrderRepo) Apply(orderID uint, fn repository.TransitionFunc) (*models.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.apply(order, fn)
}

func (r *fakeOrderRepo) ApplyByCheckoutRequestID(checkoutRequestID string, fn repository.TransitionFunc) (*models.Order, error) {
	for _, order := range r.orders {
		if order.CheckoutRequestID != nil && *order.CheckoutRequestID == checkoutRequestID {
			return r.apply(order, fn)
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) apply(stored *models.Order, fn repository.TransitionFunc) (*models.Order, error) {
	working := *stored
	updates, logEntry, err := fn(&working)
	if err != nil {
		return nil, err
	}
	if updates == nil && logEntry == nil {
		copied := *stored
		return &copied, nil
	}
	if logEntry != nil && r.failLogAppend {
		// Simulates the transaction rolling back on a failed log append:
		// none of the updates reach the stored order.
		return nil, errors.New("injected status log failure")
	}
	applyOrderUpdates(stored, updates)
	if logEntry != nil {
		logEntry.OrderID = stored.ID
		logEntry.CreatedAt = time.Now()
		r.logs[stored.ID] = append(r.logs[stored.ID], *logEntry)
	}
	copied := *stored
	return &copied, nil
}

func applyOrderUpdates(order *models.Order, updates map[string]interface{}) {
	for column, value := range updates {
		switch column {
		case "order_status":
			order.OrderStatus = value.(models.OrderStatus)
		case "payment_status":
			order.PaymentStatus = value.(models.PaymentStatus)
		case "reconciliation_status":
			order.ReconciliationStatus = value.(models.ReconciliationStatus)
		case "cancellation_reason":
			order.CancellationReason = value.(string)
		case "merchant_request_id":
			s := value.(string)
			order.MerchantRequestID = &s
		case "checkout_request_id":
			s := value.(string)
			order.CheckoutRequestID = &s
		case "mpesa_receipt":
			s := value.(string)
			order.MpesaReceipt = &s
		case "amount_collected":
			order.AmountCollected = value.(decimal.Decimal)
		case "amount_reconciled":
			order.AmountReconciled = value.(decimal.Decimal)
		case "customer_phone":
			order.CustomerPhone = value.(string)
		case "payment_due_at":
			if value == nil {
				order.PaymentDueAt = nil
			} else {
				t := value.(time.Time)
				order.PaymentDueAt = &t
			}
		}
	}
	order.UpdatedAt = time.Now()
}

func (r *fakeOrderRepo) ListExpiredPending(cutoff time.Time) ([]models.Order, error) {
	var result []models.Order
	for _, order := range r.orders {
		if order.PaymentStatus == models.PaymentPending &&
			order.PaymentDueAt != nil && !order.PaymentDueAt.After(cutoff) &&
			order.OrderStatus != models.OrderCancelled {
			result = append(result, *order)
		}
	}
	return result, nil
}

func (r *fakeOrderRepo) ListUnreconciledPaid() ([]models.Order, error) {
	var result []models.Order
	for _, order := range r.orders {
		if order.PaymentStatus == models.PaymentPaid &&
			order.ReconciliationStatus != models.ReconcileCompleted &&
			order.ReconciliationStatus != models.ReconcileDiscrepancy {
			result = append(result, *order)
		}
	}
	return result, nil
}

func (r *fakeOrderRepo) StatusLogs(orderID uint) ([]models.StatusLog, error) {
	return append([]models.StatusLog(nil), r.logs[orderID]...), nil
}

// fakeGateway counts provider calls and returns a canned response.
type fakeGateway struct {
	calls      int
	lastPhone  string
	lastAmount int64
	lastRef    string
	response   *mpesa.STKPushResponse
	err        error
}

func (g *fakeGateway) STKPush(ctx context.Context, phone string, amountMinor int64, accountReference, description string) (*mpesa.STKPushResponse, error) {
	g.calls++
	g.lastPhone = phone
	g.lastAmount = amountMinor
	g.lastRef = accountReference
	if g.err != nil {
		return nil, g.err
	}
	return g.response, nil
}

// fakeProductRepo backs checkout tests.
type fakeProductRepo struct {
	products map[uint]*models.Product
}

func newFakeProductRepo(products ...*models.Product) *fakeProductRepo {
	repo := &fakeProductRepo{products: make(map[uint]*models.Product)}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (r *fakeProductRepo) Create(product *models.Product) error {
	r.products[product.ID] = product
	return nil
}

func (r *fakeProductRepo) GetByID(id uint) (*models.Product, error) {
	product, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func (r *fakeProductRepo) GetActive() ([]models.Product, error) {
	var result []models.Product
	for _, p := range r.products {
		if p.IsActive {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (r *fakeProductRepo) GetAll() ([]models.Product, error) {
	var result []models.Product
	for _, p := range r.products {
		result = append(result, *p)
	}
	return result, nil
}

func (r *fakeProductRepo) Update(product *models.Product) error {
	r.products[product.ID] = product
	return nil
}

func (r *fakeProductRepo) Delete(id uint) error {
	delete(r.products, id)
	return nil
}

type fakeExpenseRepo struct {
	expenses map[uint][]models.Expense
}

func newFakeExpenseRepo() *fakeExpenseRepo {
	return &fakeExpenseRepo{expenses: make(map[uint][]models.Expense)}
}

func (r *fakeExpenseRepo) Create(expense *models.Expense) error {
	r.expenses[expense.OrderID] = append(r.expenses[expense.OrderID], *expense)
	return nil
}

func (r *fakeExpenseRepo) GetByOrderID(orderID uint) ([]models.Expense, error) {
	return append([]models.Expense(nil), r.expenses[orderID]...), nil
}

type fakeUserRepo struct {
	users  map[uint]*models.User
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint]*models.User), nextID: 1}
}

func (r *fakeUserRepo) Create(user *models.User) error {
	user.ID = r.nextID
	r.nextID++
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Update(user *models.User) error {
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetAll() ([]models.User, error) {
	var result []models.User
	for _, user := range r.users {
		result = append(result, *user)
	}
	return result, nil
}

func (r *fakeUserRepo) Count() (int64, error) {
	return int64(len(r.users)), nil
}
