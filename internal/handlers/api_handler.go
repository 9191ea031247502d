package handlers

import (
	"errors"
	"net/http"
	"shop_concierge/internal/models"
	"shop_concierge/internal/redis"
	"shop_concierge/internal/services"
	"shop_concierge/pkg/mpesa"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type APIHandler struct {
	userService    services.UserService
	orderService   services.OrderService
	productService services.ProductService
	cache          *redis.Client
	statusCacheTTL time.Duration
}

func NewAPIHandler(
	userService services.UserService,
	orderService services.OrderService,
	productService services.ProductService,
	cache *redis.Client,
	statusCacheTTL time.Duration,
) *APIHandler {
	return &APIHandler{
		userService:    userService,
		orderService:   orderService,
		productService: productService,
		cache:          cache,
		statusCacheTTL: statusCacheTTL,
	}
}

// respondError maps the service error taxonomy to HTTP statuses. The
// message is always plain language; internals stay in the logs.
func respondError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var transitionErr *services.TransitionError
	var transportErr *services.TransportError
	var requestErr *mpesa.RequestError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message, "field": validationErr.Field})
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrPaymentInProgress),
		errors.Is(err, services.ErrAlreadyPaid),
		errors.Is(err, services.ErrOrderCancelled),
		errors.Is(err, services.ErrOverrideRequired),
		errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &requestErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": requestErr.Message, "code": requestErr.Code})
	case errors.As(err, &transportErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment provider is unreachable, please try again"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}

// Auth

type loginRequest struct {
	Email string `json:"email" binding:"required"`
	Name  string `json:"name"`
}

func (h *APIHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.userService.EnsurePrincipal(req.Email, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "role": user.Role})
}

// Catalog

func (h *APIHandler) ListProducts(c *gin.Context) {
	products, err := h.productService.GetActiveProducts()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

type productRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Unit        string          `json:"unit"`
	ImageURL    string          `json:"image_url"`
	IsActive    *bool           `json:"is_active"`
}

func (h *APIHandler) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   req.UnitPrice,
		Unit:        req.Unit,
		ImageURL:    req.ImageURL,
		IsActive:    true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := h.productService.CreateProduct(product); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func (h *APIHandler) UpdateProduct(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return
	}

	product, err := h.productService.GetProductByID(id)
	if err != nil {
		respondError(c, err)
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	product.Name = req.Name
	product.Description = req.Description
	product.UnitPrice = req.UnitPrice
	product.Unit = req.Unit
	product.ImageURL = req.ImageURL
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := h.productService.UpdateProduct(product); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *APIHandler) DeleteProduct(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return
	}

	if err := h.productService.DeleteProduct(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Orders

type createOrderItemRequest struct {
	ProductID *uint           `json:"product_id"`
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	CustomerPhone        string                   `json:"customer_phone"`
	DeliveryAddress      string                   `json:"delivery_address"`
	ServiceFee           decimal.Decimal          `json:"service_fee"`
	DeliveryFeeEstimated decimal.Decimal          `json:"delivery_fee_estimated"`
	Items                []createOrderItemRequest `json:"items"`
}

func (h *APIHandler) CreateOrder(c *gin.Context) {
	user := currentUser(c)

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	input := services.CreateOrderInput{
		CustomerID:           user.ID,
		CustomerPhone:        req.CustomerPhone,
		DeliveryAddress:      req.DeliveryAddress,
		ServiceFee:           req.ServiceFee,
		DeliveryFeeEstimated: req.DeliveryFeeEstimated,
		Channel:              "web",
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, services.CreateOrderItemInput{
			ProductID: item.ProductID,
			ItemName:  item.ItemName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	order, err := h.orderService.CreateOrder(input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

func (h *APIHandler) ListOrders(c *gin.Context) {
	user := currentUser(c)

	var orders []models.Order
	var err error
	if user.IsAdmin() {
		orders, err = h.orderService.GetAllOrders()
	} else {
		orders, err = h.orderService.GetOrdersByCustomer(user.ID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *APIHandler) GetOrder(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	order, err := h.orderService.GetOrderDetail(id)
	if err != nil {
		respondError(c, err)
		return
	}

	user := currentUser(c)
	if !user.IsAdmin() && order.CustomerID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrOrderNotFound.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// GetOrderStatus serves the short-interval polling clients from a
// redis snapshot; misses fall through to the database.
func (h *APIHandler) GetOrderStatus(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	if h.cache != nil {
		if snapshot, err := h.cache.GetOrderStatus(id); err == nil && snapshot != nil {
			c.JSON(http.StatusOK, snapshot)
			return
		}
	}

	order, err := h.orderService.GetOrderByID(id)
	if err != nil {
		respondError(c, err)
		return
	}

	snapshot := &redis.OrderStatusSnapshot{
		OrderID:           order.ID,
		PaymentStatus:     string(order.PaymentStatus),
		OrderStatus:       string(order.OrderStatus),
		MpesaReceipt:      order.MpesaReceipt,
		CheckoutRequestID: order.CheckoutRequestID,
		LastUpdated:       order.UpdatedAt,
	}
	if h.cache != nil {
		_ = h.cache.SetOrderStatus(order.ID, snapshot, h.statusCacheTTL)
	}

	c.JSON(http.StatusOK, snapshot)
}

type updateStatusRequest struct {
	Status   string `json:"status" binding:"required"`
	Note     string `json:"note"`
	Override bool   `json:"override"`
}

func (h *APIHandler) UpdateOrderStatus(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	order, warnings, err := h.orderService.UpdateOrderStatus(id, currentUser(c), services.StatusUpdateInput{
		Status:   models.OrderStatus(req.Status),
		Note:     req.Note,
		Channel:  "admin",
		Override: req.Override,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "warnings": warnings})
}

type expenseRequest struct {
	Description string               `json:"description" binding:"required"`
	Cost        decimal.Decimal      `json:"cost"`
	DeliveryFee *decimal.Decimal     `json:"delivery_fee"`
	EvidenceURL string               `json:"evidence_url"`
}

func (h *APIHandler) AddExpense(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	expense := &models.Expense{
		Description: req.Description,
		Cost:        req.Cost,
		EvidenceURL: req.EvidenceURL,
		CreatedBy:   currentUser(c).ID,
	}
	if req.DeliveryFee != nil {
		expense.DeliveryFee = decimal.NullDecimal{Decimal: *req.DeliveryFee, Valid: true}
	}

	if err := h.orderService.AddExpense(id, expense); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"expense": expense})
}

func (h *APIHandler) GetProfit(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	profit, err := h.orderService.RealizedProfit(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "realized_profit": profit})
}

func pathID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
