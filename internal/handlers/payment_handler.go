package handlers

import (
	"errors"
	"net/http"
	"shop_concierge/internal/services"
	"shop_concierge/pkg/mpesa"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type PaymentHandler struct {
	paymentService services.PaymentService
	orderService   services.OrderService
	reconService   services.ReconciliationService
}

func NewPaymentHandler(
	paymentService services.PaymentService,
	orderService services.OrderService,
	reconService services.ReconciliationService,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		orderService:   orderService,
		reconService:   reconService,
	}
}

type initiatePaymentRequest struct {
	Phone string `json:"phone" binding:"required"`
}

func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	user := currentUser(c)
	order, err := h.orderService.GetOrderByID(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !user.IsAdmin() && order.CustomerID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrOrderNotFound.Error()})
		return
	}

	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	prompt, err := h.paymentService.InitiatePayment(c.Request.Context(), id, req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}

// MpesaCallback receives the provider's asynchronous result. The
// provider retries on non-2xx, so everything except a structurally
// invalid payload is acknowledged: unknown correlation ids are logged as
// anomalies and acked to stop the retry storm, while transient
// processing failures return 500 so the provider redelivers.
func (h *PaymentHandler) MpesaCallback(c *gin.Context) {
	var envelope mpesa.CallbackEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, mpesa.AckRejected("malformed payload"))
		return
	}

	callback := envelope.Body.StkCallback
	if callback.CheckoutRequestID == "" {
		c.JSON(http.StatusBadRequest, mpesa.AckRejected("missing CheckoutRequestID"))
		return
	}

	if err := h.paymentService.ProcessCallback(&callback); err != nil {
		var validationErr *services.ValidationError
		if errors.Is(err, services.ErrOrderNotFound) || errors.As(err, &validationErr) {
			// Permanently unprocessable; ack so the provider stops retrying.
			logrus.WithError(err).WithField("checkout_request_id", callback.CheckoutRequestID).
				Warn("unprocessable payment callback acknowledged")
			c.JSON(http.StatusOK, mpesa.AckAccepted())
			return
		}
		logrus.WithError(err).WithField("checkout_request_id", callback.CheckoutRequestID).
			Error("failed to process payment callback")
		c.JSON(http.StatusInternalServerError, mpesa.AckRejected("processing failure"))
		return
	}

	c.JSON(http.StatusOK, mpesa.AckAccepted())
}

// RunReconciliation is invoked by the external scheduler.
func (h *PaymentHandler) RunReconciliation(c *gin.Context) {
	summary, err := h.reconService.Run()
	if err != nil {
		logrus.WithError(err).Error("reconciliation sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reconciliation failed", "summary": summary})
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
