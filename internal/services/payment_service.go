package services

import (
	"context"
	"errors"
	"fmt"
	"shop_concierge/internal/models"
	"shop_concierge/internal/money"
	"shop_concierge/internal/repository"
	"shop_concierge/pkg/mpesa"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PaymentGateway is the outbound provider surface. Implemented by
// *mpesa.Client; faked in tests.
type PaymentGateway interface {
	STKPush(ctx context.Context, phone string, amountMinor int64, accountReference, description string) (*mpesa.STKPushResponse, error)
}

// PaymentPrompt is what the customer sees after a push request is
// accepted by the provider.
type PaymentPrompt struct {
	CustomerMessage   string `json:"customer_message"`
	MerchantRequestID string `json:"merchant_request_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
}

type PaymentService interface {
	InitiatePayment(ctx context.Context, orderID uint, phone string) (*PaymentPrompt, error)
	ProcessCallback(callback *mpesa.StkCallback) error
}

type paymentService struct {
	orderRepo repository.OrderRepository
	gateway   PaymentGateway
	cache     StatusCache
	cooldown  time.Duration
	now       func() time.Time
}

func NewPaymentService(orderRepo repository.OrderRepository, gateway PaymentGateway, cache StatusCache, cooldown time.Duration) PaymentService {
	return &paymentService{
		orderRepo: orderRepo,
		gateway:   gateway,
		cache:     cache,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// InitiatePayment asks the provider to prompt the payer's device for the
// order total. Provider rejections and transport failures leave the
// order untouched; only an accepted request mutates state.
func (s *paymentService) InitiatePayment(ctx context.Context, orderID uint, phone string) (*PaymentPrompt, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if err := s.paymentPreconditions(order); err != nil {
		return nil, err
	}

	normalized, err := mpesa.NormalizePhone(phone)
	if err != nil {
		return nil, &ValidationError{Field: "phone", Message: err.Error()}
	}

	amountMinor := money.ToMinorUnits(order.TotalEstimate)
	description := fmt.Sprintf("Order %s", order.OrderNumber)

	resp, err := s.gateway.STKPush(ctx, normalized, amountMinor, order.OrderNumber, description)
	if err != nil {
		var reqErr *mpesa.RequestError
		if errors.As(err, &reqErr) {
			return nil, reqErr
		}
		return nil, &TransportError{Op: "stk push", Err: err}
	}

	dueAt := s.now().Add(s.cooldown)
	_, err = s.orderRepo.Apply(order.ID, func(locked *models.Order) (map[string]interface{}, *models.StatusLog, error) {
		// Re-check under the row lock; a concurrent callback or admin
		// action may have moved the order since the pre-check.
		if err := s.paymentPreconditions(locked); err != nil && !errors.Is(err, ErrPaymentInProgress) {
			return nil, nil, err
		}

		updates := map[string]interface{}{
			"merchant_request_id": resp.MerchantRequestID,
			"checkout_request_id": resp.CheckoutRequestID,
			"payment_due_at":      dueAt,
			"customer_phone":      normalized,
		}
		note := fmt.Sprintf("payment requested, awaiting confirmation (checkout %s)", resp.CheckoutRequestID)
		if locked.OrderStatus == models.OrderDraft {
			updates["order_status"] = models.OrderPendingPayment
		}

		return updates, &models.StatusLog{
			Status:  models.OrderPendingPayment,
			Actor:   models.ActorCustomer,
			Channel: "mpesa",
			Note:    note,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.DeleteOrderStatus(order.ID)
	}

	logrus.WithFields(logrus.Fields{
		"order_id":            order.ID,
		"checkout_request_id": resp.CheckoutRequestID,
		"amount_minor":        amountMinor,
	}).Info("push payment accepted by provider")

	return &PaymentPrompt{
		CustomerMessage:   resp.CustomerMessage,
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
	}, nil
}

// paymentPreconditions rejects orders that must not be charged (again).
// An unresolved push request blocks retries until the cooldown lapses;
// that guard is what prevents duplicate provider charges.
func (s *paymentService) paymentPreconditions(order *models.Order) error {
	if order.PaymentStatus == models.PaymentPaid {
		return ErrAlreadyPaid
	}
	if order.OrderStatus == models.OrderCancelled {
		return ErrOrderCancelled
	}
	if order.CheckoutRequestID != nil && order.PaymentStatus == models.PaymentPending {
		if s.now().Sub(order.UpdatedAt) < s.cooldown {
			return ErrPaymentInProgress
		}
	}
	return nil
}

// ProcessCallback applies the provider's asynchronous result. The whole
// resolution (order update plus status-log append) is one transaction
// against the row locked by checkout request id; redelivered callbacks
// find the order already PAID and commit nothing.
func (s *paymentService) ProcessCallback(callback *mpesa.StkCallback) error {
	if callback.CheckoutRequestID == "" {
		return &ValidationError{Field: "CheckoutRequestID", Message: "missing checkout request id"}
	}

	order, err := s.orderRepo.ApplyByCheckoutRequestID(callback.CheckoutRequestID, func(locked *models.Order) (map[string]interface{}, *models.StatusLog, error) {
		if locked.PaymentStatus == models.PaymentPaid && locked.MpesaReceipt != nil {
			// Already processed; redelivery is a no-op.
			return nil, nil, nil
		}

		if callback.Succeeded() {
			return s.successTransition(locked, callback)
		}
		return s.failureTransition(locked, callback)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithField("checkout_request_id", callback.CheckoutRequestID).
				Warn("callback for unknown checkout request id")
			return ErrOrderNotFound
		}
		return err
	}

	if s.cache != nil {
		_ = s.cache.DeleteOrderStatus(order.ID)
	}

	logrus.WithFields(logrus.Fields{
		"order_id":            order.ID,
		"checkout_request_id": callback.CheckoutRequestID,
		"result_code":         callback.ResultCode,
	}).Info("payment callback processed")

	return nil
}

func (s *paymentService) successTransition(order *models.Order, callback *mpesa.StkCallback) (map[string]interface{}, *models.StatusLog, error) {
	receipt, ok := callback.MetadataString("MpesaReceiptNumber")
	if !ok || receipt == "" {
		return nil, nil, &ValidationError{Field: "CallbackMetadata", Message: "missing MpesaReceiptNumber"}
	}
	amountMinor, ok := callback.MetadataInt64("Amount")
	if !ok {
		return nil, nil, &ValidationError{Field: "CallbackMetadata", Message: "missing Amount"}
	}
	collected := money.FromMinorUnits(amountMinor)

	updates := map[string]interface{}{
		"payment_status":   models.PaymentPaid,
		"amount_collected": collected,
		"mpesa_receipt":    receipt,
		"payment_due_at":   nil,
	}

	status := order.OrderStatus
	note := fmt.Sprintf("payment received, receipt %s", receipt)
	if order.OrderStatus.CanTransitionTo(models.OrderProcessing) {
		updates["order_status"] = models.OrderProcessing
		status = models.OrderProcessing
	} else if order.OrderStatus == models.OrderCancelled {
		// Late payment for an order the sweep already expired. Keep the
		// cancellation, record the money, and flag for reconciliation.
		updates["reconciliation_status"] = models.ReconcileDiscrepancy
		note = fmt.Sprintf("payment received after cancellation, receipt %s", receipt)
	}

	order.PaymentStatus = models.PaymentPaid
	order.MpesaReceipt = &receipt
	order.AmountCollected = collected
	order.OrderStatus = status

	return updates, &models.StatusLog{
		Status:  status,
		Actor:   models.ActorSystem,
		Channel: "mpesa",
		Note:    note,
	}, nil
}

func (s *paymentService) failureTransition(order *models.Order, callback *mpesa.StkCallback) (map[string]interface{}, *models.StatusLog, error) {
	if order.PaymentStatus == models.PaymentFailed && order.OrderStatus == models.OrderCancelled {
		// Redelivered failure; nothing left to do.
		return nil, nil, nil
	}

	updates := map[string]interface{}{
		"payment_status":      models.PaymentFailed,
		"order_status":        models.OrderCancelled,
		"cancellation_reason": callback.ResultDesc,
		"payment_due_at":      nil,
	}

	order.PaymentStatus = models.PaymentFailed
	order.OrderStatus = models.OrderCancelled
	order.CancellationReason = callback.ResultDesc

	return updates, &models.StatusLog{
		Status:  models.OrderCancelled,
		Actor:   models.ActorSystem,
		Channel: "mpesa",
		Note:    fmt.Sprintf("payment failed (%d): %s", callback.ResultCode, callback.ResultDesc),
	}, nil
}
