package services

import (
	"fmt"
	"shop_concierge/internal/models"
	"shop_concierge/internal/repository"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ReconciliationSummary is the aggregate result of one sweep, for
// observability. Callers get no per-order detail.
type ReconciliationSummary struct {
	Processed     int `json:"processed"`
	Expired       int `json:"expired"`
	Discrepancies int `json:"discrepancies"`
	Completed     int `json:"completed"`
	Errors        int `json:"errors"`
}

type ReconciliationService interface {
	Run() (*ReconciliationSummary, error)
}

type reconciliationService struct {
	orderRepo repository.OrderRepository
	cache     StatusCache
	expiry    time.Duration
	tolerance decimal.Decimal
	now       func() time.Time
}

func NewReconciliationService(orderRepo repository.OrderRepository, cache StatusCache, expiry time.Duration, tolerance decimal.Decimal) ReconciliationService {
	return &reconciliationService{
		orderRepo: orderRepo,
		cache:     cache,
		expiry:    expiry,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Run executes the expiry pass then the discrepancy pass. Each order is
// handled independently; one failure is counted and the batch continues.
// The sweep is re-runnable: resolved orders fall out of the query
// predicates.
func (s *reconciliationService) Run() (*ReconciliationSummary, error) {
	summary := &ReconciliationSummary{}

	if err := s.expiryPass(summary); err != nil {
		return summary, err
	}
	if err := s.discrepancyPass(summary); err != nil {
		return summary, err
	}

	logrus.WithFields(logrus.Fields{
		"processed":     summary.Processed,
		"expired":       summary.Expired,
		"discrepancies": summary.Discrepancies,
		"completed":     summary.Completed,
		"errors":        summary.Errors,
	}).Info("reconciliation sweep finished")

	return summary, nil
}

// expiryPass cancels orders whose payment callback never arrived. An
// order expires when its payment deadline is at least the configured
// threshold in the past, evaluated against a single wall-clock reading
// for the whole pass.
func (s *reconciliationService) expiryPass(summary *ReconciliationSummary) error {
	cutoff := s.now().Add(-s.expiry)
	stale, err := s.orderRepo.ListExpiredPending(cutoff)
	if err != nil {
		return fmt.Errorf("failed to list expired pending orders: %w", err)
	}

	for i := range stale {
		summary.Processed++
		if err := s.expireOrder(stale[i].ID, cutoff); err != nil {
			summary.Errors++
			logrus.WithError(err).WithField("order_id", stale[i].ID).Error("failed to expire order")
			continue
		}
		summary.Expired++
	}
	return nil
}

func (s *reconciliationService) expireOrder(orderID uint, cutoff time.Time) error {
	_, err := s.orderRepo.Apply(orderID, func(order *models.Order) (map[string]interface{}, *models.StatusLog, error) {
		// Re-check under the lock; a callback may have landed since the
		// batch snapshot was read.
		if order.PaymentStatus != models.PaymentPending ||
			order.OrderStatus == models.OrderCancelled ||
			order.PaymentDueAt == nil || order.PaymentDueAt.After(cutoff) {
			return nil, nil, nil
		}

		reason := "payment confirmation window expired"
		updates := map[string]interface{}{
			"payment_status":        models.PaymentFailed,
			"order_status":          models.OrderCancelled,
			"cancellation_reason":   reason,
			"reconciliation_status": models.ReconcileCompleted,
			"payment_due_at":        nil,
		}

		order.PaymentStatus = models.PaymentFailed
		order.OrderStatus = models.OrderCancelled
		order.CancellationReason = reason
		order.ReconciliationStatus = models.ReconcileCompleted

		return updates, &models.StatusLog{
			Status:  models.OrderCancelled,
			Actor:   models.ActorSystem,
			Channel: "reconciliation",
			Note:    reason,
		}, nil
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.DeleteOrderStatus(orderID)
	}
	return nil
}

// discrepancyPass checks paid orders that have not been reconciled yet:
// a missing receipt, or a collected amount off the estimate by more than
// the tolerance, is flagged; everything else is marked completed.
func (s *reconciliationService) discrepancyPass(summary *ReconciliationSummary) error {
	unreconciled, err := s.orderRepo.ListUnreconciledPaid()
	if err != nil {
		return fmt.Errorf("failed to list unreconciled paid orders: %w", err)
	}

	for i := range unreconciled {
		summary.Processed++
		flagged, err := s.reconcileOrder(unreconciled[i].ID)
		if err != nil {
			summary.Errors++
			logrus.WithError(err).WithField("order_id", unreconciled[i].ID).Error("failed to reconcile order")
			continue
		}
		if flagged {
			summary.Discrepancies++
		} else {
			summary.Completed++
		}
	}
	return nil
}

func (s *reconciliationService) reconcileOrder(orderID uint) (bool, error) {
	flagged := false
	_, err := s.orderRepo.Apply(orderID, func(order *models.Order) (map[string]interface{}, *models.StatusLog, error) {
		if order.PaymentStatus != models.PaymentPaid ||
			order.ReconciliationStatus == models.ReconcileCompleted ||
			order.ReconciliationStatus == models.ReconcileDiscrepancy {
			return nil, nil, nil
		}

		difference := order.AmountCollected.Sub(order.TotalEstimate).Abs()
		if order.MpesaReceipt == nil || difference.GreaterThan(s.tolerance) {
			flagged = true
			note := fmt.Sprintf("amount discrepancy: collected %s against estimate %s",
				order.AmountCollected.String(), order.TotalEstimate.String())
			if order.MpesaReceipt == nil {
				note = "paid order has no receipt on record"
			}
			order.ReconciliationStatus = models.ReconcileDiscrepancy
			return map[string]interface{}{
					"reconciliation_status": models.ReconcileDiscrepancy,
				}, &models.StatusLog{
					Status:  order.OrderStatus,
					Actor:   models.ActorSystem,
					Channel: "reconciliation",
					Note:    note,
				}, nil
		}

		order.ReconciliationStatus = models.ReconcileCompleted
		order.AmountReconciled = order.AmountCollected
		return map[string]interface{}{
			"reconciliation_status": models.ReconcileCompleted,
			"amount_reconciled":     order.AmountCollected,
		}, nil, nil
	})
	return flagged, err
}
