package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RunReconcileBatch re-queries the provider for payments that opened a
// checkout session but have not moved past pending/processing since the
// configured cutoff, and applies any terminal outcome it finds. Invoked by
// an operator via the reconcile command; there is no resident job runner.
func (s *CheckoutService) RunReconcileBatch(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-s.cfg.ReconcileStaleAfter)

	items, err := s.paymentRepo.ListStalePending(ctx, cutoff, s.reconcileBatchSize())
	if err != nil {
		return 0, err
	}

	reconciled := 0
	var firstErr error
	for _, payment := range items {
		if payment == nil || payment.CheckoutID == nil || strings.TrimSpace(*payment.CheckoutID) == "" {
			continue
		}

		providerClient, err := s.providerReg.Get(payment.Provider)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		status, err := providerClient.GetCheckoutStatus(ctx, *payment.CheckoutID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		applied, err := s.applyStatus(ctx, payment, status.Status, status.ProviderPaymentID, "payment_reconciled", nil, nil)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if applied {
			reconciled++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"scanned":    len(items),
		"reconciled": reconciled,
	}).Info("Reconcile batch finished")

	return reconciled, firstErr
}

func keepFirstErr(current, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
