package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/capecart/ms-go-checkout/app/entity"
	"github.com/capecart/ms-go-checkout/app/observ"
	"github.com/capecart/ms-go-checkout/app/repository"
)

func transitionTo(status entity.PaymentStatus, providerPaymentID, errorMessage *string, metadata map[string]string, now time.Time) repository.StatusUpdate {
	return repository.StatusUpdate{
		Status:            status,
		ProviderPaymentID: providerPaymentID,
		ErrorMessage:      errorMessage,
		Metadata:          metadata,
		UpdatedAt:         now,
	}
}

// allowedFrom returns the source states a transition to target may leave.
// Terminal states never regress; succeeded additionally admits the refund
// states.
func allowedFrom(target entity.PaymentStatus) []entity.PaymentStatus {
	switch target {
	case entity.PaymentStatusRefunded, entity.PaymentStatusPartiallyRefunded:
		return append([]entity.PaymentStatus{entity.PaymentStatusSucceeded}, entity.NonTerminalStatuses...)
	default:
		return entity.NonTerminalStatuses
	}
}

// applyStatus performs the conditional transition, records the audit event
// when the write lands, and propagates a success to the owning order. The
// returned bool reports whether this call applied the change; a duplicate
// webhook or a losing racer sees false.
func (s *CheckoutService) applyStatus(
	ctx context.Context,
	payment *entity.Payment,
	newStatus entity.PaymentStatus,
	providerPaymentID *string,
	eventType string,
	payloadJSON *string,
	metadata map[string]string,
) (bool, error) {
	if newStatus == "" || newStatus == payment.Status {
		return false, nil
	}

	now := time.Now().UTC()
	applied, err := s.paymentRepo.TransitionStatus(ctx, payment.ID, allowedFrom(newStatus), transitionTo(newStatus, providerPaymentID, nil, metadata, now))
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	oldStatus := payment.Status
	payment.Status = newStatus
	if providerPaymentID != nil {
		payment.ProviderPaymentID = providerPaymentID
	}
	if metadata != nil {
		payment.Metadata = metadata
	}
	payment.UpdatedAt = now

	observ.ObserveStatusTransition(string(newStatus))
	s.recordEvent(ctx, &entity.PaymentEvent{
		PaymentID:   payment.ID,
		EventType:   eventType,
		OldStatus:   &oldStatus,
		NewStatus:   newStatus,
		PayloadJSON: payloadJSON,
		CreatedAt:   now,
	})

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"from":       string(oldStatus),
		"to":         string(newStatus),
	}).Info("Payment status transition applied")

	if newStatus == entity.PaymentStatusSucceeded {
		if err := s.UpdateOrderAfterSuccessfulPayment(ctx, payment.OrderID, payment.ID); err != nil {
			return true, err
		}
	}

	return true, nil
}
