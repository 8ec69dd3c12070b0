package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/capecart/ms-go-checkout/app/entity"
	"github.com/capecart/ms-go-checkout/app/provider"
	"github.com/capecart/ms-go-checkout/app/types"
)

// VerificationResult is what the redirect-return and polling paths see.
// Succeeded is true only when the payment provably reached succeeded; a
// still-pending payment reports processing, never a false success.
type VerificationResult struct {
	Payment   *entity.Payment
	Status    entity.PaymentStatus
	Succeeded bool
	Message   string
}

// VerifyPayment resolves the current outcome of a payment. Terminal statuses
// are returned as recorded (a webhook may already have settled them);
// non-terminal payments with a checkout session are re-queried against the
// provider.
func (s *CheckoutService) VerifyPayment(ctx context.Context, paymentID string) (*VerificationResult, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	return s.verify(ctx, payment)
}

// VerifyOrderPayment is the redirect-return entry point. The provider only
// guarantees orderId on the redirect URL; explicit payment or checkout
// identifiers are used when present, otherwise the most recent payment for
// the order is resolved.
func (s *CheckoutService) VerifyOrderPayment(ctx context.Context, req *types.VerifyCheckoutRequest) (*VerificationResult, error) {
	payment, err := s.resolvePayment(ctx, req)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("%w: no payment on record for this order", ErrPaymentNotFound)
	}

	return s.verify(ctx, payment)
}

func (s *CheckoutService) resolvePayment(ctx context.Context, req *types.VerifyCheckoutRequest) (*entity.Payment, error) {
	if req.PaymentID != "" {
		return s.paymentRepo.FindByID(ctx, req.PaymentID)
	}
	if req.CheckoutID != "" {
		return s.paymentRepo.FindByCheckoutID(ctx, req.CheckoutID)
	}
	if req.OrderID != "" {
		return s.paymentRepo.FindLatestByOrderID(ctx, req.OrderID)
	}
	return nil, ErrInvalidRequest
}

func (s *CheckoutService) verify(ctx context.Context, payment *entity.Payment) (*VerificationResult, error) {
	if payment.Status.Terminal() {
		return resultFor(payment), nil
	}

	if payment.CheckoutID == nil || strings.TrimSpace(*payment.CheckoutID) == "" {
		// Nothing to re-query; never guess an outcome.
		return nil, fmt.Errorf("%w: payment has no checkout session", ErrVerificationFailed)
	}

	providerClient, err := s.providerReg.Get(payment.Provider)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	status, err := providerClient.GetCheckoutStatus(ctx, *payment.CheckoutID)
	if err != nil {
		return nil, err
	}

	if _, err := s.applyStatus(ctx, payment, status.Status, status.ProviderPaymentID, "payment_verified", nil, nil); err != nil {
		return nil, err
	}

	// Re-read: a webhook may have won the race with a different final
	// state; the store is authoritative either way.
	refreshed, err := s.paymentRepo.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if refreshed != nil {
		payment = refreshed
	}

	return resultFor(payment), nil
}

func resultFor(payment *entity.Payment) *VerificationResult {
	result := &VerificationResult{
		Payment:   payment,
		Status:    payment.Status,
		Succeeded: payment.Status == entity.PaymentStatusSucceeded,
	}
	switch payment.Status {
	case entity.PaymentStatusSucceeded:
		result.Message = "payment completed"
	case entity.PaymentStatusPending, entity.PaymentStatusProcessing:
		result.Message = "payment is still processing"
	default:
		result.Message = "payment did not complete"
	}
	return result
}
