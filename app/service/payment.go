package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/capecart/ms-go-checkout/app/entity"
	"github.com/capecart/ms-go-checkout/app/observ"
	"github.com/capecart/ms-go-checkout/app/provider"
	"github.com/capecart/ms-go-checkout/app/types"
)

// CheckoutResult is the outcome of a successful payment creation: the
// persisted payment plus the provider URL the buyer is redirected to.
type CheckoutResult struct {
	Payment     *entity.Payment
	RedirectURL string
}

// CreatePayment persists a pending payment for the order and opens a hosted
// checkout session for it. Validation happens before any storage or network
// call; a gateway failure leaves a failed payment behind and the order
// untouched, so a retry creates a fresh payment.
func (s *CheckoutService) CreatePayment(ctx context.Context, req *types.CreateCheckoutRequest) (*CheckoutResult, error) {
	currency := types.NormalizeCurrency(req.Currency)
	if req.AmountInCents < types.MinimumAmountCents(currency) {
		return nil, ErrInvalidAmount
	}

	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = provider.GenerateIdempotencyKey()
	}

	// A retry of the same submission reuses the session it already opened.
	if existing, err := s.recallCheckout(ctx, idempotencyKey); err != nil {
		s.logger.WithError(err).Warn("Idempotency recall failed, continuing without it")
	} else if existing != nil {
		result := &CheckoutResult{Payment: existing}
		if existing.CheckoutURL != nil {
			result.RedirectURL = *existing.CheckoutURL
		}
		return result, nil
	}

	providerClient, err := s.providerReg.Get(provider.ProviderNameYoco)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	now := time.Now().UTC()
	payment := &entity.Payment{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		AmountCents: req.AmountInCents,
		Currency:    currency,
		Status:      entity.PaymentStatusPending,
		Provider:    provider.ProviderNameYoco,
		Metadata:    cloneMetadata(req.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// The metadata must be enough to recover the order from the provider
	// session alone; the webhook only carries the checkout id.
	payment.Metadata[entity.MetadataKeyOrderID] = order.ID
	payment.Metadata[entity.MetadataKeyPaymentID] = payment.ID
	payment.Metadata[entity.MetadataKeyIdempotencyKey] = idempotencyKey

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.recordEvent(ctx, &entity.PaymentEvent{
		PaymentID: payment.ID,
		EventType: "payment_created",
		NewStatus: payment.Status,
		CreatedAt: now,
	})

	session, err := providerClient.CreateCheckout(ctx, &provider.CheckoutInput{
		AmountCents:    payment.AmountCents,
		Currency:       payment.Currency,
		SuccessURL:     s.urlOrDefault(req.SuccessURL, s.cfg.DefaultSuccessURL),
		CancelURL:      s.urlOrDefault(req.CancelURL, s.cfg.DefaultCancelURL),
		FailureURL:     s.urlOrDefault(req.FailureURL, s.cfg.DefaultFailureURL),
		Metadata:       payment.Metadata,
		SaveCard:       req.SaveCard,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		observ.ObserveCheckoutCreated("failure")
		s.failPaymentAfterGatewayError(ctx, payment, err)
		return nil, err
	}

	if err := s.paymentRepo.AttachCheckout(ctx, payment.ID, session.CheckoutID, session.CheckoutURL, time.Now().UTC()); err != nil {
		return nil, err
	}
	payment.CheckoutID = &session.CheckoutID
	payment.CheckoutURL = &session.CheckoutURL

	s.rememberCheckout(ctx, idempotencyKey, payment.ID)
	observ.ObserveCheckoutCreated("success")

	s.logger.WithFields(logrus.Fields{
		"payment_id":  payment.ID,
		"order_id":    order.ID,
		"checkout_id": session.CheckoutID,
	}).Info("Checkout session created")

	return &CheckoutResult{Payment: payment, RedirectURL: session.CheckoutURL}, nil
}

func (s *CheckoutService) GetPayment(ctx context.Context, id string) (*entity.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// ListPaymentEvents returns the audit trail of a payment in the order the
// transitions were recorded.
func (s *CheckoutService) ListPaymentEvents(ctx context.Context, paymentID string) ([]*entity.PaymentEvent, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return s.eventRepo.ListByPaymentID(ctx, paymentID)
}

func (s *CheckoutService) failPaymentAfterGatewayError(ctx context.Context, payment *entity.Payment, gatewayErr error) {
	now := time.Now().UTC()
	message := gatewayErr.Error()
	if len(message) > 1024 {
		message = message[:1024]
	}

	applied, err := s.paymentRepo.TransitionStatus(ctx, payment.ID, entity.NonTerminalStatuses, transitionTo(entity.PaymentStatusFailed, nil, &message, nil, now))
	if err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Error("Failed to mark payment failed after gateway error")
		return
	}
	if !applied {
		return
	}

	oldStatus := payment.Status
	payment.Status = entity.PaymentStatusFailed
	payment.ErrorMessage = &message

	observ.ObserveStatusTransition(string(entity.PaymentStatusFailed))
	s.recordEvent(ctx, &entity.PaymentEvent{
		PaymentID: payment.ID,
		EventType: "gateway_error",
		OldStatus: &oldStatus,
		NewStatus: entity.PaymentStatusFailed,
		CreatedAt: now,
	})
}

func (s *CheckoutService) urlOrDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func (s *CheckoutService) recallCheckout(ctx context.Context, idempotencyKey string) (*entity.Payment, error) {
	if s.idempotency == nil || idempotencyKey == "" {
		return nil, nil
	}
	paymentID, found, err := s.idempotency.Recall(ctx, idempotencyScopeCheckout, idempotencyKey)
	if err != nil || !found {
		return nil, err
	}
	return s.paymentRepo.FindByID(ctx, paymentID)
}

func (s *CheckoutService) rememberCheckout(ctx context.Context, idempotencyKey, paymentID string) {
	if s.idempotency == nil || idempotencyKey == "" {
		return
	}
	if err := s.idempotency.Remember(ctx, idempotencyScopeCheckout, idempotencyKey, paymentID); err != nil {
		s.logger.WithError(err).Warn("Failed to remember idempotency key")
	}
}
