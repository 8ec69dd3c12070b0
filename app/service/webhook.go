package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/capecart/ms-go-checkout/app/entity"
	"github.com/capecart/ms-go-checkout/app/observ"
	"github.com/capecart/ms-go-checkout/app/provider"
)

// WebhookOutcome reports what a delivery did: Applied is false for
// duplicates, already-terminal payments and unrecognized event types, all of
// which are still acknowledged.
type WebhookOutcome struct {
	Payment *entity.Payment
	Applied bool
}

// HandleWebhook applies one asynchronous provider notification. The
// signature is verified over the raw body before anything is parsed or
// written; a webhook never creates a payment, it can only settle one that
// the checkout flow opened.
func (s *CheckoutService) HandleWebhook(ctx context.Context, providerName string, payload []byte, signatureHeader string) (*WebhookOutcome, error) {
	providerClient, err := s.providerReg.Get(providerName)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	event, err := providerClient.VerifyAndParseWebhook(ctx, payload, signatureHeader)
	if err != nil {
		if errors.Is(err, provider.ErrSignatureInvalid) {
			observ.ObserveWebhook("signature_invalid")
			s.logger.WithField("provider", providerName).Warn("Webhook rejected: invalid signature")
			return nil, ErrSignatureInvalid
		}
		observ.ObserveWebhook("rejected")
		return nil, fmt.Errorf("%w: %v", ErrCallbackRejected, err)
	}

	if event.CheckoutID == "" {
		observ.ObserveWebhook("rejected")
		return nil, fmt.Errorf("%w: payload has no checkout id", ErrCallbackRejected)
	}

	payment, err := s.paymentRepo.FindByCheckoutID(ctx, event.CheckoutID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		observ.ObserveWebhook("unknown_checkout")
		s.logger.WithFields(logrus.Fields{
			"provider":    providerName,
			"checkout_id": event.CheckoutID,
			"event_type":  event.EventType,
		}).Warn("Webhook for unknown checkout id")
		return nil, ErrPaymentNotFound
	}

	payloadJSON := string(payload)

	if event.NewStatus == "" {
		// Unrecognized event type: acknowledge, audit, change nothing.
		observ.ObserveWebhook("ignored")
		s.recordEvent(ctx, &entity.PaymentEvent{
			PaymentID:   payment.ID,
			EventType:   eventTypeOrDefault(event.EventType),
			NewStatus:   payment.Status,
			PayloadJSON: &payloadJSON,
			CreatedAt:   time.Now().UTC(),
		})
		return &WebhookOutcome{Payment: payment, Applied: false}, nil
	}

	// The raw delivery rides along in the payment metadata for audit.
	metadata := cloneMetadata(payment.Metadata)
	metadata[entity.MetadataKeyWebhookPayload] = payloadJSON

	applied, err := s.applyStatus(ctx, payment, event.NewStatus, event.ProviderPaymentID, eventTypeOrDefault(event.EventType), &payloadJSON, metadata)
	if err != nil {
		return nil, err
	}

	if applied {
		observ.ObserveWebhook("applied")
	} else {
		// Duplicate delivery or a lost race: the terminal-state guard makes
		// this a no-op, which is exactly the idempotence the provider's
		// retry behavior requires. Still audited.
		observ.ObserveWebhook("duplicate")
		s.recordEvent(ctx, &entity.PaymentEvent{
			PaymentID:   payment.ID,
			EventType:   eventTypeOrDefault(event.EventType) + "_duplicate",
			NewStatus:   payment.Status,
			PayloadJSON: &payloadJSON,
			CreatedAt:   time.Now().UTC(),
		})
	}

	return &WebhookOutcome{Payment: payment, Applied: applied}, nil
}

func eventTypeOrDefault(eventType string) string {
	if strings.TrimSpace(eventType) == "" {
		return "provider_webhook"
	}
	return eventType
}
