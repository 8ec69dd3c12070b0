package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/capecart/ms-go-checkout/app/entity"
)

var (
	ErrProviderNotSupported = errors.New("provider is not supported")

	// ErrSignatureInvalid is returned before any payload inspection when a
	// webhook fails authentication. Distinct from parse failures so the
	// webhook endpoint can answer 401 rather than 400.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrAmountBelowMinimum is raised locally, before any network call, for
	// amounts under the provider's per-currency floor.
	ErrAmountBelowMinimum = errors.New("amount below provider minimum")
)

// GatewayError is the normalized shape of any provider-side rejection:
// a non-2xx response, an unreachable endpoint, or a 2xx body missing the
// fields a checkout session needs. Message holds provider text for logs;
// it is never echoed to storefront callers.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error: status=%d message=%s", e.StatusCode, e.Message)
}

type CheckoutInput struct {
	AmountCents int64
	Currency    string

	SuccessURL string
	CancelURL  string
	FailureURL string

	Metadata map[string]string
	SaveCard bool

	// IdempotencyKey is attached to the create request so provider-side
	// retries of the same logical request cannot double-charge.
	IdempotencyKey string
}

type CheckoutSession struct {
	CheckoutID  string
	CheckoutURL string
}

type CheckoutStatus struct {
	Status            entity.PaymentStatus
	ProviderPaymentID *string
}

// WebhookEvent is a provider notification after signature verification.
// NewStatus is empty when the event type or status is unrecognized; such
// events are acknowledged without a state change.
type WebhookEvent struct {
	EventType         string
	CheckoutID        string
	ProviderPaymentID *string
	NewStatus         entity.PaymentStatus
	RawPayload        []byte
}

type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, input *CheckoutInput) (*CheckoutSession, error)
	GetCheckoutStatus(ctx context.Context, checkoutID string) (*CheckoutStatus, error)
	VerifyAndParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}
