package entity

import "time"

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusProcessing        PaymentStatus = "processing"
	PaymentStatusSucceeded         PaymentStatus = "succeeded"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusCanceled          PaymentStatus = "canceled"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// NonTerminalStatuses are the only states a payment may transition out of
// on the normal path. Succeeded additionally admits the refund states.
var NonTerminalStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusProcessing}

func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusSucceeded,
		PaymentStatusFailed,
		PaymentStatusCanceled,
		PaymentStatusRefunded,
		PaymentStatusPartiallyRefunded:
		return true
	default:
		return false
	}
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing:
		return true
	default:
		return s.Terminal()
	}
}

// Metadata keys the service always sets on a payment so that webhook
// reconciliation can recover the owning order from the provider session alone.
const (
	MetadataKeyOrderID        = "order_id"
	MetadataKeyPaymentID      = "payment_id"
	MetadataKeyIdempotencyKey = "idempotency_key"
	MetadataKeyWebhookPayload = "webhook_payload"
)

type Payment struct {
	ID      string
	OrderID string

	AmountCents int64
	Currency    string

	Status   PaymentStatus
	Provider string

	ProviderPaymentID *string
	CheckoutID        *string
	CheckoutURL       *string

	ErrorMessage *string

	Metadata map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}
