package entity

import "time"

// PaymentEvent is an append-only audit row recorded for every status
// transition and every webhook delivery, applied or not.
type PaymentEvent struct {
	ID uint64

	PaymentID string

	EventType string

	OldStatus *PaymentStatus
	NewStatus PaymentStatus

	ProviderEventID *string
	PayloadJSON     *string

	CreatedAt time.Time
}
