package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidAmount       = errors.New("amount is below the minimum for this currency")
	ErrOrderNotFound       = errors.New("order not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrProviderUnsupported = errors.New("provider is not supported")
	ErrSignatureInvalid    = errors.New("webhook signature invalid")
	ErrCallbackRejected    = errors.New("callback rejected")

	// ErrVerificationFailed reports a verification outcome that cannot be
	// resolved to a real provider result: no checkout session on record, or
	// an ambiguous state. Never converted into a success.
	ErrVerificationFailed = errors.New("payment verification failed")

	// ErrIdempotencyViolation is reserved for detected duplicate processing
	// attempts that slipped past the idempotency-key guard.
	ErrIdempotencyViolation = errors.New("duplicate processing attempt detected")
)
