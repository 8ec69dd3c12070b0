package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

type CreateCheckoutRequest struct {
	OrderID        string            `json:"orderId"`
	AmountInCents  int64             `json:"amountInCents"`
	Currency       string            `json:"currency"`
	SuccessURL     string            `json:"successUrl"`
	CancelURL      string            `json:"cancelUrl"`
	FailureURL     string            `json:"failureUrl"`
	Metadata       map[string]string `json:"metadata"`
	SaveCard       bool              `json:"saveCard"`
	IdempotencyKey string            `json:"idempotencyKey"`
}

func NewCreateCheckoutRequestFromContext(ctx echo.Context) (*CreateCheckoutRequest, error) {
	var body CreateCheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.OrderID = strings.TrimSpace(body.OrderID)
	body.Currency = NormalizeCurrency(body.Currency)
	body.SuccessURL = strings.TrimSpace(body.SuccessURL)
	body.CancelURL = strings.TrimSpace(body.CancelURL)
	body.FailureURL = strings.TrimSpace(body.FailureURL)
	body.IdempotencyKey = strings.TrimSpace(body.IdempotencyKey)
	if body.IdempotencyKey == "" && body.Metadata != nil {
		body.IdempotencyKey = strings.TrimSpace(body.Metadata["idempotencyKey"])
	}

	return &body, nil
}

func (r *CreateCheckoutRequest) Validate() error {
	if r.OrderID == "" {
		return errors.New("orderId is required")
	}
	if r.AmountInCents <= 0 {
		return errors.New("amountInCents must be > 0")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	return nil
}

type VerifyCheckoutRequest struct {
	CheckoutID string `json:"checkoutId"`
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
}

func NewVerifyCheckoutRequestFromContext(ctx echo.Context) (*VerifyCheckoutRequest, error) {
	var body VerifyCheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.CheckoutID = strings.TrimSpace(body.CheckoutID)
	body.PaymentID = strings.TrimSpace(body.PaymentID)
	body.OrderID = strings.TrimSpace(body.OrderID)

	return &body, nil
}

// NewVerifyCheckoutRequestFromRedirect builds a verification request from the
// query parameters Yoco appends on the redirect back to the storefront. Only
// orderId is guaranteed; the provider may add id (checkout id) and status.
func NewVerifyCheckoutRequestFromRedirect(ctx echo.Context) *VerifyCheckoutRequest {
	return &VerifyCheckoutRequest{
		CheckoutID: strings.TrimSpace(ctx.QueryParam("id")),
		PaymentID:  strings.TrimSpace(ctx.QueryParam("paymentId")),
		OrderID:    strings.TrimSpace(ctx.QueryParam("orderId")),
	}
}

func (r *VerifyCheckoutRequest) Validate() error {
	if r.CheckoutID == "" && r.PaymentID == "" && r.OrderID == "" {
		return errors.New("one of checkoutId, paymentId or orderId is required")
	}
	return nil
}

type CheckoutResponse struct {
	RedirectURL string `json:"redirectUrl"`
	CheckoutID  string `json:"checkoutId"`
	PaymentID   string `json:"paymentId"`
	OrderID     string `json:"orderId"`
}

type VerificationResponse struct {
	Success    bool   `json:"success"`
	Status     string `json:"status"`
	CheckoutID string `json:"checkoutId,omitempty"`
	PaymentID  string `json:"paymentId,omitempty"`
	OrderID    string `json:"orderId,omitempty"`
	Message    string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type WebhookAckResponse struct {
	Received bool `json:"received"`
}
