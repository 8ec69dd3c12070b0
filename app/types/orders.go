package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

type OrderItemInput struct {
	ProductRef string            `json:"productRef"`
	Quantity   int32             `json:"quantity"`
	PriceCents int64             `json:"priceCents"`
	Metadata   map[string]string `json:"metadata"`
}

type CreateOrderRequest struct {
	Items       []OrderItemInput `json:"items"`
	AmountCents int64            `json:"amountCents"`
	Currency    string           `json:"currency"`
}

func NewCreateOrderRequestFromContext(ctx echo.Context) (*CreateOrderRequest, error) {
	var body CreateOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Currency = NormalizeCurrency(body.Currency)
	for i := range body.Items {
		body.Items[i].ProductRef = strings.TrimSpace(body.Items[i].ProductRef)
	}

	return &body, nil
}

func (r *CreateOrderRequest) Validate() error {
	if len(r.Items) == 0 {
		return errors.New("items must not be empty")
	}
	for _, item := range r.Items {
		if item.ProductRef == "" {
			return errors.New("items[].productRef is required")
		}
		if item.Quantity <= 0 {
			return errors.New("items[].quantity must be > 0")
		}
		if item.PriceCents < 0 {
			return errors.New("items[].priceCents must be >= 0")
		}
	}
	if r.AmountCents <= 0 {
		return errors.New("amountCents must be > 0")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	return nil
}

type GetOrderRequest struct {
	ID string
}

func NewGetOrderRequestFromContext(ctx echo.Context) (*GetOrderRequest, error) {
	return &GetOrderRequest{ID: strings.TrimSpace(ctx.Param("id"))}, nil
}

func (r *GetOrderRequest) Validate() error {
	if r.ID == "" {
		return errors.New("invalid order id")
	}
	return nil
}

type OrderItemPayload struct {
	ProductRef string            `json:"productRef"`
	Quantity   int32             `json:"quantity"`
	PriceCents int64             `json:"priceCents"`
	Metadata   map[string]string `json:"metadata"`
}

type OrderPayload struct {
	ID          string             `json:"id"`
	OrderNumber string             `json:"orderNumber"`
	Status      string             `json:"status"`
	AmountCents int64              `json:"amountCents"`
	Currency    string             `json:"currency"`
	PaymentID   string             `json:"paymentId,omitempty"`
	Items       []OrderItemPayload `json:"items"`
	CreatedAt   string             `json:"createdAt"`
	UpdatedAt   string             `json:"updatedAt"`
}

type OrderEnvelopeResponse struct {
	Order *OrderPayload `json:"order"`
}

type PaymentPayload struct {
	ID                string            `json:"id"`
	OrderID           string            `json:"orderId"`
	AmountInCents     int64             `json:"amountInCents"`
	Currency          string            `json:"currency"`
	Status            string            `json:"status"`
	PaymentProvider   string            `json:"paymentProvider"`
	ProviderPaymentID string            `json:"providerPaymentId,omitempty"`
	CheckoutID        string            `json:"checkoutId,omitempty"`
	CheckoutURL       string            `json:"checkoutUrl,omitempty"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
	Metadata          map[string]string `json:"metadata"`
	CreatedAt         string            `json:"createdAt"`
	UpdatedAt         string            `json:"updatedAt"`
}

type PaymentEnvelopeResponse struct {
	Payment *PaymentPayload `json:"payment"`
}

type ListPaymentsResponse struct {
	Payments []*PaymentPayload `json:"payments"`
}

type PaymentEventPayload struct {
	ID        uint64 `json:"id"`
	EventType string `json:"eventType"`
	OldStatus string `json:"oldStatus,omitempty"`
	NewStatus string `json:"newStatus"`
	CreatedAt string `json:"createdAt"`
}

type ListPaymentEventsResponse struct {
	Events []*PaymentEventPayload `json:"events"`
}

type GetPaymentRequest struct {
	ID string
}

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	return &GetPaymentRequest{ID: strings.TrimSpace(ctx.Param("id"))}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if r.ID == "" {
		return errors.New("invalid payment id")
	}
	return nil
}
