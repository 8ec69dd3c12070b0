package entity

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

type OrderItem struct {
	ID         uint64
	OrderID    string
	ProductRef string
	Quantity   int32
	PriceCents int64
	Metadata   map[string]string
}

type Order struct {
	ID          string
	OrderNumber string

	Status OrderStatus

	AmountCents int64
	Currency    string

	// PaymentID is set once some payment for this order reached succeeded.
	PaymentID *string

	Items []OrderItem

	CreatedAt time.Time
	UpdatedAt time.Time
}
