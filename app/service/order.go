package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/capecart/ms-go-checkout/app/entity"
	"github.com/capecart/ms-go-checkout/app/repository"
	"github.com/capecart/ms-go-checkout/app/types"
)

func (s *CheckoutService) CreateOrder(ctx context.Context, req *types.CreateOrderRequest) (*entity.Order, error) {
	now := time.Now().UTC()

	items := make([]entity.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, entity.OrderItem{
			ProductRef: item.ProductRef,
			Quantity:   item.Quantity,
			PriceCents: item.PriceCents,
			Metadata:   cloneMetadata(item.Metadata),
		})
	}

	order := &entity.Order{
		ID:          uuid.NewString(),
		Status:      entity.OrderStatusPending,
		AmountCents: req.AmountCents,
		Currency:    types.NormalizeCurrency(req.Currency),
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Regenerate on an order-number collision; the unique key is the
	// arbiter.
	for attempt := 0; ; attempt++ {
		order.OrderNumber = s.generateOrderNumber()
		err := s.orderRepo.Create(ctx, order)
		if err == nil {
			return order, nil
		}
		if errors.Is(err, repository.ErrOrderAlreadyExists) && attempt < 2 {
			continue
		}
		return nil, err
	}
}

func (s *CheckoutService) GetOrder(ctx context.Context, id string) (*entity.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *CheckoutService) ListOrderPayments(ctx context.Context, orderID string) ([]*entity.Payment, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.paymentRepo.ListByOrderID(ctx, orderID)
}

// UpdateOrderAfterSuccessfulPayment marks the order paid and records the
// completing payment. Safe to call repeatedly: both the webhook path and the
// redirect-return path may observe the same success.
func (s *CheckoutService) UpdateOrderAfterSuccessfulPayment(ctx context.Context, orderID, paymentID string) error {
	applied, err := s.orderRepo.MarkPaid(ctx, orderID, paymentID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	if applied {
		s.logger.WithFields(logrus.Fields{
			"order_id":   orderID,
			"payment_id": paymentID,
		}).Info("Order marked paid")
	}
	return nil
}
