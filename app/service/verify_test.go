package service

import (
	"context"
	"errors"
	"testing"

	"github.com/capecart/ms-go-checkout/app/entity"
	"github.com/capecart/ms-go-checkout/app/provider"
	"github.com/capecart/ms-go-checkout/app/types"
)

func checkoutStatusFor(status entity.PaymentStatus) *provider.CheckoutStatus {
	providerPaymentID := "p_1"
	return &provider.CheckoutStatus{Status: status, ProviderPaymentID: &providerPaymentID}
}

func TestVerifyPaymentTerminalStatusSkipsProviderQuery(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	seedCheckoutPayment(paymentRepo, "pay-1", "order-1", "ch_123", entity.PaymentStatusSucceeded)
	gateway := &fakeProvider{}
	svc := newCheckoutServiceForTest(paymentRepo, orderRepo, &fakeEventRepo{}, gateway, nil)

	result, err := svc.VerifyPayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Succeeded {
		t.Fatal("expected succeeded result for terminal payment")
	}
	if gateway.statusCalls != 0 {
		t.Fatalf("expected no provider query for terminal payment, got %d", gateway.statusCalls)
	}
}

func TestVerifyOrderPaymentResolvesByOrderID(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	seedCheckoutPayment(paymentRepo, "pay-1", "order-1", "ch_123", entity.PaymentStatusPending)
	gateway := &fakeProvider{status: checkoutStatusFor(entity.PaymentStatusSucceeded)}
	svc := newCheckoutServiceForTest(paymentRepo, orderRepo, &fakeEventRepo{}, gateway, nil)

	result, err := svc.VerifyOrderPayment(context.Background(), &types.VerifyCheckoutRequest{OrderID: "order-1"})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("expected success, got status %s", result.Status)
	}

	payment, _ := paymentRepo.FindByID(context.Background(), "pay-1")
	if payment.Status != entity.PaymentStatusSucceeded {
		t.Fatalf("expected persisted succeeded status, got %s", payment.Status)
	}
	if orderRepo.orders["order-1"].Status != entity.OrderStatusPaid {
		t.Fatal("expected order to be marked paid")
	}
}

func TestVerifyOrderPaymentNoPaymentOnRecord(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	svc := newCheckoutServiceForTest(newFakePaymentRepo(), orderRepo, &fakeEventRepo{}, &fakeProvider{}, nil)

	_, err := svc.VerifyOrderPayment(context.Background(), &types.VerifyCheckoutRequest{OrderID: "order-1"})
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestVerifyPaymentWithoutCheckoutSessionFails(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	payment := seedCheckoutPayment(paymentRepo, "pay-1", "order-1", "ch_123", entity.PaymentStatusPending)
	payment.CheckoutID = nil
	svc := newCheckoutServiceForTest(paymentRepo, orderRepo, &fakeEventRepo{}, &fakeProvider{}, nil)

	_, err := svc.VerifyPayment(context.Background(), "pay-1")
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestVerifyPaymentStillProcessingIsNotSuccess(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	seedCheckoutPayment(paymentRepo, "pay-1", "order-1", "ch_123", entity.PaymentStatusPending)
	gateway := &fakeProvider{status: checkoutStatusFor(entity.PaymentStatusProcessing)}
	svc := newCheckoutServiceForTest(paymentRepo, orderRepo, &fakeEventRepo{}, gateway, nil)

	result, err := svc.VerifyPayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Succeeded {
		t.Fatal("processing must never report success")
	}
	if result.Status != entity.PaymentStatusProcessing {
		t.Fatalf("expected processing status, got %s", result.Status)
	}
	if orderRepo.orders["order-1"].Status != entity.OrderStatusPending {
		t.Fatal("expected order to stay pending")
	}
}

func TestVerifyPaymentFailedOutcomePersists(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	seedCheckoutPayment(paymentRepo, "pay-1", "order-1", "ch_123", entity.PaymentStatusProcessing)
	gateway := &fakeProvider{status: checkoutStatusFor(entity.PaymentStatusFailed)}
	svc := newCheckoutServiceForTest(paymentRepo, orderRepo, &fakeEventRepo{}, gateway, nil)

	result, err := svc.VerifyPayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Succeeded {
		t.Fatal("failed payment must not report success")
	}

	payment, _ := paymentRepo.FindByID(context.Background(), "pay-1")
	if payment.Status != entity.PaymentStatusFailed {
		t.Fatalf("expected persisted failed status, got %s", payment.Status)
	}
}

func TestUpdateOrderAfterSuccessfulPaymentIsIdempotent(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	svc := newCheckoutServiceForTest(newFakePaymentRepo(), orderRepo, &fakeEventRepo{}, &fakeProvider{}, nil)

	if err := svc.UpdateOrderAfterSuccessfulPayment(context.Background(), "order-1", "pay-1"); err != nil {
		t.Fatalf("first mark paid failed: %v", err)
	}
	if err := svc.UpdateOrderAfterSuccessfulPayment(context.Background(), "order-1", "pay-1"); err != nil {
		t.Fatalf("second mark paid failed: %v", err)
	}

	order := orderRepo.orders["order-1"]
	if order.Status != entity.OrderStatusPaid {
		t.Fatalf("expected paid order, got %s", order.Status)
	}
	if order.PaymentID == nil || *order.PaymentID != "pay-1" {
		t.Fatal("expected payment id on order")
	}
}
