package service

import (
	"context"
	"testing"
	"time"

	"github.com/capecart/ms-go-checkout/app/entity"
)

func TestRunReconcileBatchSettlesStalePayment(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	seedCheckoutPayment(paymentRepo, "pay-1", "order-1", "ch_123", entity.PaymentStatusPending)
	gateway := &fakeProvider{status: checkoutStatusFor(entity.PaymentStatusSucceeded)}
	svc := newCheckoutServiceForTest(paymentRepo, orderRepo, &fakeEventRepo{}, gateway, nil)

	reconciled, err := svc.RunReconcileBatch(context.Background())
	if err != nil {
		t.Fatalf("reconcile batch failed: %v", err)
	}
	if reconciled != 1 {
		t.Fatalf("expected 1 reconciled payment, got %d", reconciled)
	}

	payment, _ := paymentRepo.FindByID(context.Background(), "pay-1")
	if payment.Status != entity.PaymentStatusSucceeded {
		t.Fatalf("expected succeeded payment, got %s", payment.Status)
	}
	if orderRepo.orders["order-1"].Status != entity.OrderStatusPaid {
		t.Fatal("expected order to be marked paid")
	}
}

func TestRunReconcileBatchSkipsFreshPayments(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	payment := seedCheckoutPayment(paymentRepo, "pay-1", "order-1", "ch_123", entity.PaymentStatusPending)
	payment.UpdatedAt = time.Now().UTC()
	gateway := &fakeProvider{status: checkoutStatusFor(entity.PaymentStatusSucceeded)}
	svc := newCheckoutServiceForTest(paymentRepo, orderRepo, &fakeEventRepo{}, gateway, nil)

	reconciled, err := svc.RunReconcileBatch(context.Background())
	if err != nil {
		t.Fatalf("reconcile batch failed: %v", err)
	}
	if reconciled != 0 {
		t.Fatalf("expected no reconciled payments, got %d", reconciled)
	}
	if gateway.statusCalls != 0 {
		t.Fatalf("expected no provider queries, got %d", gateway.statusCalls)
	}
}

func TestRunReconcileBatchLeavesStillProcessingAlone(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	seedCheckoutPayment(paymentRepo, "pay-1", "order-1", "ch_123", entity.PaymentStatusProcessing)
	gateway := &fakeProvider{status: checkoutStatusFor(entity.PaymentStatusProcessing)}
	svc := newCheckoutServiceForTest(paymentRepo, orderRepo, &fakeEventRepo{}, gateway, nil)

	reconciled, err := svc.RunReconcileBatch(context.Background())
	if err != nil {
		t.Fatalf("reconcile batch failed: %v", err)
	}
	if reconciled != 0 {
		t.Fatalf("expected no status change, got %d", reconciled)
	}

	payment, _ := paymentRepo.FindByID(context.Background(), "pay-1")
	if payment.Status != entity.PaymentStatusProcessing {
		t.Fatalf("expected processing payment, got %s", payment.Status)
	}
}
