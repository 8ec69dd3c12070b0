package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/capecart/ms-go-checkout/app/entity"
	"github.com/capecart/ms-go-checkout/app/provider"
	"github.com/capecart/ms-go-checkout/app/repository"
	"github.com/capecart/ms-go-checkout/app/types"
	"github.com/capecart/ms-go-checkout/config"
)

type fakePaymentRepo struct {
	payments map[string]*entity.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[string]*entity.Payment{}}
}

func (r *fakePaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	if _, ok := r.payments[payment.ID]; ok {
		return repository.ErrPaymentAlreadyExists
	}
	copyItem := *payment
	r.payments[payment.ID] = &copyItem
	return nil
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id string) (*entity.Payment, error) {
	item, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *fakePaymentRepo) FindByCheckoutID(_ context.Context, checkoutID string) (*entity.Payment, error) {
	for _, item := range r.payments {
		if item.CheckoutID != nil && *item.CheckoutID == checkoutID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) FindLatestByOrderID(_ context.Context, orderID string) (*entity.Payment, error) {
	items, _ := r.ListByOrderID(context.Background(), orderID)
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func (r *fakePaymentRepo) ListByOrderID(_ context.Context, orderID string) ([]*entity.Payment, error) {
	items := make([]*entity.Payment, 0)
	for _, item := range r.payments {
		if item.OrderID == orderID {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (r *fakePaymentRepo) AttachCheckout(_ context.Context, id, checkoutID, checkoutURL string, updatedAt time.Time) error {
	for _, item := range r.payments {
		if item.ID != id && item.CheckoutID != nil && *item.CheckoutID == checkoutID {
			return repository.ErrCheckoutAlreadyBound
		}
	}
	item, ok := r.payments[id]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	item.CheckoutID = &checkoutID
	item.CheckoutURL = &checkoutURL
	item.UpdatedAt = updatedAt
	return nil
}

func (r *fakePaymentRepo) TransitionStatus(_ context.Context, id string, allowedFrom []entity.PaymentStatus, update repository.StatusUpdate) (bool, error) {
	item, ok := r.payments[id]
	if !ok {
		return false, nil
	}

	allowed := false
	for _, from := range allowedFrom {
		if item.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}

	item.Status = update.Status
	item.UpdatedAt = update.UpdatedAt
	if update.ProviderPaymentID != nil {
		item.ProviderPaymentID = update.ProviderPaymentID
	}
	if update.ErrorMessage != nil {
		item.ErrorMessage = update.ErrorMessage
	}
	if update.Metadata != nil {
		item.Metadata = update.Metadata
	}
	return true, nil
}

func (r *fakePaymentRepo) ListStalePending(_ context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error) {
	items := make([]*entity.Payment, 0)
	for _, item := range r.payments {
		if item.Status != entity.PaymentStatusPending && item.Status != entity.PaymentStatusProcessing {
			continue
		}
		if item.CheckoutID == nil || item.UpdatedAt.After(cutoff) {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
	}
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

type fakeOrderRepo struct {
	orders map[string]*entity.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[string]*entity.Order{}}
}

func (r *fakeOrderRepo) Create(_ context.Context, order *entity.Order) error {
	for _, item := range r.orders {
		if item.OrderNumber == order.OrderNumber {
			return repository.ErrOrderAlreadyExists
		}
	}
	copyItem := *order
	r.orders[order.ID] = &copyItem
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id string) (*entity.Order, error) {
	item, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *fakeOrderRepo) MarkPaid(_ context.Context, orderID, paymentID string, updatedAt time.Time) (bool, error) {
	item, ok := r.orders[orderID]
	if !ok {
		return false, repository.ErrOrderNotFound
	}
	if item.Status == entity.OrderStatusPaid {
		return false, nil
	}
	item.Status = entity.OrderStatusPaid
	item.PaymentID = &paymentID
	item.UpdatedAt = updatedAt
	return true, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, orderID string, status entity.OrderStatus, updatedAt time.Time) error {
	item, ok := r.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	item.Status = status
	item.UpdatedAt = updatedAt
	return nil
}

type fakeEventRepo struct {
	events []*entity.PaymentEvent
}

func (r *fakeEventRepo) Create(_ context.Context, event *entity.PaymentEvent) error {
	copyItem := *event
	r.events = append(r.events, &copyItem)
	return nil
}

func (r *fakeEventRepo) ListByPaymentID(_ context.Context, paymentID string) ([]*entity.PaymentEvent, error) {
	items := make([]*entity.PaymentEvent, 0)
	for _, event := range r.events {
		if event.PaymentID == paymentID {
			copyItem := *event
			items = append(items, &copyItem)
		}
	}
	return items, nil
}

func (r *fakeEventRepo) hasType(eventType string) bool {
	for _, event := range r.events {
		if event.EventType == eventType {
			return true
		}
	}
	return false
}

type fakeIdempotencyStore struct {
	values map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{values: map[string]string{}}
}

func (s *fakeIdempotencyStore) Remember(_ context.Context, scope, key, value string) error {
	s.values[scope+":"+key] = value
	return nil
}

func (s *fakeIdempotencyStore) Recall(_ context.Context, scope, key string) (string, bool, error) {
	value, ok := s.values[scope+":"+key]
	return value, ok, nil
}

type fakeProvider struct {
	session      *provider.CheckoutSession
	createErr    error
	createCalls  int
	status       *provider.CheckoutStatus
	statusErr    error
	statusCalls  int
	webhookEvent *provider.WebhookEvent
	webhookErr   error
}

func (p *fakeProvider) Name() string { return provider.ProviderNameYoco }

func (p *fakeProvider) CreateCheckout(context.Context, *provider.CheckoutInput) (*provider.CheckoutSession, error) {
	p.createCalls++
	if p.createErr != nil {
		return nil, p.createErr
	}
	if p.session != nil {
		return p.session, nil
	}
	return &provider.CheckoutSession{CheckoutID: "ch_123", CheckoutURL: "https://pay.example/ch_123"}, nil
}

func (p *fakeProvider) GetCheckoutStatus(context.Context, string) (*provider.CheckoutStatus, error) {
	p.statusCalls++
	if p.statusErr != nil {
		return nil, p.statusErr
	}
	if p.status != nil {
		return p.status, nil
	}
	return &provider.CheckoutStatus{Status: entity.PaymentStatusProcessing}, nil
}

func (p *fakeProvider) VerifyAndParseWebhook(context.Context, []byte, string) (*provider.WebhookEvent, error) {
	if p.webhookErr != nil {
		return nil, p.webhookErr
	}
	return p.webhookEvent, nil
}

func newCheckoutServiceForTest(paymentRepo *fakePaymentRepo, orderRepo *fakeOrderRepo, eventRepo *fakeEventRepo, p provider.Provider, idempotency idempotencyStore) *CheckoutService {
	return NewCheckoutService(
		paymentRepo,
		orderRepo,
		eventRepo,
		provider.NewRegistry(p),
		idempotency,
		config.CheckoutConfig{
			OrderNumberPrefix:   "ORD",
			ReconcileStaleAfter: time.Minute,
			ReconcileBatchSize:  100,
		},
	)
}

func seedOrder(orderRepo *fakeOrderRepo, id string) *entity.Order {
	now := time.Now().UTC()
	order := &entity.Order{
		ID:          id,
		OrderNumber: "ORD-" + id,
		Status:      entity.OrderStatusPending,
		AmountCents: 5000,
		Currency:    "ZAR",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	orderRepo.orders[id] = order
	return order
}

func TestCreatePaymentRejectsBelowMinimumWithoutSideEffects(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	gateway := &fakeProvider{}
	svc := newCheckoutServiceForTest(paymentRepo, orderRepo, &fakeEventRepo{}, gateway, nil)

	_, err := svc.CreatePayment(context.Background(), &types.CreateCheckoutRequest{
		OrderID:       "order-1",
		AmountInCents: 150,
		Currency:      "ZAR",
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if len(paymentRepo.payments) != 0 {
		t.Fatalf("expected no payment rows, got %d", len(paymentRepo.payments))
	}
	if gateway.createCalls != 0 {
		t.Fatalf("expected no gateway calls, got %d", gateway.createCalls)
	}
}

func TestCreatePaymentUnknownOrder(t *testing.T) {
	svc := newCheckoutServiceForTest(newFakePaymentRepo(), newFakeOrderRepo(), &fakeEventRepo{}, &fakeProvider{}, nil)

	_, err := svc.CreatePayment(context.Background(), &types.CreateCheckoutRequest{
		OrderID:       "missing",
		AmountInCents: 5000,
		Currency:      "ZAR",
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCreatePaymentOpensCheckoutSession(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	eventRepo := &fakeEventRepo{}
	svc := newCheckoutServiceForTest(paymentRepo, orderRepo, eventRepo, &fakeProvider{}, nil)

	result, err := svc.CreatePayment(context.Background(), &types.CreateCheckoutRequest{
		OrderID:       "order-1",
		AmountInCents: 5000,
		Currency:      "ZAR",
	})
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if result.RedirectURL != "https://pay.example/ch_123" {
		t.Fatalf("unexpected redirect url %q", result.RedirectURL)
	}
	if result.Payment.Status != entity.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", result.Payment.Status)
	}

	stored, _ := paymentRepo.FindByID(context.Background(), result.Payment.ID)
	if stored == nil {
		t.Fatal("expected payment to be persisted")
	}
	if stored.CheckoutID == nil || *stored.CheckoutID != "ch_123" {
		t.Fatal("expected checkout id to be attached")
	}
	if stored.Metadata[entity.MetadataKeyOrderID] != "order-1" {
		t.Fatal("expected order id in payment metadata")
	}
	if stored.Metadata[entity.MetadataKeyPaymentID] != stored.ID {
		t.Fatal("expected payment id in payment metadata")
	}
	if !eventRepo.hasType("payment_created") {
		t.Fatal("expected payment_created event")
	}
}

func TestCreatePaymentGatewayFailureLeavesFailedPaymentAndOrderUntouched(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	eventRepo := &fakeEventRepo{}
	gateway := &fakeProvider{createErr: &provider.GatewayError{StatusCode: 503, Message: "upstream down"}}
	svc := newCheckoutServiceForTest(paymentRepo, orderRepo, eventRepo, gateway, nil)

	_, err := svc.CreatePayment(context.Background(), &types.CreateCheckoutRequest{
		OrderID:       "order-1",
		AmountInCents: 5000,
		Currency:      "ZAR",
	})
	var gatewayErr *provider.GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}

	if len(paymentRepo.payments) != 1 {
		t.Fatalf("expected one payment row, got %d", len(paymentRepo.payments))
	}
	for _, payment := range paymentRepo.payments {
		if payment.Status != entity.PaymentStatusFailed {
			t.Fatalf("expected failed payment, got %s", payment.Status)
		}
		if payment.ErrorMessage == nil {
			t.Fatal("expected error message on failed payment")
		}
	}
	if orderRepo.orders["order-1"].Status != entity.OrderStatusPending {
		t.Fatalf("expected order to stay pending, got %s", orderRepo.orders["order-1"].Status)
	}
	if !eventRepo.hasType("gateway_error") {
		t.Fatal("expected gateway_error event")
	}
}

func TestCreatePaymentIdempotencyKeyReusesSession(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "order-1")
	gateway := &fakeProvider{}
	svc := newCheckoutServiceForTest(paymentRepo, orderRepo, &fakeEventRepo{}, gateway, newFakeIdempotencyStore())

	req := &types.CreateCheckoutRequest{
		OrderID:        "order-1",
		AmountInCents:  5000,
		Currency:       "ZAR",
		IdempotencyKey: "key-1",
	}

	first, err := svc.CreatePayment(context.Background(), req)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := svc.CreatePayment(context.Background(), req)
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}

	if second.Payment.ID != first.Payment.ID {
		t.Fatalf("expected same payment for repeated key, first=%s second=%s", first.Payment.ID, second.Payment.ID)
	}
	if second.RedirectURL != first.RedirectURL {
		t.Fatalf("expected same redirect url, first=%q second=%q", first.RedirectURL, second.RedirectURL)
	}
	if gateway.createCalls != 1 {
		t.Fatalf("expected one gateway call, got %d", gateway.createCalls)
	}
	if len(paymentRepo.payments) != 1 {
		t.Fatalf("expected one payment row, got %d", len(paymentRepo.payments))
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	svc := newCheckoutServiceForTest(newFakePaymentRepo(), newFakeOrderRepo(), &fakeEventRepo{}, &fakeProvider{}, nil)

	_, err := svc.GetPayment(context.Background(), "missing")
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}
