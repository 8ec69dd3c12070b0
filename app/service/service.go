package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/capecart/ms-go-checkout/app/entity"
	"github.com/capecart/ms-go-checkout/app/factory"
	"github.com/capecart/ms-go-checkout/app/provider"
	"github.com/capecart/ms-go-checkout/app/repository"
	"github.com/capecart/ms-go-checkout/config"
)

const defaultReconcileBatchSize = int32(100)

const idempotencyScopeCheckout = "checkout"

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id string) (*entity.Payment, error)
	FindByCheckoutID(ctx context.Context, checkoutID string) (*entity.Payment, error)
	FindLatestByOrderID(ctx context.Context, orderID string) (*entity.Payment, error)
	ListByOrderID(ctx context.Context, orderID string) ([]*entity.Payment, error)
	AttachCheckout(ctx context.Context, id, checkoutID, checkoutURL string, updatedAt time.Time) error
	TransitionStatus(ctx context.Context, id string, allowedFrom []entity.PaymentStatus, update repository.StatusUpdate) (bool, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error)
}

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentID string, updatedAt time.Time) (bool, error)
	UpdateStatus(ctx context.Context, orderID string, status entity.OrderStatus, updatedAt time.Time) error
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
	ListByPaymentID(ctx context.Context, paymentID string) ([]*entity.PaymentEvent, error)
}

// idempotencyStore is optional; a nil store disables key recall and the
// service relies on database constraints alone.
type idempotencyStore interface {
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type CheckoutService struct {
	paymentRepo paymentRepository
	orderRepo   orderRepository
	eventRepo   paymentEventRepository
	providerReg *provider.Registry
	idempotency idempotencyStore
	cfg         config.CheckoutConfig
	logger      logrus.FieldLogger
}

func NewCheckoutService(
	paymentRepo paymentRepository,
	orderRepo orderRepository,
	eventRepo paymentEventRepository,
	providerReg *provider.Registry,
	idempotency idempotencyStore,
	cfg config.CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		eventRepo:   eventRepo,
		providerReg: providerReg,
		idempotency: idempotency,
		cfg:         cfg,
		logger:      factory.NewModuleLogger("checkout-service"),
	}
}

func (s *CheckoutService) reconcileBatchSize() int32 {
	if s.cfg.ReconcileBatchSize > 0 {
		return s.cfg.ReconcileBatchSize
	}
	return defaultReconcileBatchSize
}

// generateOrderNumber builds a human-readable number from the tail of the
// current timestamp plus a random suffix; the unique key on order_number
// catches the rare collision.
func (s *CheckoutService) generateOrderNumber() string {
	prefix := s.cfg.OrderNumberPrefix
	if prefix == "" {
		prefix = "ORD"
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if len(ts) > 6 {
		ts = ts[len(ts)-6:]
	}
	return fmt.Sprintf("%s-%s%03d", prefix, ts, rand.IntN(1000))
}

func (s *CheckoutService) recordEvent(ctx context.Context, event *entity.PaymentEvent) {
	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.logger.WithError(err).WithField("payment_id", event.PaymentID).Warn("Failed to record payment event")
	}
}

func cloneMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return map[string]string{}
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
