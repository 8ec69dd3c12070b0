package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/capecart/ms-go-checkout/app/factory"
	"github.com/capecart/ms-go-checkout/app/mapper"
	"github.com/capecart/ms-go-checkout/app/provider"
	"github.com/capecart/ms-go-checkout/app/service"
	"github.com/capecart/ms-go-checkout/app/types"
)

type CheckoutController struct {
	checkoutService *service.CheckoutService
	logger          logrus.FieldLogger
}

func NewCheckoutController(checkoutService *service.CheckoutService) *CheckoutController {
	return &CheckoutController{
		checkoutService: checkoutService,
		logger:          factory.NewModuleLogger("checkout-controller"),
	}
}

func (c *CheckoutController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *CheckoutController) CreateOrder(ctx echo.Context) error {
	req, err := types.NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.checkoutService.CreateOrder(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create order failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusCreated, &types.OrderEnvelopeResponse{Order: mapper.OrderToPayload(order)})
}

func (c *CheckoutController) GetOrder(ctx echo.Context) error {
	req, err := types.NewGetOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.checkoutService.GetOrder(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get order failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToPayload(order)})
}

func (c *CheckoutController) ListOrderPayments(ctx echo.Context) error {
	req, err := types.NewGetOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	payments, err := c.checkoutService.ListOrderPayments(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List order payments failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListPaymentsResponse{Payments: mapper.PaymentsToPayload(payments)})
}

func (c *CheckoutController) CreateCheckout(ctx echo.Context) error {
	req, err := types.NewCreateCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.checkoutService.CreatePayment(ctx.Request().Context(), req)
	if err != nil {
		return c.writeCheckoutError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, &types.CheckoutResponse{
		RedirectURL: result.RedirectURL,
		CheckoutID:  derefString(result.Payment.CheckoutID),
		PaymentID:   result.Payment.ID,
		OrderID:     result.Payment.OrderID,
	})
}

func (c *CheckoutController) GetPayment(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	payment, err := c.checkoutService.GetPayment(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToPayload(payment)})
}

func (c *CheckoutController) ListPaymentEvents(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	events, err := c.checkoutService.ListPaymentEvents(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List payment events failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListPaymentEventsResponse{Events: mapper.PaymentEventsToPayload(events)})
}

// VerifyCheckout serves the storefront's polling call after the buyer comes
// back from the hosted page.
func (c *CheckoutController) VerifyCheckout(ctx echo.Context) error {
	req, err := types.NewVerifyCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	return c.verify(ctx, req)
}

// CheckoutReturn serves the redirect-return URL itself, where identifiers
// arrive as query parameters and only orderId is guaranteed.
func (c *CheckoutController) CheckoutReturn(ctx echo.Context) error {
	return c.verify(ctx, types.NewVerifyCheckoutRequestFromRedirect(ctx))
}

func (c *CheckoutController) verify(ctx echo.Context, req *types.VerifyCheckoutRequest) error {
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.checkoutService.VerifyOrderPayment(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return ctx.JSON(http.StatusNotFound, &types.VerificationResponse{
				Success: false,
				Status:  "failed",
				OrderID: req.OrderID,
				Message: "no payment found for this order; it may still be processing",
			})
		case errors.Is(err, service.ErrVerificationFailed):
			return ctx.JSON(http.StatusOK, &types.VerificationResponse{
				Success: false,
				Status:  "failed",
				OrderID: req.OrderID,
				Message: "payment could not be verified",
			})
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Verify payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.VerificationResponse{
		Success:    result.Succeeded,
		Status:     string(result.Status),
		CheckoutID: derefString(result.Payment.CheckoutID),
		PaymentID:  result.Payment.ID,
		OrderID:    result.Payment.OrderID,
		Message:    result.Message,
	})
}

func (c *CheckoutController) HandleWebhook(ctx echo.Context) error {
	providerName := ctx.Param("provider")

	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "unreadable request body")
	}

	signature := ctx.Request().Header.Get("X-Yoco-Signature")
	if signature == "" {
		signature = ctx.Request().Header.Get("X-Provider-Signature")
	}

	logger := factory.LoggerWithContext(c.logger, ctx).WithField("provider", providerName)

	_, err = c.checkoutService.HandleWebhook(ctx.Request().Context(), providerName, rawBody, signature)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureInvalid):
			logger.Warn("Webhook signature verification failed")
			return c.writeError(ctx, http.StatusUnauthorized, "invalid signature")
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		case errors.Is(err, service.ErrProviderUnsupported), errors.Is(err, service.ErrCallbackRejected):
			return c.writeError(ctx, http.StatusBadRequest, "invalid webhook payload")
		default:
			logger.WithError(err).Error("Webhook processing failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	// Processed or recognized duplicate: acknowledge so the provider stops
	// retrying.
	return ctx.JSON(http.StatusOK, &types.WebhookAckResponse{Received: true})
}

// writeCheckoutError maps payment-creation failures onto user-safe
// responses; provider text is logged but never echoed.
func (c *CheckoutController) writeCheckoutError(ctx echo.Context, err error) error {
	logger := factory.LoggerWithContext(c.logger, ctx)

	var gatewayErr *provider.GatewayError
	switch {
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, provider.ErrAmountBelowMinimum):
		return c.writeError(ctx, http.StatusBadRequest, "invalid amount: below the minimum for this currency")
	case errors.Is(err, service.ErrOrderNotFound):
		return c.writeError(ctx, http.StatusNotFound, "order not found")
	case errors.As(err, &gatewayErr):
		logger.WithError(err).Warn("Gateway rejected checkout creation")
		statusCode := gatewayErr.StatusCode
		if statusCode < 400 || statusCode > 599 {
			statusCode = http.StatusBadGateway
		}
		return c.writeError(ctx, statusCode, "payment service error, please try again")
	default:
		logger.WithError(err).Error("Create checkout failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *CheckoutController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
