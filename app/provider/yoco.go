package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capecart/ms-go-checkout/app/entity"
	"github.com/capecart/ms-go-checkout/app/types"
)

const ProviderNameYoco = "yoco"

type YocoConfig struct {
	SecretKey     string
	WebhookSecret string

	// BaseURLs is an ordered list of API roots tried until one yields any
	// HTTP response. Yoco has served its checkout API from more than one
	// host over time.
	BaseURLs []string

	HTTPTimeout time.Duration
}

type YocoProvider struct {
	cfg    YocoConfig
	client *http.Client
}

func NewYocoProvider(cfg YocoConfig) *YocoProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if len(cfg.BaseURLs) == 0 {
		cfg.BaseURLs = []string{
			"https://payments.yoco.com/api",
			"https://online.yoco.com/v1",
		}
	}

	return &YocoProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *YocoProvider) Name() string {
	return ProviderNameYoco
}

func (p *YocoProvider) CreateCheckout(ctx context.Context, input *CheckoutInput) (*CheckoutSession, error) {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return nil, errors.New("yoco secret key is not configured")
	}

	currency := types.NormalizeCurrency(input.Currency)
	if input.AmountCents < types.MinimumAmountCents(currency) {
		return nil, fmt.Errorf("%w: %d %s", ErrAmountBelowMinimum, input.AmountCents, currency)
	}

	payload := map[string]interface{}{
		"amount":   input.AmountCents,
		"currency": currency,
	}
	if input.SuccessURL != "" {
		payload["successUrl"] = input.SuccessURL
	}
	if input.CancelURL != "" {
		payload["cancelUrl"] = input.CancelURL
	}
	if input.FailureURL != "" {
		payload["failureUrl"] = input.FailureURL
	}
	if len(input.Metadata) > 0 {
		payload["metadata"] = input.Metadata
	}
	if input.SaveCard {
		payload["saveCard"] = true
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	idempotencyKey := strings.TrimSpace(input.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = GenerateIdempotencyKey()
	}

	body, status, err := p.postJSON(ctx, "/checkouts", encoded, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, &GatewayError{StatusCode: status, Message: extractProviderMessage(body)}
	}

	var session struct {
		ID          string `json:"id"`
		RedirectURL string `json:"redirectUrl"`
		URL         string `json:"url"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, &GatewayError{StatusCode: status, Message: "unparsable checkout response"}
	}

	checkoutURL := strings.TrimSpace(session.RedirectURL)
	if checkoutURL == "" {
		checkoutURL = strings.TrimSpace(session.URL)
	}
	checkoutID := strings.TrimSpace(session.ID)
	if checkoutID == "" || checkoutURL == "" {
		// Never return partial success.
		return nil, &GatewayError{StatusCode: status, Message: "checkout response missing id or redirect url"}
	}

	return &CheckoutSession{CheckoutID: checkoutID, CheckoutURL: checkoutURL}, nil
}

func (p *YocoProvider) GetCheckoutStatus(ctx context.Context, checkoutID string) (*CheckoutStatus, error) {
	checkoutID = strings.TrimSpace(checkoutID)
	if checkoutID == "" {
		return nil, errors.New("checkout id is required")
	}

	body, status, err := p.getJSON(ctx, "/checkouts/"+url.PathEscape(checkoutID))
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, &GatewayError{StatusCode: status, Message: extractProviderMessage(body)}
	}

	var payload struct {
		Status   string `json:"status"`
		Payments []struct {
			ID string `json:"id"`
		} `json:"payments"`
		PaymentID string `json:"paymentId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &GatewayError{StatusCode: status, Message: "unparsable checkout status response"}
	}

	result := &CheckoutStatus{Status: mapCheckoutStatus(payload.Status)}
	if id := strings.TrimSpace(payload.PaymentID); id != "" {
		result.ProviderPaymentID = &id
	} else if len(payload.Payments) > 0 {
		if id := strings.TrimSpace(payload.Payments[0].ID); id != "" {
			result.ProviderPaymentID = &id
		}
	}

	return result, nil
}

func (p *YocoProvider) VerifyAndParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if !VerifyWebhookSignature(payload, signature, p.cfg.WebhookSecret) {
		return nil, ErrSignatureInvalid
	}

	var event struct {
		Type       string `json:"type"`
		CheckoutID string `json:"checkout_id"`
		Status     string `json:"status"`
		PaymentID  string `json:"payment_id"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}

	result := &WebhookEvent{
		EventType:  strings.TrimSpace(event.Type),
		CheckoutID: strings.TrimSpace(event.CheckoutID),
		RawPayload: payload,
	}
	if id := strings.TrimSpace(event.PaymentID); id != "" {
		result.ProviderPaymentID = &id
	}

	switch result.EventType {
	case "payment.succeeded",
		"payment.failed",
		"payment.canceled",
		"payment.processing",
		"payment.refunded",
		"payment.partially_refunded":
		result.NewStatus = mapWebhookStatus(event.Status)
	default:
		// Unrecognized event types are acknowledged without a state change.
	}

	return result, nil
}

// VerifyWebhookSignature computes an HMAC-SHA256 hex digest over the exact
// raw body bytes and compares it to the signature header in constant time.
// Missing secret or signature fails closed.
func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" || strings.TrimSpace(webhookSecret) == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write(payload)
	expected := mac.Sum(nil)

	candidate, err := hex.DecodeString(signatureHeader)
	if err != nil {
		return false
	}

	return hmac.Equal(candidate, expected)
}

// GenerateIdempotencyKey builds a timestamp-plus-random token for checkout
// creation requests that did not supply their own key.
func GenerateIdempotencyKey() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strings.Split(uuid.NewString(), "-")[0]
}

func (p *YocoProvider) postJSON(ctx context.Context, path string, body []byte, idempotencyKey string) ([]byte, int, error) {
	return p.doWithFallback(ctx, func(base string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", idempotencyKey)
		return req, nil
	})
}

func (p *YocoProvider) getJSON(ctx context.Context, path string) ([]byte, int, error) {
	return p.doWithFallback(ctx, func(base string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
		return req, nil
	})
}

// doWithFallback tries each configured base URL in order until one yields an
// HTTP response. Any response, success or failure, ends the sequence;
// only transport-level errors advance to the next base.
func (p *YocoProvider) doWithFallback(ctx context.Context, build func(base string) (*http.Request, error)) ([]byte, int, error) {
	var lastErr error
	for _, base := range p.cfg.BaseURLs {
		base = strings.TrimRight(strings.TrimSpace(base), "/")
		if base == "" {
			continue
		}

		req, err := build(base)
		if err != nil {
			return nil, 0, err
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, resp.StatusCode, err
		}
		return body, resp.StatusCode, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no gateway base url configured")
	}
	return nil, 0, &GatewayError{StatusCode: 0, Message: lastErr.Error()}
}

func mapCheckoutStatus(raw string) entity.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "paid", "completed":
		return entity.PaymentStatusSucceeded
	case "cancelled", "canceled":
		return entity.PaymentStatusCanceled
	case "failed":
		return entity.PaymentStatusFailed
	default:
		return entity.PaymentStatusProcessing
	}
}

func mapWebhookStatus(raw string) entity.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "succeeded":
		return entity.PaymentStatusSucceeded
	case "failed":
		return entity.PaymentStatusFailed
	case "canceled", "cancelled":
		return entity.PaymentStatusCanceled
	case "processing":
		return entity.PaymentStatusProcessing
	case "refunded":
		return entity.PaymentStatusRefunded
	case "partially_refunded":
		return entity.PaymentStatusPartiallyRefunded
	default:
		return ""
	}
}

func extractProviderMessage(body []byte) string {
	var payload struct {
		Message     string `json:"message"`
		Description string `json:"description"`
		Error       string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		for _, candidate := range []string{payload.Message, payload.Description, payload.Error} {
			if strings.TrimSpace(candidate) != "" {
				return strings.TrimSpace(candidate)
			}
		}
	}
	message := strings.TrimSpace(string(body))
	if len(message) > 512 {
		message = message[:512]
	}
	if message == "" {
		message = "payment service error"
	}
	return message
}
