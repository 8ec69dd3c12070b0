package mapper

import (
	"time"

	"github.com/capecart/ms-go-checkout/app/entity"
	"github.com/capecart/ms-go-checkout/app/types"
)

func PaymentToPayload(item *entity.Payment) *types.PaymentPayload {
	if item == nil {
		return nil
	}

	return &types.PaymentPayload{
		ID:                item.ID,
		OrderID:           item.OrderID,
		AmountInCents:     item.AmountCents,
		Currency:          item.Currency,
		Status:            string(item.Status),
		PaymentProvider:   item.Provider,
		ProviderPaymentID: derefString(item.ProviderPaymentID),
		CheckoutID:        derefString(item.CheckoutID),
		CheckoutURL:       derefString(item.CheckoutURL),
		ErrorMessage:      derefString(item.ErrorMessage),
		Metadata:          cloneMetadata(item.Metadata),
		CreatedAt:         item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func PaymentsToPayload(items []*entity.Payment) []*types.PaymentPayload {
	result := make([]*types.PaymentPayload, 0, len(items))
	for _, item := range items {
		result = append(result, PaymentToPayload(item))
	}
	return result
}

func PaymentEventToPayload(item *entity.PaymentEvent) *types.PaymentEventPayload {
	if item == nil {
		return nil
	}

	payload := &types.PaymentEventPayload{
		ID:        item.ID,
		EventType: item.EventType,
		NewStatus: string(item.NewStatus),
		CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339),
	}
	if item.OldStatus != nil {
		payload.OldStatus = string(*item.OldStatus)
	}
	return payload
}

func PaymentEventsToPayload(items []*entity.PaymentEvent) []*types.PaymentEventPayload {
	result := make([]*types.PaymentEventPayload, 0, len(items))
	for _, item := range items {
		result = append(result, PaymentEventToPayload(item))
	}
	return result
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
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
