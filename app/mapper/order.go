package mapper

import (
	"time"

	"github.com/capecart/ms-go-checkout/app/entity"
	"github.com/capecart/ms-go-checkout/app/types"
)

func OrderToPayload(item *entity.Order) *types.OrderPayload {
	if item == nil {
		return nil
	}

	items := make([]types.OrderItemPayload, 0, len(item.Items))
	for _, line := range item.Items {
		items = append(items, types.OrderItemPayload{
			ProductRef: line.ProductRef,
			Quantity:   line.Quantity,
			PriceCents: line.PriceCents,
			Metadata:   cloneMetadata(line.Metadata),
		})
	}

	return &types.OrderPayload{
		ID:          item.ID,
		OrderNumber: item.OrderNumber,
		Status:      string(item.Status),
		AmountCents: item.AmountCents,
		Currency:    item.Currency,
		PaymentID:   derefString(item.PaymentID),
		Items:       items,
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
