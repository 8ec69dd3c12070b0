package repository

import (
	"context"

	"github.com/capecart/ms-go-checkout/app/entity"
)

type PaymentEventRepository struct {
	db DBTX
}

func NewPaymentEventRepository(db DBTX) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

func (r *PaymentEventRepository) Create(ctx context.Context, event *entity.PaymentEvent) error {
	var oldStatus interface{}
	if event.OldStatus != nil {
		oldStatus = string(*event.OldStatus)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_events (payment_id, event_type, old_status, new_status, provider_event_id, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.PaymentID,
		event.EventType,
		oldStatus,
		string(event.NewStatus),
		nullableStringValue(event.ProviderEventID),
		nullableStringValue(event.PayloadJSON),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	if id, err := result.LastInsertId(); err == nil {
		event.ID = uint64(id)
	}

	return nil
}

func (r *PaymentEventRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]*entity.PaymentEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payment_id, event_type, old_status, new_status, provider_event_id, payload_json, created_at
		FROM payment_events
		WHERE payment_id = ?
		ORDER BY id ASC
	`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*entity.PaymentEvent, 0)
	for rows.Next() {
		event := &entity.PaymentEvent{}
		var oldStatus, providerEventID, payloadJSON *string
		if err := rows.Scan(&event.ID, &event.PaymentID, &event.EventType, &oldStatus, &event.NewStatus, &providerEventID, &payloadJSON, &event.CreatedAt); err != nil {
			return nil, err
		}
		if oldStatus != nil {
			status := entity.PaymentStatus(*oldStatus)
			event.OldStatus = &status
		}
		event.ProviderEventID = providerEventID
		event.PayloadJSON = payloadJSON
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
