package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/capecart/ms-go-checkout/app/entity"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, order_number, status, amount_cents, currency, payment_id, created_at, updated_at`

// Create persists the order and its line items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, status, amount_cents, currency, payment_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		order.ID,
		order.OrderNumber,
		string(order.Status),
		order.AmountCents,
		order.Currency,
		nullableStringValue(order.PaymentID),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		metadataJSON, err := serializeMetadata(item.Metadata)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_ref, quantity, price_cents, metadata_json)
			VALUES (?, ?, ?, ?, ?)
		`,
			item.OrderID,
			item.ProductRef,
			item.Quantity,
			item.PriceCents,
			metadataJSON,
		)
		if err != nil {
			return err
		}
		if id, err := result.LastInsertId(); err == nil {
			item.ID = uint64(id)
		}
	}

	return tx.Commit()
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	order := &entity.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	if err := scanOrder(r.db.QueryRowContext(ctx, query, id), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *OrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*entity.Order, error) {
	order := &entity.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = ? LIMIT 1`
	if err := scanOrder(r.db.QueryRowContext(ctx, query, orderNumber), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// MarkPaid moves an order to paid and records the completing payment. The
// conditional write makes repeated application a no-op, so the webhook path
// and the redirect-return path can both call it for the same payment. The
// returned bool reports whether this call performed the transition.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID, paymentID string, updatedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, payment_id = ?, updated_at = ?
		WHERE id = ? AND status <> ?
	`,
		string(entity.OrderStatusPaid),
		paymentID,
		updatedAt,
		orderID,
		string(entity.OrderStatusPaid),
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	// Zero rows means either already paid (fine) or no such order.
	existing, err := r.FindByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, ErrOrderNotFound
	}

	return false, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status entity.OrderStatus, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), updatedAt, orderID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *OrderRepository) listItems(ctx context.Context, orderID string) ([]entity.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_ref, quantity, price_cents, metadata_json
		FROM order_items
		WHERE order_id = ?
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]entity.OrderItem, 0)
	for rows.Next() {
		var item entity.OrderItem
		var metadataJSON string
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductRef, &item.Quantity, &item.PriceCents, &metadataJSON); err != nil {
			return nil, err
		}
		metadata, err := parseMetadata(metadataJSON)
		if err != nil {
			return nil, err
		}
		item.Metadata = metadata
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func scanOrder(scan rowScanner, order *entity.Order) error {
	var status string
	var paymentID sql.NullString

	err := scan.Scan(
		&order.ID,
		&order.OrderNumber,
		&status,
		&order.AmountCents,
		&order.Currency,
		&paymentID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	order.Status = entity.OrderStatus(status)
	order.PaymentID = stringPtrFromNull(paymentID)

	return nil
}
