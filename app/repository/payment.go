package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/capecart/ms-go-checkout/app/entity"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")

	// ErrCheckoutAlreadyBound guards the one-session-one-payment invariant:
	// checkout_id carries a unique key.
	ErrCheckoutAlreadyBound = errors.New("checkout id already bound to a payment")
)

// StatusUpdate is the payload of a conditional status transition. Nil
// pointer fields leave the stored value untouched; Metadata, when non-nil,
// replaces the stored metadata wholesale.
type StatusUpdate struct {
	Status            entity.PaymentStatus
	ProviderPaymentID *string
	ErrorMessage      *string
	Metadata          map[string]string
	UpdatedAt         time.Time
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, order_id, amount_cents, currency, status, provider,
		provider_payment_id, checkout_id, checkout_url, error_message, metadata_json,
		created_at, updated_at`

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	metadataJSON, err := serializeMetadata(payment.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			id, order_id, amount_cents, currency, status, provider,
			provider_payment_id, checkout_id, checkout_url, error_message, metadata_json,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.AmountCents,
		payment.Currency,
		string(payment.Status),
		payment.Provider,
		nullableStringValue(payment.ProviderPaymentID),
		nullableStringValue(payment.CheckoutID),
		nullableStringValue(payment.CheckoutURL),
		nullableStringValue(payment.ErrorMessage),
		metadataJSON,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, id), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func (r *PaymentRepository) FindByCheckoutID(ctx context.Context, checkoutID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE checkout_id = ? LIMIT 1`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, checkoutID), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func (r *PaymentRepository) FindLatestByOrderID(ctx context.Context, orderID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, orderID), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func (r *PaymentRepository) ListByOrderID(ctx context.Context, orderID string) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = ? ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

// AttachCheckout binds a freshly created provider session to a pending
// payment. The unique key on checkout_id rejects a second binding of the
// same session.
func (r *PaymentRepository) AttachCheckout(ctx context.Context, id, checkoutID, checkoutURL string, updatedAt time.Time) error {
	query := `
		UPDATE payments
		SET checkout_id = ?, checkout_url = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, checkoutID, checkoutURL, updatedAt, id)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrCheckoutAlreadyBound
		}
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}

	return nil
}

// TransitionStatus applies a status change as a single conditional write:
// the row is updated only while its current status is in allowedFrom. The
// returned bool reports whether the transition was applied, which is how
// duplicate webhook deliveries and losing racers observe a no-op.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, id string, allowedFrom []entity.PaymentStatus, update StatusUpdate) (bool, error) {
	if len(allowedFrom) == 0 {
		return false, errors.New("allowedFrom must not be empty")
	}

	setClauses := []string{"status = ?", "updated_at = ?"}
	args := []interface{}{string(update.Status), update.UpdatedAt}

	if update.ProviderPaymentID != nil {
		setClauses = append(setClauses, "provider_payment_id = ?")
		args = append(args, *update.ProviderPaymentID)
	}
	if update.ErrorMessage != nil {
		setClauses = append(setClauses, "error_message = ?")
		args = append(args, *update.ErrorMessage)
	}
	if update.Metadata != nil {
		metadataJSON, err := serializeMetadata(update.Metadata)
		if err != nil {
			return false, err
		}
		setClauses = append(setClauses, "metadata_json = ?")
		args = append(args, metadataJSON)
	}

	args = append(args, id)
	placeholders := make([]string, 0, len(allowedFrom))
	for _, from := range allowedFrom {
		placeholders = append(placeholders, "?")
		args = append(args, string(from))
	}

	query := `UPDATE payments SET ` + strings.Join(setClauses, ", ") +
		` WHERE id = ? AND status IN (` + strings.Join(placeholders, ", ") + `)`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// ListStalePending returns non-terminal payments that hold a checkout id and
// have not moved since the cutoff; input for the operator reconcile batch.
func (r *PaymentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status IN (?, ?)
		  AND checkout_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query,
		string(entity.PaymentStatusPending),
		string(entity.PaymentStatusProcessing),
		cutoff,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var status string
	var providerPaymentID sql.NullString
	var checkoutID sql.NullString
	var checkoutURL sql.NullString
	var errorMessage sql.NullString
	var metadataJSON string

	err := scan.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.AmountCents,
		&payment.Currency,
		&status,
		&payment.Provider,
		&providerPaymentID,
		&checkoutID,
		&checkoutURL,
		&errorMessage,
		&metadataJSON,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payment.Status = entity.PaymentStatus(status)
	payment.ProviderPaymentID = stringPtrFromNull(providerPaymentID)
	payment.CheckoutID = stringPtrFromNull(checkoutID)
	payment.CheckoutURL = stringPtrFromNull(checkoutURL)
	payment.ErrorMessage = stringPtrFromNull(errorMessage)

	metadata, err := parseMetadata(metadataJSON)
	if err != nil {
		return err
	}
	payment.Metadata = metadata

	return nil
}
