package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
)

// OrderStateRepository implements ports.OrderStateRepository on PostgreSQL
type OrderStateRepository struct {
	db ports.DBPort
}

// NewOrderStateRepository creates a new order state repository
func NewOrderStateRepository(db ports.DBPort) *OrderStateRepository {
	return &OrderStateRepository{db: db}
}

const orderStateColumns = `
	order_id, invoice_id, order_reference_id, authorization_id, capture_id,
	billing_agreement_id, amount, currency, reference_set, confirmed,
	authorized, captured, reconfirm_required, authorization_attempts,
	capture_attempts, refund_attempts, created_at, updated_at`

// Create inserts a fresh lifecycle record for an order
func (r *OrderStateRepository) Create(ctx context.Context, tx ports.DBTX, state *domain.OrderPaymentState) error {
	amount, err := decimalToNumeric(state.Amount)
	if err != nil {
		return err
	}

	_, err = executor(r.db, tx).Exec(ctx, `
		INSERT INTO amazon_order_states (
			order_id, invoice_id, order_reference_id, billing_agreement_id,
			amount, currency
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		state.OrderID,
		nullText(state.InvoiceID),
		nullText(state.OrderReferenceID),
		nullText(state.BillingAgreementID),
		amount,
		state.Currency,
	)
	if err != nil {
		return fmt.Errorf("create order state: %w", err)
	}
	return nil
}

// GetByOrderID retrieves the lifecycle record for an order
func (r *OrderStateRepository) GetByOrderID(ctx context.Context, db ports.DBTX, orderID string) (*domain.OrderPaymentState, error) {
	row := executor(r.db, db).QueryRow(ctx,
		`SELECT `+orderStateColumns+` FROM amazon_order_states WHERE order_id = $1`,
		orderID,
	)
	return r.scanState(row)
}

// GetByOrderReferenceID resolves an order from the provider's order reference id
func (r *OrderStateRepository) GetByOrderReferenceID(ctx context.Context, db ports.DBTX, orderReferenceID string) (*domain.OrderPaymentState, error) {
	row := executor(r.db, db).QueryRow(ctx,
		`SELECT `+orderStateColumns+` FROM amazon_order_states WHERE order_reference_id = $1`,
		orderReferenceID,
	)
	return r.scanState(row)
}

// Update writes all mutable fields of the lifecycle record
func (r *OrderStateRepository) Update(ctx context.Context, tx ports.DBTX, state *domain.OrderPaymentState) error {
	amount, err := decimalToNumeric(state.Amount)
	if err != nil {
		return err
	}

	tag, err := executor(r.db, tx).Exec(ctx, `
		UPDATE amazon_order_states SET
			invoice_id = $2,
			order_reference_id = $3,
			authorization_id = $4,
			capture_id = $5,
			billing_agreement_id = $6,
			amount = $7,
			currency = $8,
			reference_set = $9,
			confirmed = $10,
			authorized = $11,
			captured = $12,
			reconfirm_required = $13,
			authorization_attempts = $14,
			capture_attempts = $15,
			refund_attempts = $16,
			updated_at = NOW()
		WHERE order_id = $1`,
		state.OrderID,
		nullText(state.InvoiceID),
		nullText(state.OrderReferenceID),
		nullText(state.AuthorizationID),
		nullText(state.CaptureID),
		nullText(state.BillingAgreementID),
		amount,
		state.Currency,
		state.ReferenceSet,
		state.Confirmed,
		state.Authorized,
		state.Captured,
		state.ReconfirmRequired,
		state.AuthorizationAttempts,
		state.CaptureAttempts,
		state.RefundAttempts,
	)
	if err != nil {
		return fmt.Errorf("update order state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoRows
	}
	return nil
}

// MarkCaptured sets the captured flag only if the order is not already
// captured, so webhook and synchronous capture can race safely
func (r *OrderStateRepository) MarkCaptured(ctx context.Context, tx ports.DBTX, orderID, captureID string) (bool, error) {
	tag, err := executor(r.db, tx).Exec(ctx, `
		UPDATE amazon_order_states
		SET captured = TRUE, capture_id = $2, updated_at = NOW()
		WHERE order_id = $1 AND captured = FALSE`,
		orderID, nullText(captureID),
	)
	if err != nil {
		return false, fmt.Errorf("mark captured: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AppendHistory adds a human-readable audit trail entry for the order
func (r *OrderStateRepository) AppendHistory(ctx context.Context, db ports.DBTX, orderID, message string) error {
	_, err := executor(r.db, db).Exec(ctx,
		`INSERT INTO amazon_order_history (order_id, message) VALUES ($1, $2)`,
		orderID, message,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListHistory returns the audit trail for an order, oldest first
func (r *OrderStateRepository) ListHistory(ctx context.Context, db ports.DBTX, orderID string) ([]*domain.HistoryEntry, error) {
	rows, err := executor(r.db, db).Query(ctx,
		`SELECT id, order_id, message, created_at
		 FROM amazon_order_history WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		entry := &domain.HistoryEntry{}
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.Message, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *OrderStateRepository) scanState(row pgx.Row) (*domain.OrderPaymentState, error) {
	var (
		state                                                 domain.OrderPaymentState
		invoiceID, orderRefID, authID, captureID, agreementID pgtype.Text
		amount                                                pgtype.Numeric
	)

	err := row.Scan(
		&state.OrderID,
		&invoiceID,
		&orderRefID,
		&authID,
		&captureID,
		&agreementID,
		&amount,
		&state.Currency,
		&state.ReferenceSet,
		&state.Confirmed,
		&state.Authorized,
		&state.Captured,
		&state.ReconfirmRequired,
		&state.AuthorizationAttempts,
		&state.CaptureAttempts,
		&state.RefundAttempts,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scan order state: %w", err)
	}

	state.InvoiceID = textValue(invoiceID)
	state.OrderReferenceID = textValue(orderRefID)
	state.AuthorizationID = textValue(authID)
	state.CaptureID = textValue(captureID)
	state.BillingAgreementID = textValue(agreementID)

	state.Amount, err = pgNumericToDecimal(amount)
	if err != nil {
		return nil, fmt.Errorf("order state amount: %w", err)
	}

	if err := state.Validate(); err != nil {
		return nil, err
	}
	return &state, nil
}
