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

// RefundRepository implements ports.RefundRepository on PostgreSQL
type RefundRepository struct {
	db ports.DBPort
}

// NewRefundRepository creates a new open refund repository
func NewRefundRepository(db ports.DBPort) *RefundRepository {
	return &RefundRepository{db: db}
}

const refundColumns = `
	id, refund_id, transaction_id, order_id, amount, currency, reason, created_at`

// Create records a refund the provider accepted as Pending
func (r *RefundRepository) Create(ctx context.Context, tx ports.DBTX, refund *domain.OpenRefund) error {
	amount, err := decimalToNumeric(refund.Amount)
	if err != nil {
		return err
	}

	err = executor(r.db, tx).QueryRow(ctx, `
		INSERT INTO amazon_refund_transactions (
			refund_id, transaction_id, order_id, amount, currency, reason
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		refund.RefundID,
		refund.TransactionID,
		refund.OrderID,
		amount,
		refund.Currency,
		refund.Reason,
	).Scan(&refund.ID, &refund.CreatedAt)
	if err != nil {
		return fmt.Errorf("create open refund: %w", err)
	}
	return nil
}

// GetByRefundID retrieves an open refund by the provider's refund id
func (r *RefundRepository) GetByRefundID(ctx context.Context, db ports.DBTX, refundID string) (*domain.OpenRefund, error) {
	row := executor(r.db, db).QueryRow(ctx,
		`SELECT `+refundColumns+` FROM amazon_refund_transactions WHERE refund_id = $1`,
		refundID,
	)
	return scanOpenRefund(row)
}

// ListOpen returns all pending refunds for the polling reconciler
func (r *RefundRepository) ListOpen(ctx context.Context, db ports.DBTX) ([]*domain.OpenRefund, error) {
	rows, err := executor(r.db, db).Query(ctx,
		`SELECT `+refundColumns+` FROM amazon_refund_transactions ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list open refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*domain.OpenRefund
	for rows.Next() {
		refund, err := scanOpenRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, refund)
	}
	return refunds, rows.Err()
}

// Delete removes the open refund record; deleting twice is a no-op
func (r *RefundRepository) Delete(ctx context.Context, tx ports.DBTX, refundID string) error {
	_, err := executor(r.db, tx).Exec(ctx,
		`DELETE FROM amazon_refund_transactions WHERE refund_id = $1`,
		refundID,
	)
	if err != nil {
		return fmt.Errorf("delete open refund: %w", err)
	}
	return nil
}

func scanOpenRefund(row pgx.Row) (*domain.OpenRefund, error) {
	var (
		refund domain.OpenRefund
		amount pgtype.Numeric
	)
	err := row.Scan(
		&refund.ID,
		&refund.RefundID,
		&refund.TransactionID,
		&refund.OrderID,
		&amount,
		&refund.Currency,
		&refund.Reason,
		&refund.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scan open refund: %w", err)
	}

	refund.Amount, err = pgNumericToDecimal(amount)
	if err != nil {
		return nil, fmt.Errorf("open refund amount: %w", err)
	}
	return &refund, nil
}
