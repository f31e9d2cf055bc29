package ports

import (
	"context"

	"github.com/kevin07696/amazonpay-service/internal/domain"
)

// RefundRepository persists open refunds: refunds the provider accepted as
// Pending. Rows exist exactly while the refund is pending; Delete removes the
// row once a terminal state was observed.
type RefundRepository interface {
	// Create records a refund the provider answered Pending for
	Create(ctx context.Context, tx DBTX, refund *domain.OpenRefund) error

	// GetByRefundID retrieves an open refund by the provider's refund id
	GetByRefundID(ctx context.Context, db DBTX, refundID string) (*domain.OpenRefund, error)

	// ListOpen returns all pending refunds for the polling reconciler
	ListOpen(ctx context.Context, db DBTX) ([]*domain.OpenRefund, error)

	// Delete removes the open refund record. Deleting an already-removed row
	// is a no-op, so webhook and poller can race safely.
	Delete(ctx context.Context, tx DBTX, refundID string) error
}
