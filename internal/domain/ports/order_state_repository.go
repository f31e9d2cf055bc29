package ports

import (
	"context"

	"github.com/kevin07696/amazonpay-service/internal/domain"
)

// OrderStateRepository persists the per-order payment lifecycle record.
// Attempt counters must be written before the gateway call they number, so
// Update is always issued in its own transaction ahead of the provider call.
type OrderStateRepository interface {
	// Create inserts a fresh lifecycle record for an order
	Create(ctx context.Context, tx DBTX, state *domain.OrderPaymentState) error

	// GetByOrderID retrieves the lifecycle record for an order
	GetByOrderID(ctx context.Context, db DBTX, orderID string) (*domain.OrderPaymentState, error)

	// GetByOrderReferenceID resolves an order from the provider's order
	// reference id (webhook path)
	GetByOrderReferenceID(ctx context.Context, db DBTX, orderReferenceID string) (*domain.OrderPaymentState, error)

	// Update writes all mutable fields of the lifecycle record
	Update(ctx context.Context, tx DBTX, state *domain.OrderPaymentState) error

	// MarkCaptured sets the captured flag and capture id only if the order is
	// not already captured. Returns false when another caller won the race.
	MarkCaptured(ctx context.Context, tx DBTX, orderID, captureID string) (bool, error)

	// AppendHistory adds a human-readable audit trail entry for the order
	AppendHistory(ctx context.Context, db DBTX, orderID, message string) error

	// ListHistory returns the audit trail for an order, oldest first
	ListHistory(ctx context.Context, db DBTX, orderID string) ([]*domain.HistoryEntry, error)
}
