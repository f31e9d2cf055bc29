package ports

import (
	"context"

	"github.com/kevin07696/amazonpay-service/internal/domain"
)

// LedgerRepository persists the local transaction ledger
type LedgerRepository interface {
	// Create books a new ledger entry
	Create(ctx context.Context, tx DBTX, txn *domain.Transaction) error

	// GetByID retrieves a ledger entry
	GetByID(ctx context.Context, db DBTX, id string) (*domain.Transaction, error)

	// Finalize moves a pending entry to a terminal status with a single
	// conditional update (status <> terminal guard). Returns false when the
	// entry was already terminal, which callers treat as a benign race loss.
	Finalize(ctx context.Context, tx DBTX, id string, status domain.TransactionStatus, gatewayTxnID, message string) (bool, error)

	// ExistsForGatewayTransaction reports whether an entry is already booked
	// against a provider object id, preventing double-booking across the
	// webhook and poller paths
	ExistsForGatewayTransaction(ctx context.Context, db DBTX, gatewayTxnID string) (bool, error)
}
