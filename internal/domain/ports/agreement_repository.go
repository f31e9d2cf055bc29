package ports

import (
	"context"

	"github.com/kevin07696/amazonpay-service/internal/domain"
)

// ListAgreementsFilter narrows admin listings of billing agreements
type ListAgreementsFilter struct {
	ActiveOnly bool
	Limit      int32
	Offset     int32
}

// AgreementRepository persists billing agreements and their per-invoice
// billing attempt records
type AgreementRepository interface {
	// Create inserts a new billing agreement after successful validation
	Create(ctx context.Context, tx DBTX, agreement *domain.BillingAgreement) error

	// GetByAgreementID retrieves an agreement by the provider's id
	GetByAgreementID(ctx context.Context, db DBTX, agreementID string) (*domain.BillingAgreement, error)

	// GetByGlobalProcessID resolves the agreement serving a subscription
	// process. Unpaid invoices carry the process id, not the agreement id.
	GetByGlobalProcessID(ctx context.Context, db DBTX, globalProcessID string) (*domain.BillingAgreement, error)

	// List returns agreements for the admin surface
	List(ctx context.Context, db DBTX, filter ListAgreementsFilter) ([]*domain.BillingAgreement, error)

	// SetActive toggles the local activation flag
	SetActive(ctx context.Context, tx DBTX, agreementID string, active bool) error

	// SetSuspended toggles the local suspension flag, independent of
	// provider state
	SetSuspended(ctx context.Context, tx DBTX, agreementID string, suspended bool) error

	// GetOrCreateTransaction returns the billing attempt record for an
	// (agreement, invoice) pair, creating it on first use. The pair is
	// unique; concurrent callers receive the same row.
	GetOrCreateTransaction(ctx context.Context, tx DBTX, agreementID, invoiceID string) (*domain.AgreementTransaction, error)

	// UpdateTransaction writes the mutable fields of a billing attempt record
	UpdateTransaction(ctx context.Context, tx DBTX, txn *domain.AgreementTransaction) error

	// IncrementCaptureAttempts atomically bumps the failed-attempt counter
	// and returns the new value
	IncrementCaptureAttempts(ctx context.Context, tx DBTX, agreementID, invoiceID string) (int, error)

	// MarkTransactionCompleted records completion exactly once. Returns
	// false when the record was already completed.
	MarkTransactionCompleted(ctx context.Context, tx DBTX, txn *domain.AgreementTransaction) (bool, error)
}
