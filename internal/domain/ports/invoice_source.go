package ports

import (
	"context"

	"github.com/kevin07696/amazonpay-service/internal/domain"
)

// InvoiceSource reads the billing documents recurring charges settle against.
// Invoicing itself is owned elsewhere; the orchestrator only needs unpaid
// invoices routed to this payment method and a way to mark them settled.
type InvoiceSource interface {
	// GetByID retrieves a single invoice
	GetByID(ctx context.Context, db DBTX, id string) (*domain.Invoice, error)

	// ListUnpaid returns unpaid invoices whose payment method is this
	// gateway, oldest first
	ListUnpaid(ctx context.Context, db DBTX, limit int32) ([]*domain.Invoice, error)

	// MarkPaid settles an invoice after its ledger transaction was booked
	MarkPaid(ctx context.Context, tx DBTX, id string) error
}
