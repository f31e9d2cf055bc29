package ports

import (
	"context"

	"github.com/kevin07696/amazonpay-service/internal/domain"
)

// SubscriptionService defines the business logic for recurring charges drawn
// against provider billing agreements
type SubscriptionService interface {
	// ConfirmAgreement confirms and validates a new billing agreement and
	// persists it locally on success
	ConfirmAgreement(ctx context.Context, req ServiceConfirmAgreementRequest) error

	// ValidateAgreement asks the provider to validate the agreement's
	// payment method
	ValidateAgreement(ctx context.Context, agreementID string) error

	// BillAgreementBalance charges the outstanding amount of one invoice
	// against its subscription's billing agreement
	BillAgreementBalance(ctx context.Context, invoiceID string) error

	// ProcessUnpaidInvoices bills every unpaid invoice routed to this
	// gateway, isolating per-invoice failures
	ProcessUnpaidInvoices(ctx context.Context) (*BillingRunResult, error)

	// CancelAgreement closes the agreement at the provider and deactivates
	// it locally. Provider-side failures do not block local deactivation.
	CancelAgreement(ctx context.Context, agreementID, reason string) error

	// SuspendAgreement pauses automated billing without touching the
	// provider-side agreement
	SuspendAgreement(ctx context.Context, agreementID string) error

	// ResumeAgreement re-enables automated billing
	ResumeAgreement(ctx context.Context, agreementID string) error

	// IsSuspended reports the local suspension flag
	IsSuspended(ctx context.Context, agreementID string) (bool, error)

	// GetAgreement retrieves a locally persisted agreement
	GetAgreement(ctx context.Context, agreementID string) (*domain.BillingAgreement, error)

	// ListAgreements lists agreements for the admin surface
	ListAgreements(ctx context.Context, filter ListAgreementsFilter) ([]*domain.BillingAgreement, error)
}

// ServiceConfirmAgreementRequest carries the data needed to confirm a freshly
// created provider billing agreement
type ServiceConfirmAgreementRequest struct {
	AgreementID     string
	GlobalProcessID string

	// Customer is a JSON snapshot of the buyer, stored for audit
	Customer []byte

	// SuccessURL and FailureURL receive the buyer after the provider's
	// strong customer authentication step
	SuccessURL string
	FailureURL string
}

// BillingRunResult summarizes one pass over the unpaid invoices
type BillingRunResult struct {
	Processed int
	Succeeded int
	Failed    int
}
