package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenRefund is a locally persisted record of a refund that the provider
// accepted as Pending. The row exists exactly while the refund is pending:
// it is created when the provider answers Pending and deleted once either
// the webhook or the polling reconciler observes a terminal state.
type OpenRefund struct {
	ID int64

	// RefundID is the provider's refund object identifier
	RefundID string

	// TransactionID is the local ledger transaction being refunded
	TransactionID string

	OrderID  string
	Amount   decimal.Decimal
	Currency string
	Reason   string

	CreatedAt time.Time
}

// RefundOutcome is the terminal result observed for a pending refund
type RefundOutcome struct {
	RefundID string
	State    AuthorizationState
	Reason   ReasonCode
	Amount   decimal.Decimal
	Currency string

	// ProviderTimestamp is the settlement time reported by the provider
	ProviderTimestamp time.Time
}

// Terminal reports whether the outcome ends the refund's pending phase
func (o *RefundOutcome) Terminal() bool {
	return o.State == StateCompleted || o.State == StateDeclined
}
