package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/amazonpay-service/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money movement direction in the ledger
type TransactionType string

const (
	TransactionTypeCapture TransactionType = "capture"
	TransactionTypeRefund  TransactionType = "refund"
)

// TransactionStatus is the local lifecycle of a ledger entry.
// pending -> {completed, error} and both outcomes are terminal; the
// conditional-update finalize path relies on that.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusError     TransactionStatus = "error"
)

// IsTerminal reports whether the status permits no further transition
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusError
}

// Transaction is a local ledger entry booked for a confirmed capture or a
// submitted refund. GatewayTransactionID links it back to the provider
// authorization/capture/refund object for audit.
type Transaction struct {
	ID        string
	OrderID   string
	InvoiceID string

	Type   TransactionType
	Status TransactionStatus

	Amount   decimal.Decimal
	Currency string

	// GatewayTransactionID is the provider object id this entry settles
	// against (capture id for captures, refund id for refunds)
	GatewayTransactionID string

	// GatewayReferenceID is the seller reference id submitted with the call
	GatewayReferenceID string

	Message string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCaptureTransaction books a ledger entry for a confirmed capture
func NewCaptureTransaction(orderID, invoiceID, captureID, referenceID string, amount decimal.Decimal, currency string) *Transaction {
	now := timeutil.Now()
	return &Transaction{
		ID:                   uuid.New().String(),
		OrderID:              orderID,
		InvoiceID:            invoiceID,
		Type:                 TransactionTypeCapture,
		Status:               TransactionStatusCompleted,
		Amount:               amount,
		Currency:             currency,
		GatewayTransactionID: captureID,
		GatewayReferenceID:   referenceID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// NewPendingRefundTransaction books a ledger entry for a refund that has been
// submitted but not yet settled by the provider
func NewPendingRefundTransaction(orderID, invoiceID, referenceID string, amount decimal.Decimal, currency, reason string) *Transaction {
	now := timeutil.Now()
	return &Transaction{
		ID:                 uuid.New().String(),
		OrderID:            orderID,
		InvoiceID:          invoiceID,
		Type:               TransactionTypeRefund,
		Status:             TransactionStatusPending,
		Amount:             amount,
		Currency:           currency,
		GatewayReferenceID: referenceID,
		Message:            reason,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
