package ports

import (
	"context"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/shopspring/decimal"
)

// PaymentService orchestrates the one-off payment lifecycle of an order:
// confirm, authorize, capture, refund. All operations are idempotent at the
// order level; repeating a completed step is a logged no-op.
type PaymentService interface {
	// ConfirmOrder sets the order attributes on the provider-side order
	// reference and confirms it. Re-running after an InvalidPaymentMethod
	// decline re-confirms the reference with the buyer's new payment method.
	ConfirmOrder(ctx context.Context, req ServiceConfirmOrderRequest) error

	// AuthorizePayment reserves the full order amount on the confirmed order
	// reference
	AuthorizePayment(ctx context.Context, orderID string) error

	// CapturePayment captures the authorized amount, authorizing first when
	// the order is confirmed but not yet authorized
	CapturePayment(ctx context.Context, orderID string) error

	// RefundPayment submits a refund against a captured ledger transaction
	// and books a pending refund entry
	RefundPayment(ctx context.Context, req ServiceRefundRequest) (*domain.Transaction, error)

	// FinalizeRefund settles a pending refund entry from a terminal provider
	// outcome. Safe to call from the webhook and the poller concurrently.
	FinalizeRefund(ctx context.Context, details *RefundDetails) error

	// HandleCaptureNotification settles a capture from an asynchronous
	// provider notification
	HandleCaptureNotification(ctx context.Context, details *CaptureDetails) error

	// HandleOrderReferenceNotification syncs a provider-side order reference
	// state change into the local order record
	HandleOrderReferenceNotification(ctx context.Context, orderReferenceID string) error

	// GetOrderState returns the lifecycle record of an order
	GetOrderState(ctx context.Context, orderID string) (*domain.OrderPaymentState, error)

	// ListOrderHistory returns the audit trail of an order, oldest first
	ListOrderHistory(ctx context.Context, orderID string) ([]*domain.HistoryEntry, error)
}

// ServiceConfirmOrderRequest carries the shop-side order data needed to set up
// and confirm the provider order reference
type ServiceConfirmOrderRequest struct {
	OrderID          string
	InvoiceID        string
	OrderReferenceID string
	Amount           decimal.Decimal
	Currency         string

	// SuccessURL and FailureURL receive the buyer after the provider's
	// strong customer authentication step
	SuccessURL string
	FailureURL string
}

// ServiceRefundRequest represents a refund request against a local ledger
// transaction
type ServiceRefundRequest struct {
	TransactionID string
	Amount        *decimal.Decimal // Optional: partial refund
	Reason        string
}
