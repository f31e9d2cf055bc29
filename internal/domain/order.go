package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPaymentState is the strongly-typed lifecycle record for one order's
// payment flow. It replaces the loosely-typed key/value bag the gateway flags
// historically lived in: every flag has a named field and is validated on load.
type OrderPaymentState struct {
	OrderID            string
	InvoiceID          string
	OrderReferenceID   string
	AuthorizationID    string
	CaptureID          string
	BillingAgreementID string

	Amount   decimal.Decimal
	Currency string

	ReferenceSet bool
	Confirmed    bool
	Authorized   bool
	Captured     bool

	// ReconfirmRequired is set after an InvalidPaymentMethod decline: the
	// buyer must pick another payment method and the order reference must be
	// confirmed again before the next authorization.
	ReconfirmRequired bool

	// Attempt counters double as idempotency reference suffixes. They are
	// persisted before the gateway call they number, so a crash between send
	// and response can still be reconciled against the provider.
	AuthorizationAttempts int
	CaptureAttempts       int
	RefundAttempts        int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NextAuthorizationReference returns the idempotency reference id for the
// next authorization attempt. The caller must persist the incremented
// AuthorizationAttempts before issuing the gateway call.
func (s *OrderPaymentState) NextAuthorizationReference() string {
	return AuthorizationReferenceID(s.OrderID, s.AuthorizationAttempts+1)
}

// NextCaptureReference returns the idempotency reference id for the next
// capture attempt.
func (s *OrderPaymentState) NextCaptureReference() string {
	return CaptureReferenceID(s.OrderID, s.CaptureAttempts+1)
}

// CanAuthorize reports whether an authorization call is the legal next step
func (s *OrderPaymentState) CanAuthorize() bool {
	return s.Confirmed && !s.Authorized
}

// CanCapture reports whether a capture call is the legal next step
func (s *OrderPaymentState) CanCapture() bool {
	return s.Authorized && !s.Captured
}

// Validate checks the loaded record for internal consistency
func (s *OrderPaymentState) Validate() error {
	if s.OrderID == "" {
		return ErrValidationMissingField.WithDetail("field", "order_id")
	}
	if s.Confirmed && !s.ReferenceSet {
		return ErrTxnInvalidState.WithDetail("field", "confirmed")
	}
	if s.Authorized && s.AuthorizationID == "" {
		return ErrTxnInvalidState.WithDetail("field", "authorization_id")
	}
	if s.Captured && s.CaptureID == "" {
		return ErrTxnInvalidState.WithDetail("field", "capture_id")
	}
	return nil
}
