package ports

import (
	"context"
	"time"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/shopspring/decimal"
)

// SetOrderDetailsRequest carries the provider-side order reference attributes
// set before confirmation
type SetOrderDetailsRequest struct {
	OrderReferenceID  string
	Amount            decimal.Decimal
	Currency          string
	SellerOrderID     string
	SellerNote        string
	StoreName         string
	CustomInformation string
}

// OrderReferenceDetails is the normalized provider view of an order reference.
// Order references share the agreement state set (Draft/Open/Suspended/
// Canceled/Closed).
type OrderReferenceDetails struct {
	OrderReferenceID string
	State            domain.AgreementStatus
	ReasonCode       domain.ReasonCode
	Constraints      []domain.ConstraintID
	Amount           decimal.Decimal
	Currency         string
}

// AuthorizeRequest represents a request to authorize funds on a confirmed
// order reference
type AuthorizeRequest struct {
	OrderReferenceID         string
	AuthorizationReferenceID string
	Amount                   decimal.Decimal
	Currency                 string
	SellerAuthorizationNote  string
	CaptureNow               bool

	// TransactionTimeout is the provider-side decision window in minutes.
	// Zero requests a synchronous decision.
	TransactionTimeout int
}

// AuthorizationDetails is the normalized provider view of an authorization
type AuthorizationDetails struct {
	AuthorizationID          string
	AuthorizationReferenceID string
	State                    domain.AuthorizationState
	ReasonCode               domain.ReasonCode
	Amount                   decimal.Decimal
	Currency                 string
	CapturedAmount           decimal.Decimal
	CapturedCurrency         string
	CaptureIDs               []string
	Timestamp                time.Time
}

// CaptureRequest represents a request to capture authorized funds
type CaptureRequest struct {
	AuthorizationID    string
	CaptureReferenceID string
	Amount             decimal.Decimal
	Currency           string
	SellerCaptureNote  string
}

// CaptureDetails is the normalized provider view of a capture
type CaptureDetails struct {
	CaptureID          string
	CaptureReferenceID string
	State              domain.AuthorizationState
	ReasonCode         domain.ReasonCode
	Amount             decimal.Decimal
	Currency           string
	Timestamp          time.Time
}

// RefundRequest represents a request to refund a captured amount
type RefundRequest struct {
	CaptureID         string
	RefundReferenceID string
	Amount            decimal.Decimal
	Currency          string
	SellerRefundNote  string
}

// RefundDetails is the normalized provider view of a refund
type RefundDetails struct {
	RefundID          string
	RefundReferenceID string
	State             domain.AuthorizationState
	ReasonCode        domain.ReasonCode
	Amount            decimal.Decimal
	Currency          string
	Timestamp         time.Time
}

// BillingAgreementDetails is the normalized provider view of a billing
// agreement
type BillingAgreementDetails struct {
	AgreementID string
	Status      domain.AgreementStatus
	ReasonCode  domain.ReasonCode
	Constraints []domain.ConstraintID
}

// AgreementValidation is the result of a provider-side agreement validation
type AgreementValidation struct {
	Success       bool
	FailureReason string
}

// AuthorizeOnAgreementRequest represents an authorization drawn against a
// confirmed billing agreement instead of an order reference
type AuthorizeOnAgreementRequest struct {
	AgreementID              string
	AuthorizationReferenceID string
	Amount                   decimal.Decimal
	Currency                 string
	SellerAuthorizationNote  string
	SellerOrderID            string
	StoreName                string
	CaptureNow               bool
	TransactionTimeout       int
}

// AmazonGateway translates internal calls into provider API requests and
// normalizes the response envelope. It performs no retries: safe retries are
// the caller's responsibility via idempotency reference ids.
type AmazonGateway interface {
	// SetOrderReferenceDetails sets amount, currency and seller attributes on
	// an unconfirmed order reference
	SetOrderReferenceDetails(ctx context.Context, req *SetOrderDetailsRequest) (*OrderReferenceDetails, error)

	// ConfirmOrderReference confirms the order reference, moving it to Open.
	// The success/failure URLs receive the buyer after strong customer
	// authentication.
	ConfirmOrderReference(ctx context.Context, orderReferenceID, successURL, failureURL string) error

	// GetOrderReferenceDetails fetches the current provider-side state
	GetOrderReferenceDetails(ctx context.Context, orderReferenceID string) (*OrderReferenceDetails, error)

	// CancelOrderReference cancels an unconfirmed or open order reference
	CancelOrderReference(ctx context.Context, orderReferenceID, reason string) error

	// CloseOrderReference closes a fully captured order reference
	CloseOrderReference(ctx context.Context, orderReferenceID, reason string) error

	// Authorize reserves funds on a confirmed order reference
	Authorize(ctx context.Context, req *AuthorizeRequest) (*AuthorizationDetails, error)

	// GetAuthorizationDetails fetches the current state of an authorization
	GetAuthorizationDetails(ctx context.Context, authorizationID string) (*AuthorizationDetails, error)

	// Capture moves previously authorized funds
	Capture(ctx context.Context, req *CaptureRequest) (*CaptureDetails, error)

	// GetCaptureDetails fetches the current state of a capture
	GetCaptureDetails(ctx context.Context, captureID string) (*CaptureDetails, error)

	// Refund returns captured funds to the buyer
	Refund(ctx context.Context, req *RefundRequest) (*RefundDetails, error)

	// GetRefundDetails fetches the current state of a refund
	GetRefundDetails(ctx context.Context, refundID string) (*RefundDetails, error)

	// SetBillingAgreementDetails sets seller attributes on an unconfirmed
	// billing agreement
	SetBillingAgreementDetails(ctx context.Context, agreementID, sellerNote string) error

	// ConfirmBillingAgreement confirms the agreement, moving it to Open
	ConfirmBillingAgreement(ctx context.Context, agreementID, successURL, failureURL string) error

	// ValidateBillingAgreement asks the provider to validate the agreement's
	// payment method
	ValidateBillingAgreement(ctx context.Context, agreementID string) (*AgreementValidation, error)

	// GetBillingAgreementDetails fetches the current provider-side state
	GetBillingAgreementDetails(ctx context.Context, agreementID string) (*BillingAgreementDetails, error)

	// AuthorizeOnBillingAgreement authorizes (and optionally captures) a
	// recurring charge against an open agreement
	AuthorizeOnBillingAgreement(ctx context.Context, req *AuthorizeOnAgreementRequest) (*AuthorizationDetails, error)

	// CloseBillingAgreement closes the agreement at the provider. The reason
	// is truncated to the provider's 1024 character limit.
	CloseBillingAgreement(ctx context.Context, agreementID, reason string) error
}
