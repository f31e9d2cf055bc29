package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Order Errors (ORDER_*)
	ErrorCodeOrderNotFound  ErrorCode = "ORDER_NOT_FOUND"
	ErrorCodeOrderCancelled ErrorCode = "ORDER_CANCELLED"

	// Transaction Errors (TXN_*)
	ErrorCodeTxnNotFound      ErrorCode = "TXN_NOT_FOUND"
	ErrorCodeTxnNotAuthorized ErrorCode = "TXN_NOT_AUTHORIZED"
	ErrorCodeTxnNotCaptured   ErrorCode = "TXN_NOT_CAPTURED"
	ErrorCodeTxnInvalidState  ErrorCode = "TXN_INVALID_STATE"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayError                ErrorCode = "GATEWAY_ERROR"
	ErrorCodeGatewayDeclined             ErrorCode = "GATEWAY_DECLINED"
	ErrorCodeGatewayRejected             ErrorCode = "GATEWAY_REJECTED"
	ErrorCodeGatewayTimeout              ErrorCode = "GATEWAY_TIMEOUT"
	ErrorCodeGatewayProcessingFailure    ErrorCode = "GATEWAY_PROCESSING_FAILURE"
	ErrorCodeGatewayMaxCaptures          ErrorCode = "GATEWAY_MAX_CAPTURES"
	ErrorCodeGatewayInvalidPaymentMethod ErrorCode = "GATEWAY_INVALID_PAYMENT_METHOD"
	ErrorCodeGatewayConstraint           ErrorCode = "GATEWAY_CONSTRAINT"

	// Billing Agreement Errors (AGREEMENT_*)
	ErrorCodeAgreementNotFound         ErrorCode = "AGREEMENT_NOT_FOUND"
	ErrorCodeAgreementValidationFailed ErrorCode = "AGREEMENT_VALIDATION_FAILED"

	// Refund Errors (REFUND_*)
	ErrorCodeRefundFailed ErrorCode = "REFUND_FAILED"

	// Webhook Errors (IPN_*)
	ErrorCodeIPNInvalidSignature ErrorCode = "IPN_INVALID_SIGNATURE"
	ErrorCodeIPNMalformedPayload ErrorCode = "IPN_MALFORMED_PAYLOAD"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// Detail keys carried by DomainError.Details as hints for the caller's UI.
// They affect presentation and retry behavior, never the state machine itself.
const (
	DetailReRenderWallet = "re_render_wallet"
	DetailOrderCancelled = "order_cancelled"
	DetailReasonCode     = "reason_code"
	DetailConstraintID   = "constraint_id"
	DetailGatewayCode    = "gateway_code"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail returns a copy of the error with the detail field added. The
// receiver is left untouched so details can be attached to the shared error
// instances below without polluting them.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	clone := &DomainError{
		Err:     e.Err,
		Code:    e.Code,
		Message: e.Message,
		Details: make(map[string]interface{}, len(e.Details)+1),
	}
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return clone
}

// Detail returns a detail value and whether it was set
func (e *DomainError) Detail(key string) (interface{}, bool) {
	if e.Details == nil {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// AsDomainError extracts a *DomainError from an error chain, or nil
func AsDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeOrderNotFound ||
		code == ErrorCodeTxnNotFound ||
		code == ErrorCodeAgreementNotFound
}

// IsGatewayError checks if an error originated from a provider-reported outcome
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayError ||
		code == ErrorCodeGatewayDeclined ||
		code == ErrorCodeGatewayRejected ||
		code == ErrorCodeGatewayTimeout ||
		code == ErrorCodeGatewayProcessingFailure ||
		code == ErrorCodeGatewayMaxCaptures ||
		code == ErrorCodeGatewayInvalidPaymentMethod ||
		code == ErrorCodeGatewayConstraint
}

// IsRecoverableDecline reports whether the buyer can recover by choosing
// another payment method (as opposed to a terminal processing failure)
func IsRecoverableDecline(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayInvalidPaymentMethod ||
		code == ErrorCodeGatewayDeclined ||
		code == ErrorCodeGatewayConstraint
}

// Structured error instances
var (
	ErrOrderNotFound  = NewDomainError(ErrorCodeOrderNotFound, "order not found")
	ErrOrderCancelled = NewDomainError(ErrorCodeOrderCancelled, "order was cancelled")

	ErrTxnNotFound      = NewDomainError(ErrorCodeTxnNotFound, "transaction not found")
	ErrTxnNotAuthorized = NewDomainError(ErrorCodeTxnNotAuthorized, "payment has not been authorized")
	ErrTxnNotCaptured   = NewDomainError(ErrorCodeTxnNotCaptured, "payment has not been captured")
	ErrTxnInvalidState  = NewDomainError(ErrorCodeTxnInvalidState, "transaction is in invalid state for this operation")

	ErrGatewayError             = NewDomainError(ErrorCodeGatewayError, "payment gateway error")
	ErrGatewayDeclined          = NewDomainError(ErrorCodeGatewayDeclined, "payment declined by gateway")
	ErrGatewayRejected          = NewDomainError(ErrorCodeGatewayRejected, "payment rejected by gateway")
	ErrGatewayTimedOut          = NewDomainError(ErrorCodeGatewayTimeout, "gateway reported transaction timed out")
	ErrGatewayProcessingFailure = NewDomainError(ErrorCodeGatewayProcessingFailure, "gateway processing failure")
	ErrGatewayMaxCaptures       = NewDomainError(ErrorCodeGatewayMaxCaptures, "maximum captures already processed for this authorization")

	ErrAgreementNotFound         = NewDomainError(ErrorCodeAgreementNotFound, "billing agreement not found or inactive")
	ErrAgreementValidationFailed = NewDomainError(ErrorCodeAgreementValidationFailed, "billing agreement validation failed")

	ErrRefundFailed = NewDomainError(ErrorCodeRefundFailed, "refund was not accepted by the gateway")

	ErrIPNInvalidSignature = NewDomainError(ErrorCodeIPNInvalidSignature, "notification signature verification failed")
	ErrIPNMalformedPayload = NewDomainError(ErrorCodeIPNMalformedPayload, "notification payload is malformed")

	ErrValidationFailed       = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationMissingField = NewDomainError(ErrorCodeValidationMissingField, "required field missing")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)

// Common sentinel errors used below the DomainError boundary
var (
	ErrNoRows                = errors.New("no rows found")
	ErrAlreadyFinalized      = errors.New("transaction already finalized")
	ErrAgreementSuspended    = errors.New("billing agreement is suspended")
	ErrAgreementNotOpen      = errors.New("billing agreement is not open at the provider")
	ErrRefundNotPending      = errors.New("refund is not in a pending state")
	ErrInvalidReferenceID    = errors.New("invalid reference id")
	ErrInvalidTransactionID  = errors.New("invalid transaction id format")
	ErrUnknownProviderStatus = errors.New("unknown provider status value")
)
