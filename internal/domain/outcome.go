package domain

import "fmt"

// AuthorizationState is the closed set of states the provider reports for an
// authorization or capture object. Unknown values fail parsing loudly instead
// of falling into a default branch.
type AuthorizationState int

const (
	StateUnknown AuthorizationState = iota
	StateOpen
	StatePending
	StateDeclined
	StateCompleted
	StateClosed
)

var authorizationStateNames = map[AuthorizationState]string{
	StateOpen:      "Open",
	StatePending:   "Pending",
	StateDeclined:  "Declined",
	StateCompleted: "Completed",
	StateClosed:    "Closed",
}

func (s AuthorizationState) String() string {
	if name, ok := authorizationStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// IsTerminal reports whether no further provider-side transition is expected
func (s AuthorizationState) IsTerminal() bool {
	return s == StateDeclined || s == StateCompleted || s == StateClosed
}

// ParseAuthorizationState maps a provider status string to the closed enum.
// Unrecognized values return ErrUnknownProviderStatus so new provider codes
// surface as errors rather than being silently ignored.
func ParseAuthorizationState(s string) (AuthorizationState, error) {
	switch s {
	case "Open":
		return StateOpen, nil
	case "Pending":
		return StatePending, nil
	case "Declined":
		return StateDeclined, nil
	case "Completed":
		return StateCompleted, nil
	case "Closed":
		return StateClosed, nil
	default:
		return StateUnknown, fmt.Errorf("%w: %q", ErrUnknownProviderStatus, s)
	}
}

// ReasonCode is the closed set of reason codes the provider attaches to a
// Declined or Closed state.
type ReasonCode int

const (
	ReasonNone ReasonCode = iota
	ReasonInvalidPaymentMethod
	ReasonTransactionTimedOut
	ReasonAmazonRejected
	ReasonProcessingFailure
	ReasonMaxCapturesProcessed
	ReasonPaymentMethodNotAllowed
	ReasonAmazonClosed
	ReasonSellerClosed
)

var reasonCodeNames = map[ReasonCode]string{
	ReasonNone:                    "",
	ReasonInvalidPaymentMethod:    "InvalidPaymentMethod",
	ReasonTransactionTimedOut:     "TransactionTimedOut",
	ReasonAmazonRejected:          "AmazonRejected",
	ReasonProcessingFailure:       "ProcessingFailure",
	ReasonMaxCapturesProcessed:    "MaxCapturesProcessed",
	ReasonPaymentMethodNotAllowed: "PaymentMethodNotAllowed",
	ReasonAmazonClosed:            "AmazonClosed",
	ReasonSellerClosed:            "SellerClosed",
}

func (r ReasonCode) String() string {
	return reasonCodeNames[r]
}

// ParseReasonCode maps a provider reason code string to the closed enum.
// The empty string is valid and maps to ReasonNone.
func ParseReasonCode(s string) (ReasonCode, error) {
	switch s {
	case "":
		return ReasonNone, nil
	case "InvalidPaymentMethod":
		return ReasonInvalidPaymentMethod, nil
	case "TransactionTimedOut":
		return ReasonTransactionTimedOut, nil
	case "AmazonRejected":
		return ReasonAmazonRejected, nil
	case "ProcessingFailure":
		return ReasonProcessingFailure, nil
	case "MaxCapturesProcessed":
		return ReasonMaxCapturesProcessed, nil
	case "PaymentMethodNotAllowed":
		return ReasonPaymentMethodNotAllowed, nil
	case "AmazonClosed":
		return ReasonAmazonClosed, nil
	case "SellerClosed":
		return ReasonSellerClosed, nil
	default:
		return ReasonNone, fmt.Errorf("%w: reason code %q", ErrUnknownProviderStatus, s)
	}
}

// DomainError translates a provider decline reason into the typed error the
// caller should surface. Exhaustive over the closed enum.
func (r ReasonCode) DomainError() *DomainError {
	switch r {
	case ReasonInvalidPaymentMethod:
		return NewDomainError(ErrorCodeGatewayInvalidPaymentMethod, "payment method was declined by the gateway").
			WithDetail(DetailReasonCode, r.String()).
			WithDetail(DetailReRenderWallet, true)
	case ReasonTransactionTimedOut:
		return NewDomainError(ErrorCodeGatewayTimeout, "gateway reported transaction timed out").
			WithDetail(DetailReasonCode, r.String())
	case ReasonAmazonRejected:
		return NewDomainError(ErrorCodeGatewayRejected, "payment rejected by gateway").
			WithDetail(DetailReasonCode, r.String())
	case ReasonProcessingFailure:
		return NewDomainError(ErrorCodeGatewayProcessingFailure, "gateway processing failure").
			WithDetail(DetailReasonCode, r.String())
	case ReasonMaxCapturesProcessed:
		return NewDomainError(ErrorCodeGatewayMaxCaptures, "maximum captures already processed for this authorization").
			WithDetail(DetailReasonCode, r.String())
	case ReasonPaymentMethodNotAllowed:
		return NewDomainError(ErrorCodeGatewayInvalidPaymentMethod, "payment method is not allowed for this transaction").
			WithDetail(DetailReasonCode, r.String()).
			WithDetail(DetailReRenderWallet, true)
	case ReasonAmazonClosed, ReasonSellerClosed:
		return NewDomainError(ErrorCodeGatewayDeclined, "transaction object was closed by the gateway").
			WithDetail(DetailReasonCode, r.String())
	default:
		return NewDomainError(ErrorCodeGatewayError, "payment gateway error").
			WithDetail(DetailReasonCode, r.String())
	}
}

// ConstraintID is the closed set of constraint identifiers the provider can
// attach to an unconfirmed order reference or billing agreement.
type ConstraintID int

const (
	ConstraintUnknown ConstraintID = iota
	ConstraintBuyerConsentNotSet
	ConstraintPaymentPlanNotSet
	ConstraintShippingAddressNotSet
	ConstraintBillingAddressDeleted
	ConstraintInvalidPaymentPlan
	ConstraintPaymentMethodDeleted
	ConstraintPaymentMethodExpired
	ConstraintPaymentMethodNotAllowed
	ConstraintBuyerEqualsSeller
)

var constraintIDNames = map[ConstraintID]string{
	ConstraintBuyerConsentNotSet:      "BuyerConsentNotSet",
	ConstraintPaymentPlanNotSet:       "PaymentPlanNotSet",
	ConstraintShippingAddressNotSet:   "ShippingAddressNotSet",
	ConstraintBillingAddressDeleted:   "BillingAddressDeleted",
	ConstraintInvalidPaymentPlan:      "InvalidPaymentPlan",
	ConstraintPaymentMethodDeleted:    "PaymentMethodDeleted",
	ConstraintPaymentMethodExpired:    "PaymentMethodExpired",
	ConstraintPaymentMethodNotAllowed: "PaymentMethodNotAllowed",
	ConstraintBuyerEqualsSeller:       "BuyerEqualsSeller",
}

func (c ConstraintID) String() string {
	if name, ok := constraintIDNames[c]; ok {
		return name
	}
	return "Unknown"
}

// ParseConstraintID maps a provider constraint identifier to the closed enum.
func ParseConstraintID(s string) (ConstraintID, error) {
	for id, name := range constraintIDNames {
		if name == s {
			return id, nil
		}
	}
	return ConstraintUnknown, fmt.Errorf("%w: constraint %q", ErrUnknownProviderStatus, s)
}

// DomainError translates a confirmation constraint into the typed error the
// caller should surface. Constraints are recoverable only by the buyer fixing
// their provider-side account state, so every one re-renders the wallet.
func (c ConstraintID) DomainError() *DomainError {
	var msg string
	switch c {
	case ConstraintBuyerConsentNotSet:
		msg = "buyer consent for recurring charges has not been given"
	case ConstraintPaymentPlanNotSet, ConstraintInvalidPaymentPlan:
		msg = "no valid payment plan is set for this order"
	case ConstraintShippingAddressNotSet:
		msg = "no shipping address has been selected"
	case ConstraintBillingAddressDeleted:
		msg = "the selected billing address was deleted"
	case ConstraintPaymentMethodDeleted:
		msg = "the selected payment method was deleted"
	case ConstraintPaymentMethodExpired:
		msg = "the selected payment method has expired"
	case ConstraintPaymentMethodNotAllowed:
		msg = "the selected payment method is not allowed"
	default:
		msg = "order confirmation was rejected by the gateway"
	}
	return NewDomainError(ErrorCodeGatewayConstraint, msg).
		WithDetail(DetailConstraintID, c.String()).
		WithDetail(DetailReRenderWallet, true)
}
