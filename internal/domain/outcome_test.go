package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthorizationState(t *testing.T) {
	tests := []struct {
		input    string
		expected AuthorizationState
		terminal bool
	}{
		{input: "Open", expected: StateOpen},
		{input: "Pending", expected: StatePending},
		{input: "Declined", expected: StateDeclined, terminal: true},
		{input: "Completed", expected: StateCompleted, terminal: true},
		{input: "Closed", expected: StateClosed, terminal: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			state, err := ParseAuthorizationState(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, state)
			assert.Equal(t, tt.terminal, state.IsTerminal())
			assert.Equal(t, tt.input, state.String())
		})
	}

	t.Run("unknown state fails loudly", func(t *testing.T) {
		_, err := ParseAuthorizationState("Suspended")
		assert.ErrorIs(t, err, ErrUnknownProviderStatus)

		_, err = ParseAuthorizationState("")
		assert.ErrorIs(t, err, ErrUnknownProviderStatus)
	})
}

func TestParseReasonCode(t *testing.T) {
	for _, name := range []string{
		"InvalidPaymentMethod", "TransactionTimedOut", "AmazonRejected",
		"ProcessingFailure", "MaxCapturesProcessed", "PaymentMethodNotAllowed",
		"AmazonClosed", "SellerClosed",
	} {
		code, err := ParseReasonCode(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, code.String())
	}

	code, err := ParseReasonCode("")
	require.NoError(t, err)
	assert.Equal(t, ReasonNone, code)

	_, err = ParseReasonCode("SomethingNew")
	assert.ErrorIs(t, err, ErrUnknownProviderStatus)
}

func TestReasonCodeDomainError(t *testing.T) {
	tests := []struct {
		reason         ReasonCode
		expectedCode   ErrorCode
		reRenderWallet bool
	}{
		{reason: ReasonInvalidPaymentMethod, expectedCode: ErrorCodeGatewayInvalidPaymentMethod, reRenderWallet: true},
		{reason: ReasonPaymentMethodNotAllowed, expectedCode: ErrorCodeGatewayInvalidPaymentMethod, reRenderWallet: true},
		{reason: ReasonTransactionTimedOut, expectedCode: ErrorCodeGatewayTimeout},
		{reason: ReasonAmazonRejected, expectedCode: ErrorCodeGatewayRejected},
		{reason: ReasonProcessingFailure, expectedCode: ErrorCodeGatewayProcessingFailure},
		{reason: ReasonMaxCapturesProcessed, expectedCode: ErrorCodeGatewayMaxCaptures},
		{reason: ReasonAmazonClosed, expectedCode: ErrorCodeGatewayDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			domainErr := tt.reason.DomainError()
			assert.Equal(t, tt.expectedCode, domainErr.Code)
			assert.Equal(t, tt.reason.String(), domainErr.Details[DetailReasonCode])

			_, hasHint := domainErr.Detail(DetailReRenderWallet)
			assert.Equal(t, tt.reRenderWallet, hasHint)
		})
	}
}

func TestParseConstraintID(t *testing.T) {
	for _, name := range []string{
		"BuyerConsentNotSet", "PaymentPlanNotSet", "ShippingAddressNotSet",
		"BillingAddressDeleted", "InvalidPaymentPlan", "PaymentMethodDeleted",
		"PaymentMethodExpired", "PaymentMethodNotAllowed", "BuyerEqualsSeller",
	} {
		id, err := ParseConstraintID(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, id.String())
	}

	_, err := ParseConstraintID("NewConstraint")
	assert.ErrorIs(t, err, ErrUnknownProviderStatus)
}

func TestConstraintDomainErrorAlwaysReRendersWallet(t *testing.T) {
	for id := ConstraintBuyerConsentNotSet; id <= ConstraintBuyerEqualsSeller; id++ {
		domainErr := id.DomainError()
		assert.Equal(t, ErrorCodeGatewayConstraint, domainErr.Code, id.String())
		assert.Equal(t, true, domainErr.Details[DetailReRenderWallet], id.String())
		assert.Equal(t, id.String(), domainErr.Details[DetailConstraintID])
	}
}

func TestIsRecoverableDecline(t *testing.T) {
	assert.True(t, IsRecoverableDecline(ReasonInvalidPaymentMethod.DomainError()))
	assert.True(t, IsRecoverableDecline(ConstraintPaymentMethodExpired.DomainError()))
	assert.False(t, IsRecoverableDecline(ReasonProcessingFailure.DomainError()))
	assert.False(t, IsRecoverableDecline(ErrInternalError))
}
