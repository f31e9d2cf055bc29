package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderPaymentState_Transitions(t *testing.T) {
	state := &OrderPaymentState{OrderID: "1042"}

	assert.False(t, state.CanAuthorize(), "unconfirmed order cannot authorize")
	assert.False(t, state.CanCapture())

	state.ReferenceSet = true
	state.Confirmed = true
	assert.True(t, state.CanAuthorize())
	assert.False(t, state.CanCapture())

	state.Authorized = true
	state.AuthorizationID = "P01-1234567-1234567-A000001"
	assert.False(t, state.CanAuthorize(), "authorized order must not authorize again")
	assert.True(t, state.CanCapture())

	state.Captured = true
	state.CaptureID = "P01-1234567-1234567-C000001"
	assert.False(t, state.CanCapture(), "captured order must not capture again")
}

func TestOrderPaymentState_NextReferences(t *testing.T) {
	state := &OrderPaymentState{OrderID: "1042", AuthorizationAttempts: 2, CaptureAttempts: 0}

	assert.Equal(t, "a_1042_3", state.NextAuthorizationReference())
	assert.Equal(t, "c_1042_1", state.NextCaptureReference())
}

func TestOrderPaymentState_Validate(t *testing.T) {
	t.Run("valid state", func(t *testing.T) {
		state := &OrderPaymentState{
			OrderID:          "1042",
			OrderReferenceID: "P01-1234567-1234567",
			ReferenceSet:     true,
			Confirmed:        true,
		}
		require.NoError(t, state.Validate())
	})

	t.Run("missing order id", func(t *testing.T) {
		err := (&OrderPaymentState{}).Validate()
		assert.True(t, IsDomainError(err, ErrorCodeValidationMissingField))
	})

	t.Run("confirmed without reference", func(t *testing.T) {
		err := (&OrderPaymentState{OrderID: "1042", Confirmed: true}).Validate()
		assert.True(t, IsDomainError(err, ErrorCodeTxnInvalidState))
	})

	t.Run("authorized without authorization id", func(t *testing.T) {
		err := (&OrderPaymentState{OrderID: "1042", ReferenceSet: true, Confirmed: true, Authorized: true}).Validate()
		assert.True(t, IsDomainError(err, ErrorCodeTxnInvalidState))
	})
}

func TestBillingAgreement_Billable(t *testing.T) {
	agreement := &BillingAgreement{Active: true}
	assert.True(t, agreement.Billable())

	agreement.Suspended = true
	assert.False(t, agreement.Billable(), "suspension pauses billing")

	agreement.Suspended = false
	agreement.Active = false
	assert.False(t, agreement.Billable())
}

func TestAgreementTransaction_AttemptsExhausted(t *testing.T) {
	txn := &AgreementTransaction{}
	maxAttempts := 3

	for i := 1; i <= maxAttempts; i++ {
		txn.CaptureAttempts = i
		if i < maxAttempts {
			assert.False(t, txn.AttemptsExhausted(maxAttempts), "attempt %d should leave budget", i)
		} else {
			assert.True(t, txn.AttemptsExhausted(maxAttempts), "attempt %d should exhaust budget", i)
		}
	}
}
