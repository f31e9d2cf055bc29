package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestDomainErrors_GatewayErrors tests the gateway-reported error instances
func TestDomainErrors_GatewayErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "gateway_declined",
			err:      ErrGatewayDeclined,
			contains: "payment declined by gateway",
		},
		{
			name:     "gateway_rejected",
			err:      ErrGatewayRejected,
			contains: "payment rejected by gateway",
		},
		{
			name:     "gateway_timed_out",
			err:      ErrGatewayTimedOut,
			contains: "transaction timed out",
		},
		{
			name:     "gateway_processing_failure",
			err:      ErrGatewayProcessingFailure,
			contains: "processing failure",
		},
		{
			name:     "gateway_max_captures",
			err:      ErrGatewayMaxCaptures,
			contains: "maximum captures",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("expected error to be defined, got nil")
			}
			if !strings.Contains(strings.ToLower(tt.err.Error()), tt.contains) {
				t.Errorf("error message %q does not contain %q", tt.err.Error(), tt.contains)
			}
			if !IsGatewayError(tt.err) {
				t.Errorf("expected %q to be classified as a gateway error", tt.err.Error())
			}
		})
	}
}

func TestDomainError_ErrorFormat(t *testing.T) {
	plain := NewDomainError(ErrorCodeTxnNotCaptured, "payment has not been captured")
	if got := plain.Error(); got != "TXN_NOT_CAPTURED: payment has not been captured" {
		t.Errorf("unexpected error string: %q", got)
	}

	wrapped := WrapError(ErrorCodeDatabaseError, "load order state", errors.New("connection refused"))
	if got := wrapped.Error(); !strings.Contains(got, "INTERNAL_DATABASE_ERROR") || !strings.Contains(got, "connection refused") {
		t.Errorf("unexpected wrapped error string: %q", got)
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("row not found")
	err := WrapError(ErrorCodeOrderNotFound, "load order", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}

	outer := fmt.Errorf("handler: %w", err)
	if !IsDomainError(outer, ErrorCodeOrderNotFound) {
		t.Error("expected IsDomainError to match through wrapping")
	}
	if GetErrorCode(outer) != ErrorCodeOrderNotFound {
		t.Errorf("unexpected code: %s", GetErrorCode(outer))
	}
}

func TestDomainError_WithDetailLeavesReceiverUntouched(t *testing.T) {
	derived := ErrOrderNotFound.WithDetail("order_id", "1042")

	if _, ok := derived.Detail("order_id"); !ok {
		t.Error("derived error is missing the detail")
	}
	if _, ok := ErrOrderNotFound.Detail("order_id"); ok {
		t.Error("shared error instance was polluted")
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorCodeGatewayConstraint, "confirmation rejected").
		WithDetail(DetailConstraintID, "PaymentMethodExpired").
		WithDetail(DetailReRenderWallet, true)

	v, ok := err.Detail(DetailConstraintID)
	if !ok || v != "PaymentMethodExpired" {
		t.Errorf("unexpected constraint detail: %v (ok=%v)", v, ok)
	}
	if _, ok := err.Detail("missing"); ok {
		t.Error("expected missing detail to report ok=false")
	}
}

func TestIsNotFoundError(t *testing.T) {
	if !IsNotFoundError(ErrOrderNotFound) {
		t.Error("ErrOrderNotFound should be a not-found error")
	}
	if !IsNotFoundError(ErrAgreementNotFound) {
		t.Error("ErrAgreementNotFound should be a not-found error")
	}
	if IsNotFoundError(ErrGatewayDeclined) {
		t.Error("ErrGatewayDeclined should not be a not-found error")
	}
	if IsNotFoundError(errors.New("plain")) {
		t.Error("plain errors should not be classified")
	}
}

func TestAsDomainError(t *testing.T) {
	if AsDomainError(errors.New("plain")) != nil {
		t.Error("plain error should not convert")
	}

	inner := NewDomainError(ErrorCodeAgreementValidationFailed, "validation failed")
	got := AsDomainError(fmt.Errorf("billing: %w", inner))
	if got == nil || got.Code != ErrorCodeAgreementValidationFailed {
		t.Errorf("unexpected extraction result: %+v", got)
	}
}
