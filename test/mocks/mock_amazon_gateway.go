package mocks

import (
	"context"
	"sync"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
)

// MockAmazonGateway is a mock implementation of AmazonGateway for testing.
// Each method delegates to the corresponding func field when set and records
// the call; unset funcs return zero values.
type MockAmazonGateway struct {
	mu sync.Mutex

	SetOrderReferenceDetailsFunc    func(ctx context.Context, req *ports.SetOrderDetailsRequest) (*ports.OrderReferenceDetails, error)
	ConfirmOrderReferenceFunc       func(ctx context.Context, orderReferenceID, successURL, failureURL string) error
	GetOrderReferenceDetailsFunc    func(ctx context.Context, orderReferenceID string) (*ports.OrderReferenceDetails, error)
	CancelOrderReferenceFunc        func(ctx context.Context, orderReferenceID, reason string) error
	CloseOrderReferenceFunc         func(ctx context.Context, orderReferenceID, reason string) error
	AuthorizeFunc                   func(ctx context.Context, req *ports.AuthorizeRequest) (*ports.AuthorizationDetails, error)
	GetAuthorizationDetailsFunc     func(ctx context.Context, authorizationID string) (*ports.AuthorizationDetails, error)
	CaptureFunc                     func(ctx context.Context, req *ports.CaptureRequest) (*ports.CaptureDetails, error)
	GetCaptureDetailsFunc           func(ctx context.Context, captureID string) (*ports.CaptureDetails, error)
	RefundFunc                      func(ctx context.Context, req *ports.RefundRequest) (*ports.RefundDetails, error)
	GetRefundDetailsFunc            func(ctx context.Context, refundID string) (*ports.RefundDetails, error)
	SetBillingAgreementDetailsFunc  func(ctx context.Context, agreementID, sellerNote string) error
	ConfirmBillingAgreementFunc     func(ctx context.Context, agreementID, successURL, failureURL string) error
	ValidateBillingAgreementFunc    func(ctx context.Context, agreementID string) (*ports.AgreementValidation, error)
	GetBillingAgreementDetailsFunc  func(ctx context.Context, agreementID string) (*ports.BillingAgreementDetails, error)
	AuthorizeOnBillingAgreementFunc func(ctx context.Context, req *ports.AuthorizeOnAgreementRequest) (*ports.AuthorizationDetails, error)
	CloseBillingAgreementFunc       func(ctx context.Context, agreementID, reason string) error

	// Call tracking
	AuthorizeCalls            []*ports.AuthorizeRequest
	CaptureCalls              []*ports.CaptureRequest
	RefundCalls               []*ports.RefundRequest
	AuthorizeOnAgreementCalls []*ports.AuthorizeOnAgreementRequest
	SetOrderDetailsCalls      []*ports.SetOrderDetailsRequest
	ConfirmOrderCalls         []string
	CancelOrderCalls          []string
	CloseOrderCalls           []string
	CloseAgreementCalls       []string
	CloseAgreementReasons     []string
	GetRefundDetailsCalls     []string
	GetAgreementDetailsCalls  []string
	GetAuthorizationCalls     []string
}

// NewMockAmazonGateway creates a new mock gateway
func NewMockAmazonGateway() *MockAmazonGateway {
	return &MockAmazonGateway{}
}

func (m *MockAmazonGateway) SetOrderReferenceDetails(ctx context.Context, req *ports.SetOrderDetailsRequest) (*ports.OrderReferenceDetails, error) {
	m.mu.Lock()
	m.SetOrderDetailsCalls = append(m.SetOrderDetailsCalls, req)
	m.mu.Unlock()
	if m.SetOrderReferenceDetailsFunc != nil {
		return m.SetOrderReferenceDetailsFunc(ctx, req)
	}
	return &ports.OrderReferenceDetails{OrderReferenceID: req.OrderReferenceID}, nil
}

func (m *MockAmazonGateway) ConfirmOrderReference(ctx context.Context, orderReferenceID, successURL, failureURL string) error {
	m.mu.Lock()
	m.ConfirmOrderCalls = append(m.ConfirmOrderCalls, orderReferenceID)
	m.mu.Unlock()
	if m.ConfirmOrderReferenceFunc != nil {
		return m.ConfirmOrderReferenceFunc(ctx, orderReferenceID, successURL, failureURL)
	}
	return nil
}

func (m *MockAmazonGateway) GetOrderReferenceDetails(ctx context.Context, orderReferenceID string) (*ports.OrderReferenceDetails, error) {
	if m.GetOrderReferenceDetailsFunc != nil {
		return m.GetOrderReferenceDetailsFunc(ctx, orderReferenceID)
	}
	return &ports.OrderReferenceDetails{OrderReferenceID: orderReferenceID}, nil
}

func (m *MockAmazonGateway) CancelOrderReference(ctx context.Context, orderReferenceID, reason string) error {
	m.mu.Lock()
	m.CancelOrderCalls = append(m.CancelOrderCalls, orderReferenceID)
	m.mu.Unlock()
	if m.CancelOrderReferenceFunc != nil {
		return m.CancelOrderReferenceFunc(ctx, orderReferenceID, reason)
	}
	return nil
}

func (m *MockAmazonGateway) CloseOrderReference(ctx context.Context, orderReferenceID, reason string) error {
	m.mu.Lock()
	m.CloseOrderCalls = append(m.CloseOrderCalls, orderReferenceID)
	m.mu.Unlock()
	if m.CloseOrderReferenceFunc != nil {
		return m.CloseOrderReferenceFunc(ctx, orderReferenceID, reason)
	}
	return nil
}

func (m *MockAmazonGateway) Authorize(ctx context.Context, req *ports.AuthorizeRequest) (*ports.AuthorizationDetails, error) {
	m.mu.Lock()
	m.AuthorizeCalls = append(m.AuthorizeCalls, req)
	m.mu.Unlock()
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, req)
	}
	return &ports.AuthorizationDetails{}, nil
}

func (m *MockAmazonGateway) GetAuthorizationDetails(ctx context.Context, authorizationID string) (*ports.AuthorizationDetails, error) {
	m.mu.Lock()
	m.GetAuthorizationCalls = append(m.GetAuthorizationCalls, authorizationID)
	m.mu.Unlock()
	if m.GetAuthorizationDetailsFunc != nil {
		return m.GetAuthorizationDetailsFunc(ctx, authorizationID)
	}
	return &ports.AuthorizationDetails{AuthorizationID: authorizationID}, nil
}

func (m *MockAmazonGateway) Capture(ctx context.Context, req *ports.CaptureRequest) (*ports.CaptureDetails, error) {
	m.mu.Lock()
	m.CaptureCalls = append(m.CaptureCalls, req)
	m.mu.Unlock()
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx, req)
	}
	return &ports.CaptureDetails{}, nil
}

func (m *MockAmazonGateway) GetCaptureDetails(ctx context.Context, captureID string) (*ports.CaptureDetails, error) {
	if m.GetCaptureDetailsFunc != nil {
		return m.GetCaptureDetailsFunc(ctx, captureID)
	}
	return &ports.CaptureDetails{CaptureID: captureID}, nil
}

func (m *MockAmazonGateway) Refund(ctx context.Context, req *ports.RefundRequest) (*ports.RefundDetails, error) {
	m.mu.Lock()
	m.RefundCalls = append(m.RefundCalls, req)
	m.mu.Unlock()
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, req)
	}
	return &ports.RefundDetails{}, nil
}

func (m *MockAmazonGateway) GetRefundDetails(ctx context.Context, refundID string) (*ports.RefundDetails, error) {
	m.mu.Lock()
	m.GetRefundDetailsCalls = append(m.GetRefundDetailsCalls, refundID)
	m.mu.Unlock()
	if m.GetRefundDetailsFunc != nil {
		return m.GetRefundDetailsFunc(ctx, refundID)
	}
	return &ports.RefundDetails{RefundID: refundID}, nil
}

func (m *MockAmazonGateway) SetBillingAgreementDetails(ctx context.Context, agreementID, sellerNote string) error {
	if m.SetBillingAgreementDetailsFunc != nil {
		return m.SetBillingAgreementDetailsFunc(ctx, agreementID, sellerNote)
	}
	return nil
}

func (m *MockAmazonGateway) ConfirmBillingAgreement(ctx context.Context, agreementID, successURL, failureURL string) error {
	if m.ConfirmBillingAgreementFunc != nil {
		return m.ConfirmBillingAgreementFunc(ctx, agreementID, successURL, failureURL)
	}
	return nil
}

func (m *MockAmazonGateway) ValidateBillingAgreement(ctx context.Context, agreementID string) (*ports.AgreementValidation, error) {
	if m.ValidateBillingAgreementFunc != nil {
		return m.ValidateBillingAgreementFunc(ctx, agreementID)
	}
	return &ports.AgreementValidation{Success: true}, nil
}

func (m *MockAmazonGateway) GetBillingAgreementDetails(ctx context.Context, agreementID string) (*ports.BillingAgreementDetails, error) {
	m.mu.Lock()
	m.GetAgreementDetailsCalls = append(m.GetAgreementDetailsCalls, agreementID)
	m.mu.Unlock()
	if m.GetBillingAgreementDetailsFunc != nil {
		return m.GetBillingAgreementDetailsFunc(ctx, agreementID)
	}
	return &ports.BillingAgreementDetails{AgreementID: agreementID, Status: domain.AgreementStatusOpen}, nil
}

func (m *MockAmazonGateway) AuthorizeOnBillingAgreement(ctx context.Context, req *ports.AuthorizeOnAgreementRequest) (*ports.AuthorizationDetails, error) {
	m.mu.Lock()
	m.AuthorizeOnAgreementCalls = append(m.AuthorizeOnAgreementCalls, req)
	m.mu.Unlock()
	if m.AuthorizeOnBillingAgreementFunc != nil {
		return m.AuthorizeOnBillingAgreementFunc(ctx, req)
	}
	return &ports.AuthorizationDetails{}, nil
}

func (m *MockAmazonGateway) CloseBillingAgreement(ctx context.Context, agreementID, reason string) error {
	m.mu.Lock()
	m.CloseAgreementCalls = append(m.CloseAgreementCalls, agreementID)
	m.CloseAgreementReasons = append(m.CloseAgreementReasons, reason)
	m.mu.Unlock()
	if m.CloseBillingAgreementFunc != nil {
		return m.CloseBillingAgreementFunc(ctx, agreementID, reason)
	}
	return nil
}
