package subscription_test

import (
	"context"
	"testing"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
	"github.com/kevin07696/amazonpay-service/internal/services/subscription"
	"github.com/kevin07696/amazonpay-service/test/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	service    *subscription.Service
	agreements *mocks.MockAgreementRepository
	invoices   *mocks.MockInvoiceSource
	ledger     *mocks.MockLedgerRepository
	states     *mocks.MockOrderStateRepository
	gateway    *mocks.MockAmazonGateway
	logger     *mocks.MockLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		agreements: mocks.NewMockAgreementRepository(),
		invoices:   mocks.NewMockInvoiceSource(),
		ledger:     mocks.NewMockLedgerRepository(),
		states:     mocks.NewMockOrderStateRepository(),
		gateway:    mocks.NewMockAmazonGateway(),
		logger:     mocks.NewMockLogger(),
	}
	env.service = subscription.NewService(
		mocks.NewMockDB(),
		env.agreements,
		env.invoices,
		env.ledger,
		env.states,
		env.gateway,
		env.logger,
		subscription.Config{StoreName: "Test Shop"},
	)
	return env
}

func activeAgreement() *domain.BillingAgreement {
	return &domain.BillingAgreement{
		AgreementID:     "B01-1234567-1234567",
		GlobalProcessID: "proc-77",
		Customer:        []byte(`{"id":"42"}`),
		Active:          true,
	}
}

func unpaidInvoice() *domain.Invoice {
	return &domain.Invoice{
		ID:                "2001",
		OrderID:           "1042",
		GlobalProcessID:   "proc-77",
		AmountOutstanding: decimal.RequireFromString("49.99"),
		Currency:          "EUR",
	}
}

func TestConfirmAgreement_PersistsActiveAgreement(t *testing.T) {
	env := newTestEnv(t)

	err := env.service.ConfirmAgreement(context.Background(), ports.ServiceConfirmAgreementRequest{
		AgreementID:     "B01-1234567-1234567",
		GlobalProcessID: "proc-77",
		Customer:        []byte(`{"id":"42"}`),
		SuccessURL:      "https://shop.example/success",
		FailureURL:      "https://shop.example/failure",
	})
	require.NoError(t, err)

	agreement := env.agreements.Agreement("B01-1234567-1234567")
	require.NotNil(t, agreement)
	assert.True(t, agreement.Active)
	assert.Equal(t, "proc-77", agreement.GlobalProcessID)
	assert.Empty(t, env.gateway.CloseAgreementCalls)
}

func TestConfirmAgreement_ValidationFailureClosesProviderAgreement(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.ValidateBillingAgreementFunc = func(ctx context.Context, agreementID string) (*ports.AgreementValidation, error) {
		return &ports.AgreementValidation{Success: false, FailureReason: "InvalidPaymentMethod"}, nil
	}

	err := env.service.ConfirmAgreement(context.Background(), ports.ServiceConfirmAgreementRequest{
		AgreementID:     "B01-1234567-1234567",
		GlobalProcessID: "proc-77",
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeAgreementValidationFailed, domain.GetErrorCode(err))

	assert.Equal(t, []string{"B01-1234567-1234567"}, env.gateway.CloseAgreementCalls)
	assert.Nil(t, env.agreements.Agreement("B01-1234567-1234567"))
}

func TestConfirmAgreement_AlreadyActiveIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())
	called := false
	env.gateway.ConfirmBillingAgreementFunc = func(ctx context.Context, agreementID, successURL, failureURL string) error {
		called = true
		return nil
	}

	err := env.service.ConfirmAgreement(context.Background(), ports.ServiceConfirmAgreementRequest{
		AgreementID:     "B01-1234567-1234567",
		GlobalProcessID: "proc-77",
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestConfirmAgreement_ConstraintBlocksConfirmation(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.GetBillingAgreementDetailsFunc = func(ctx context.Context, agreementID string) (*ports.BillingAgreementDetails, error) {
		return &ports.BillingAgreementDetails{
			AgreementID: agreementID,
			Status:      domain.AgreementStatusDraft,
			Constraints: []domain.ConstraintID{domain.ConstraintBuyerConsentNotSet},
		}, nil
	}
	validated := false
	env.gateway.ValidateBillingAgreementFunc = func(ctx context.Context, agreementID string) (*ports.AgreementValidation, error) {
		validated = true
		return &ports.AgreementValidation{Success: true}, nil
	}

	err := env.service.ConfirmAgreement(context.Background(), ports.ServiceConfirmAgreementRequest{
		AgreementID:     "B01-1234567-1234567",
		GlobalProcessID: "proc-77",
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeGatewayConstraint, domain.GetErrorCode(err))

	derr := domain.AsDomainError(err)
	require.NotNil(t, derr)
	constraint, ok := derr.Detail(domain.DetailConstraintID)
	require.True(t, ok)
	assert.Equal(t, "BuyerConsentNotSet", constraint)

	assert.False(t, validated, "a constrained agreement must not reach validation")
	assert.Nil(t, env.agreements.Agreement("B01-1234567-1234567"))
}

func TestConfirmAgreement_NotOpenWithoutConstraintFails(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.GetBillingAgreementDetailsFunc = func(ctx context.Context, agreementID string) (*ports.BillingAgreementDetails, error) {
		return &ports.BillingAgreementDetails{AgreementID: agreementID, Status: domain.AgreementStatusDraft}, nil
	}

	err := env.service.ConfirmAgreement(context.Background(), ports.ServiceConfirmAgreementRequest{
		AgreementID:     "B01-1234567-1234567",
		GlobalProcessID: "proc-77",
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeGatewayConstraint, domain.GetErrorCode(err))
	assert.Nil(t, env.agreements.Agreement("B01-1234567-1234567"))
}

func TestBillAgreementBalance_ExactMatchSettlesInvoice(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())
	env.invoices.Seed(unpaidInvoice())

	env.gateway.AuthorizeOnBillingAgreementFunc = func(ctx context.Context, req *ports.AuthorizeOnAgreementRequest) (*ports.AuthorizationDetails, error) {
		assert.Equal(t, "a_2001_1", req.AuthorizationReferenceID)
		assert.True(t, req.CaptureNow)
		assert.Equal(t, 0, req.TransactionTimeout)
		assert.Equal(t, "1042", req.SellerOrderID)
		return &ports.AuthorizationDetails{
			AuthorizationID:  "B01-1234567-1234567-A000001",
			State:            domain.StateClosed,
			CaptureIDs:       []string{"B01-1234567-1234567-C000001"},
			CapturedAmount:   decimal.RequireFromString("49.99"),
			CapturedCurrency: "EUR",
		}, nil
	}

	require.NoError(t, env.service.BillAgreementBalance(context.Background(), "2001"))

	assert.True(t, env.invoices.Invoice("2001").Paid)

	attempt := env.agreements.Attempt("B01-1234567-1234567", "2001")
	require.NotNil(t, attempt)
	assert.True(t, attempt.Completed)
	assert.Equal(t, 0, attempt.CaptureAttempts, "a successful charge burns no attempt")

	txns := env.ledger.All()
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TransactionTypeCapture, txns[0].Type)
	assert.Equal(t, domain.TransactionStatusCompleted, txns[0].Status)
	assert.Equal(t, "B01-1234567-1234567-C000001", txns[0].GatewayTransactionID)
	assert.Equal(t, "2001", txns[0].InvoiceID)
	assert.Equal(t, attempt.TransactionID, txns[0].ID)
}

func TestBillAgreementBalance_ReusesOpenAuthorization(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())
	env.invoices.Seed(unpaidInvoice())

	attempt, err := env.agreements.GetOrCreateTransaction(context.Background(), nil, "B01-1234567-1234567", "2001")
	require.NoError(t, err)
	attempt.AuthorizationID = "B01-1234567-1234567-A000001"
	require.NoError(t, env.agreements.UpdateTransaction(context.Background(), nil, attempt))

	env.gateway.GetAuthorizationDetailsFunc = func(ctx context.Context, authorizationID string) (*ports.AuthorizationDetails, error) {
		return &ports.AuthorizationDetails{
			AuthorizationID: authorizationID,
			State:           domain.StateOpen,
			Amount:          decimal.RequireFromString("49.99"),
			Currency:        "EUR",
		}, nil
	}
	env.gateway.CaptureFunc = func(ctx context.Context, req *ports.CaptureRequest) (*ports.CaptureDetails, error) {
		return &ports.CaptureDetails{
			CaptureID:          "B01-1234567-1234567-C000002",
			CaptureReferenceID: req.CaptureReferenceID,
			State:              domain.StateCompleted,
			Amount:             req.Amount,
			Currency:           req.Currency,
		}, nil
	}

	require.NoError(t, env.service.BillAgreementBalance(context.Background(), "2001"))

	assert.Equal(t, []string{"B01-1234567-1234567-A000001"}, env.gateway.GetAuthorizationCalls)
	require.Len(t, env.gateway.CaptureCalls, 1)
	assert.Equal(t, "B01-1234567-1234567-A000001", env.gateway.CaptureCalls[0].AuthorizationID)
	assert.Equal(t, "c_2001_1", env.gateway.CaptureCalls[0].CaptureReferenceID)
	assert.Empty(t, env.gateway.AuthorizeOnAgreementCalls, "an open authorization must be captured, not re-authorized")

	assert.True(t, env.invoices.Invoice("2001").Paid)
	txns := env.ledger.All()
	require.Len(t, txns, 1)
	assert.Equal(t, "B01-1234567-1234567-C000002", txns[0].GatewayTransactionID)
}

func TestBillAgreementBalance_StalePriorAuthorizationGetsFreshOne(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())
	env.invoices.Seed(unpaidInvoice())

	attempt, err := env.agreements.GetOrCreateTransaction(context.Background(), nil, "B01-1234567-1234567", "2001")
	require.NoError(t, err)
	attempt.AuthorizationID = "B01-1234567-1234567-A000001"
	require.NoError(t, env.agreements.UpdateTransaction(context.Background(), nil, attempt))

	env.gateway.GetAuthorizationDetailsFunc = func(ctx context.Context, authorizationID string) (*ports.AuthorizationDetails, error) {
		return &ports.AuthorizationDetails{AuthorizationID: authorizationID, State: domain.StateClosed}, nil
	}
	env.gateway.AuthorizeOnBillingAgreementFunc = func(ctx context.Context, req *ports.AuthorizeOnAgreementRequest) (*ports.AuthorizationDetails, error) {
		return &ports.AuthorizationDetails{
			AuthorizationID:  "B01-1234567-1234567-A000002",
			State:            domain.StateClosed,
			CaptureIDs:       []string{"B01-1234567-1234567-C000002"},
			CapturedAmount:   decimal.RequireFromString("49.99"),
			CapturedCurrency: "EUR",
		}, nil
	}

	require.NoError(t, env.service.BillAgreementBalance(context.Background(), "2001"))

	assert.Empty(t, env.gateway.CaptureCalls)
	require.Len(t, env.gateway.AuthorizeOnAgreementCalls, 1)
	assert.True(t, env.invoices.Invoice("2001").Paid)
}

func TestBillAgreementBalance_AgreementNotOpenAtProviderSkips(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())
	env.invoices.Seed(unpaidInvoice())

	env.gateway.GetBillingAgreementDetailsFunc = func(ctx context.Context, agreementID string) (*ports.BillingAgreementDetails, error) {
		return &ports.BillingAgreementDetails{AgreementID: agreementID, Status: domain.AgreementStatusSuspended}, nil
	}

	require.NoError(t, env.service.BillAgreementBalance(context.Background(), "2001"))

	assert.Empty(t, env.gateway.AuthorizeOnAgreementCalls)
	assert.Empty(t, env.gateway.CaptureCalls)
	assert.False(t, env.invoices.Invoice("2001").Paid)
	assert.Nil(t, env.agreements.Attempt("B01-1234567-1234567", "2001"), "skipping must not burn an attempt")
}

func TestBillAgreementBalance_StatusLookupFailureStillBills(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())
	env.invoices.Seed(unpaidInvoice())

	env.gateway.GetBillingAgreementDetailsFunc = func(ctx context.Context, agreementID string) (*ports.BillingAgreementDetails, error) {
		return nil, domain.ErrGatewayError
	}
	env.gateway.AuthorizeOnBillingAgreementFunc = func(ctx context.Context, req *ports.AuthorizeOnAgreementRequest) (*ports.AuthorizationDetails, error) {
		return &ports.AuthorizationDetails{
			AuthorizationID:  "B01-1234567-1234567-A000001",
			State:            domain.StateClosed,
			CaptureIDs:       []string{"B01-1234567-1234567-C000001"},
			CapturedAmount:   decimal.RequireFromString("49.99"),
			CapturedCurrency: "EUR",
		}, nil
	}

	require.NoError(t, env.service.BillAgreementBalance(context.Background(), "2001"))
	assert.True(t, env.invoices.Invoice("2001").Paid)
}

func TestBillAgreementBalance_AmountMismatchBurnsAttempt(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())
	env.invoices.Seed(unpaidInvoice())

	env.gateway.AuthorizeOnBillingAgreementFunc = func(ctx context.Context, req *ports.AuthorizeOnAgreementRequest) (*ports.AuthorizationDetails, error) {
		return &ports.AuthorizationDetails{
			AuthorizationID:  "B01-1234567-1234567-A000001",
			State:            domain.StateClosed,
			CapturedAmount:   decimal.RequireFromString("49.98"),
			CapturedCurrency: "EUR",
		}, nil
	}

	err := env.service.BillAgreementBalance(context.Background(), "2001")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeGatewayError, domain.GetErrorCode(err))

	assert.False(t, env.invoices.Invoice("2001").Paid)
	attempt := env.agreements.Attempt("B01-1234567-1234567", "2001")
	require.NotNil(t, attempt)
	assert.False(t, attempt.Completed)
	assert.Equal(t, 1, attempt.CaptureAttempts)
	assert.Empty(t, env.ledger.All())
	assert.True(t, env.agreements.Agreement("B01-1234567-1234567").Active)
}

func TestBillAgreementBalance_CurrencyMismatchBurnsAttempt(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())
	env.invoices.Seed(unpaidInvoice())

	env.gateway.AuthorizeOnBillingAgreementFunc = func(ctx context.Context, req *ports.AuthorizeOnAgreementRequest) (*ports.AuthorizationDetails, error) {
		return &ports.AuthorizationDetails{
			AuthorizationID:  "B01-1234567-1234567-A000001",
			State:            domain.StateClosed,
			CaptureIDs:       []string{"B01-1234567-1234567-C000001"},
			CapturedAmount:   decimal.RequireFromString("49.99"),
			CapturedCurrency: "USD",
		}, nil
	}

	err := env.service.BillAgreementBalance(context.Background(), "2001")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeGatewayError, domain.GetErrorCode(err))

	assert.False(t, env.invoices.Invoice("2001").Paid)
	attempt := env.agreements.Attempt("B01-1234567-1234567", "2001")
	require.NotNil(t, attempt)
	assert.False(t, attempt.Completed)
	assert.Equal(t, 1, attempt.CaptureAttempts)
	assert.Empty(t, env.ledger.All(), "a capture in the wrong currency must not be booked")
}

func TestBillAgreementBalance_ThirdFailureCancelsAgreement(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())
	env.invoices.Seed(unpaidInvoice())

	env.gateway.AuthorizeOnBillingAgreementFunc = func(ctx context.Context, req *ports.AuthorizeOnAgreementRequest) (*ports.AuthorizationDetails, error) {
		return &ports.AuthorizationDetails{
			State:      domain.StateDeclined,
			ReasonCode: domain.ReasonAmazonRejected,
		}, nil
	}

	for i := 0; i < subscription.DefaultMaxCaptureAttempts; i++ {
		err := env.service.BillAgreementBalance(context.Background(), "2001")
		require.Error(t, err)
	}

	attempt := env.agreements.Attempt("B01-1234567-1234567", "2001")
	assert.Equal(t, subscription.DefaultMaxCaptureAttempts, attempt.CaptureAttempts)
	assert.Equal(t, []string{"B01-1234567-1234567"}, env.gateway.CloseAgreementCalls)
	assert.False(t, env.agreements.Agreement("B01-1234567-1234567").Active)
}

func TestBillAgreementBalance_DeclinedReturnsReasonError(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())
	env.invoices.Seed(unpaidInvoice())

	env.gateway.AuthorizeOnBillingAgreementFunc = func(ctx context.Context, req *ports.AuthorizeOnAgreementRequest) (*ports.AuthorizationDetails, error) {
		return &ports.AuthorizationDetails{
			State:      domain.StateDeclined,
			ReasonCode: domain.ReasonInvalidPaymentMethod,
		}, nil
	}

	err := env.service.BillAgreementBalance(context.Background(), "2001")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeGatewayInvalidPaymentMethod, domain.GetErrorCode(err))
	assert.Equal(t, 1, env.agreements.Attempt("B01-1234567-1234567", "2001").CaptureAttempts)
}

func TestBillAgreementBalance_PaidInvoiceIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	invoice := unpaidInvoice()
	invoice.Paid = true
	env.invoices.Seed(invoice)

	require.NoError(t, env.service.BillAgreementBalance(context.Background(), "2001"))
	assert.Empty(t, env.gateway.AuthorizeOnAgreementCalls)
}

func TestBillAgreementBalance_CompletedAttemptIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())
	env.invoices.Seed(unpaidInvoice())

	attempt, err := env.agreements.GetOrCreateTransaction(context.Background(), nil, "B01-1234567-1234567", "2001")
	require.NoError(t, err)
	_, err = env.agreements.MarkTransactionCompleted(context.Background(), nil, attempt)
	require.NoError(t, err)

	require.NoError(t, env.service.BillAgreementBalance(context.Background(), "2001"))
	assert.Empty(t, env.gateway.AuthorizeOnAgreementCalls)
}

func TestBillAgreementBalance_SuspendedAgreementRefusesToBill(t *testing.T) {
	env := newTestEnv(t)
	agreement := activeAgreement()
	agreement.Suspended = true
	env.agreements.Seed(agreement)
	env.invoices.Seed(unpaidInvoice())

	err := env.service.BillAgreementBalance(context.Background(), "2001")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeTxnInvalidState, domain.GetErrorCode(err))
	assert.Empty(t, env.gateway.AuthorizeOnAgreementCalls)
}

func TestBillAgreementBalance_InactiveAgreementNotFound(t *testing.T) {
	env := newTestEnv(t)
	agreement := activeAgreement()
	agreement.Active = false
	env.agreements.Seed(agreement)
	env.invoices.Seed(unpaidInvoice())

	err := env.service.BillAgreementBalance(context.Background(), "2001")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeAgreementNotFound, domain.GetErrorCode(err))
}

func TestProcessUnpaidInvoices_IsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())

	good := unpaidInvoice()
	env.invoices.Seed(good)
	orphan := unpaidInvoice()
	orphan.ID = "2002"
	orphan.GlobalProcessID = "proc-unknown"
	env.invoices.Seed(orphan)

	env.gateway.AuthorizeOnBillingAgreementFunc = func(ctx context.Context, req *ports.AuthorizeOnAgreementRequest) (*ports.AuthorizationDetails, error) {
		return &ports.AuthorizationDetails{
			AuthorizationID:  "B01-1234567-1234567-A000001",
			State:            domain.StateClosed,
			CaptureIDs:       []string{"B01-1234567-1234567-C000001"},
			CapturedAmount:   decimal.RequireFromString("49.99"),
			CapturedCurrency: "EUR",
		}, nil
	}

	result, err := env.service.ProcessUnpaidInvoices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, env.invoices.Invoice("2001").Paid)
	assert.False(t, env.invoices.Invoice("2002").Paid)
}

func TestCancelAgreement_ProviderFailureStillDeactivatesLocally(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())
	env.gateway.CloseBillingAgreementFunc = func(ctx context.Context, agreementID, reason string) error {
		return domain.ErrGatewayError
	}

	err := env.service.CancelAgreement(context.Background(), "B01-1234567-1234567", "customer cancelled")
	require.NoError(t, err)
	assert.False(t, env.agreements.Agreement("B01-1234567-1234567").Active)
}

func TestSuspendAndResumeAgreement(t *testing.T) {
	env := newTestEnv(t)
	env.agreements.Seed(activeAgreement())

	require.NoError(t, env.service.SuspendAgreement(context.Background(), "B01-1234567-1234567"))
	suspended, err := env.service.IsSuspended(context.Background(), "B01-1234567-1234567")
	require.NoError(t, err)
	assert.True(t, suspended)

	require.NoError(t, env.service.ResumeAgreement(context.Background(), "B01-1234567-1234567"))
	suspended, err = env.service.IsSuspended(context.Background(), "B01-1234567-1234567")
	require.NoError(t, err)
	assert.False(t, suspended)
}

func TestGetAgreement_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.GetAgreement(context.Background(), "B01-0000000-0000000")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeAgreementNotFound, domain.GetErrorCode(err))
}
