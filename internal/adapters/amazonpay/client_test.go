package amazonpay

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
	"github.com/kevin07696/amazonpay-service/test/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler func(req *http.Request) (*http.Response, error)) (*Client, *mocks.MockHTTPClient) {
	t.Helper()
	httpClient := mocks.NewMockHTTPClient(handler)
	config := AuthConfig{
		MerchantID:  "A1MERCHANT",
		AccessKeyID: "AKIATEST",
		SecretKey:   "test-secret",
		Region:      "de",
		Sandbox:     true,
	}
	return NewClient(config, httpClient, mocks.NewMockLogger()), httpClient
}

func xmlResponse(statusCode int, body string) (*http.Response, error) {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}, nil
}

func requestForm(t *testing.T, req *http.Request) url.Values {
	t.Helper()
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	form, err := url.ParseQuery(string(body))
	require.NoError(t, err)
	return form
}

func TestClient_Authorize_Open(t *testing.T) {
	client, httpClient := testClient(t, func(req *http.Request) (*http.Response, error) {
		return xmlResponse(200, `<?xml version="1.0"?>
<AuthorizeResponse>
  <AuthorizeResult>
    <AuthorizationDetails>
      <AmazonAuthorizationId>P01-1234567-1234567-A000001</AmazonAuthorizationId>
      <AuthorizationReferenceId>a_1042_1</AuthorizationReferenceId>
      <AuthorizationAmount><Amount>49.99</Amount><CurrencyCode>EUR</CurrencyCode></AuthorizationAmount>
      <CapturedAmount><Amount>0.00</Amount><CurrencyCode>EUR</CurrencyCode></CapturedAmount>
      <AuthorizationStatus>
        <State>Open</State>
        <LastUpdateTimestamp>2026-01-02T15:04:05Z</LastUpdateTimestamp>
      </AuthorizationStatus>
    </AuthorizationDetails>
  </AuthorizeResult>
</AuthorizeResponse>`)
	})

	details, err := client.Authorize(context.Background(), &ports.AuthorizeRequest{
		OrderReferenceID:         "P01-1234567-1234567",
		AuthorizationReferenceID: "a_1042_1",
		Amount:                   decimal.RequireFromString("49.99"),
		Currency:                 "EUR",
		TransactionTimeout:       0,
	})
	require.NoError(t, err)

	assert.Equal(t, "P01-1234567-1234567-A000001", details.AuthorizationID)
	assert.Equal(t, "a_1042_1", details.AuthorizationReferenceID)
	assert.Equal(t, domain.StateOpen, details.State)
	assert.Equal(t, domain.ReasonNone, details.ReasonCode)
	assert.True(t, details.Amount.Equal(decimal.RequireFromString("49.99")))
	assert.Equal(t, "EUR", details.Currency)

	require.Len(t, httpClient.Calls, 1)
	req := httpClient.Calls[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://mws-eu.amazonservices.com/OffAmazonPayments_Sandbox/2013-01-01", req.URL.String())

	form := requestForm(t, req)
	assert.Equal(t, "Authorize", form.Get("Action"))
	assert.Equal(t, "A1MERCHANT", form.Get("SellerId"))
	assert.Equal(t, "AKIATEST", form.Get("AWSAccessKeyId"))
	assert.Equal(t, "49.99", form.Get("AuthorizationAmount.Amount"))
	assert.Equal(t, "0", form.Get("TransactionTimeout"))
	assert.NotEmpty(t, form.Get("Signature"))
	assert.Equal(t, "2", form.Get("SignatureVersion"))
}

func TestClient_Authorize_DeclinedWithReason(t *testing.T) {
	client, _ := testClient(t, func(req *http.Request) (*http.Response, error) {
		return xmlResponse(200, `<AuthorizeResponse>
  <AuthorizeResult>
    <AuthorizationDetails>
      <AmazonAuthorizationId>P01-1234567-1234567-A000002</AmazonAuthorizationId>
      <AuthorizationReferenceId>a_1042_2</AuthorizationReferenceId>
      <AuthorizationStatus>
        <State>Declined</State>
        <ReasonCode>InvalidPaymentMethod</ReasonCode>
      </AuthorizationStatus>
    </AuthorizationDetails>
  </AuthorizeResult>
</AuthorizeResponse>`)
	})

	details, err := client.Authorize(context.Background(), &ports.AuthorizeRequest{
		OrderReferenceID:         "P01-1234567-1234567",
		AuthorizationReferenceID: "a_1042_2",
		Amount:                   decimal.RequireFromString("49.99"),
		Currency:                 "EUR",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StateDeclined, details.State)
	assert.Equal(t, domain.ReasonInvalidPaymentMethod, details.ReasonCode)
}

func TestClient_Authorize_UnknownStateFailsLoudly(t *testing.T) {
	client, _ := testClient(t, func(req *http.Request) (*http.Response, error) {
		return xmlResponse(200, `<AuthorizeResponse>
  <AuthorizeResult>
    <AuthorizationDetails>
      <AuthorizationStatus><State>Brand-New-State</State></AuthorizationStatus>
    </AuthorizationDetails>
  </AuthorizeResult>
</AuthorizeResponse>`)
	})

	_, err := client.Authorize(context.Background(), &ports.AuthorizeRequest{
		Amount: decimal.RequireFromString("1.00"),
	})
	assert.ErrorIs(t, err, domain.ErrUnknownProviderStatus)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	client, _ := testClient(t, func(req *http.Request) (*http.Response, error) {
		return xmlResponse(400, `<ErrorResponse>
  <Error>
    <Type>Sender</Type>
    <Code>InvalidParameterValue</Code>
    <Message>Value 0 for parameter Amount is invalid.</Message>
  </Error>
  <RequestId>b4ab-1234</RequestId>
</ErrorResponse>`)
	})

	_, err := client.GetCaptureDetails(context.Background(), "P01-1234567-1234567-C000001")
	require.Error(t, err)

	domainErr := domain.AsDomainError(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, domain.ErrorCodeGatewayError, domainErr.Code)
	assert.Equal(t, "InvalidParameterValue", domainErr.Details[domain.DetailGatewayCode])
}

func TestClient_ErrorEnvelope_Throttled(t *testing.T) {
	client, _ := testClient(t, func(req *http.Request) (*http.Response, error) {
		return xmlResponse(503, `<ErrorResponse>
  <Error><Type>Server</Type><Code>RequestThrottled</Code><Message>Slow down.</Message></Error>
</ErrorResponse>`)
	})

	_, err := client.GetRefundDetails(context.Background(), "P01-1234567-1234567-R000001")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayTimeout))
}

func TestClient_GetOrderReferenceDetails_Constraints(t *testing.T) {
	client, _ := testClient(t, func(req *http.Request) (*http.Response, error) {
		return xmlResponse(200, `<GetOrderReferenceDetailsResponse>
  <GetOrderReferenceDetailsResult>
    <OrderReferenceDetails>
      <AmazonOrderReferenceId>P01-1234567-1234567</AmazonOrderReferenceId>
      <OrderReferenceStatus><State>Draft</State></OrderReferenceStatus>
      <OrderTotal><Amount>49.99</Amount><CurrencyCode>EUR</CurrencyCode></OrderTotal>
      <Constraints>
        <Constraint>
          <ConstraintID>PaymentMethodExpired</ConstraintID>
          <Description>The selected payment method has expired.</Description>
        </Constraint>
        <Constraint>
          <ConstraintID>SomethingFromTheFuture</ConstraintID>
          <Description>Not in the closed set yet.</Description>
        </Constraint>
      </Constraints>
    </OrderReferenceDetails>
  </GetOrderReferenceDetailsResult>
</GetOrderReferenceDetailsResponse>`)
	})

	details, err := client.GetOrderReferenceDetails(context.Background(), "P01-1234567-1234567")
	require.NoError(t, err)

	assert.Equal(t, domain.AgreementStatusDraft, details.State)
	require.Len(t, details.Constraints, 2)
	assert.Equal(t, domain.ConstraintPaymentMethodExpired, details.Constraints[0])
	assert.Equal(t, domain.ConstraintUnknown, details.Constraints[1])
}

func TestClient_CloseBillingAgreement_TruncatesReason(t *testing.T) {
	client, httpClient := testClient(t, func(req *http.Request) (*http.Response, error) {
		return xmlResponse(200, `<CloseBillingAgreementResponse/>`)
	})

	longReason := make([]byte, 2000)
	for i := range longReason {
		longReason[i] = 'x'
	}

	err := client.CloseBillingAgreement(context.Background(), "C01-1234567-1234567", string(longReason))
	require.NoError(t, err)

	form := requestForm(t, httpClient.Calls[0])
	assert.Len(t, form.Get("ClosureReason"), maxClosureReasonLength)
}

func TestClient_ValidateBillingAgreement(t *testing.T) {
	client, _ := testClient(t, func(req *http.Request) (*http.Response, error) {
		return xmlResponse(200, `<ValidateBillingAgreementResponse>
  <ValidateBillingAgreementResult>
    <ValidationResult>Failure</ValidationResult>
    <FailureReasonCode>InvalidPaymentMethod</FailureReasonCode>
    <BillingAgreementStatus><State>Open</State></BillingAgreementStatus>
  </ValidateBillingAgreementResult>
</ValidateBillingAgreementResponse>`)
	})

	validation, err := client.ValidateBillingAgreement(context.Background(), "C01-1234567-1234567")
	require.NoError(t, err)
	assert.False(t, validation.Success)
	assert.Equal(t, "InvalidPaymentMethod", validation.FailureReason)
}

func TestClient_NetworkErrorWrapped(t *testing.T) {
	client, _ := testClient(t, func(req *http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	})

	_, err := client.GetAuthorizationDetails(context.Background(), "P01-1234567-1234567-A000001")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayError))
}
