package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
	handler "github.com/kevin07696/amazonpay-service/internal/handlers/payment"
	"github.com/kevin07696/amazonpay-service/internal/services/payment"
	"github.com/kevin07696/amazonpay-service/test/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerEnv struct {
	handler *handler.Handler
	states  *mocks.MockOrderStateRepository
	gateway *mocks.MockAmazonGateway
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	env := &handlerEnv{
		states:  mocks.NewMockOrderStateRepository(),
		gateway: mocks.NewMockAmazonGateway(),
	}
	logger := mocks.NewMockLogger()
	service := payment.NewService(
		mocks.NewMockDB(),
		env.states,
		mocks.NewMockLedgerRepository(),
		mocks.NewMockRefundRepository(),
		env.gateway,
		logger,
		payment.Config{StoreName: "Test Shop"},
	)
	env.handler = handler.NewHandler(service, logger, handler.Config{
		SuccessRedirectURL: "https://shop.example/checkout/success",
		FailureRedirectURL: "https://shop.example/checkout/failure",
	})
	return env
}

func postJSON(t *testing.T, fn http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func seedConfirmed(env *handlerEnv) {
	env.states.Seed(&domain.OrderPaymentState{
		OrderID:          "1042",
		InvoiceID:        "INV-1042",
		OrderReferenceID: "P01-1234567-1234567",
		Amount:           decimal.RequireFromString("49.99"),
		Currency:         "EUR",
		ReferenceSet:     true,
		Confirmed:        true,
	})
}

func TestConfirmOrderEndpoint(t *testing.T) {
	env := newHandlerEnv(t)

	rec := postJSON(t, env.handler.ConfirmOrder, "/api/v1/confirm-order", `{
		"order_id": "1042",
		"invoice_id": "INV-1042",
		"order_reference_id": "P01-1234567-1234567",
		"amount": "49.99",
		"currency": "EUR"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.states.State("1042").Confirmed)
}

func TestConfirmOrderEndpoint_MissingFields(t *testing.T) {
	env := newHandlerEnv(t)

	rec := postJSON(t, env.handler.ConfirmOrder, "/api/v1/confirm-order", `{"order_id": "1042"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthorizeEndpoint_DeclineCarriesUIHints(t *testing.T) {
	env := newHandlerEnv(t)
	seedConfirmed(env)
	env.gateway.AuthorizeFunc = func(ctx context.Context, req *ports.AuthorizeRequest) (*ports.AuthorizationDetails, error) {
		return &ports.AuthorizationDetails{
			State:      domain.StateDeclined,
			ReasonCode: domain.ReasonInvalidPaymentMethod,
		}, nil
	}

	rec := postJSON(t, env.handler.Authorize, "/api/v1/authorize", `{"order_id": "1042"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, string(domain.ErrorCodeGatewayInvalidPaymentMethod), body["code"])
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, details[domain.DetailReRenderWallet])
}

func TestCaptureEndpoint_UnknownOrder(t *testing.T) {
	env := newHandlerEnv(t)

	rec := postJSON(t, env.handler.Capture, "/api/v1/capture", `{"order_id": "9999"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(domain.ErrorCodeOrderNotFound), decodeBody(t, rec)["code"])
}

func TestGetOrderStateEndpoint(t *testing.T) {
	env := newHandlerEnv(t)
	seedConfirmed(env)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/order-state?order_id=1042", nil)
	rec := httptest.NewRecorder()
	env.handler.GetOrderState(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "1042", body["order_id"])
	assert.Equal(t, true, body["confirmed"])
	assert.Equal(t, false, body["captured"])
}

func TestLogFrontendErrorEndpoint_RejectsUnknownCode(t *testing.T) {
	env := newHandlerEnv(t)

	rec := postJSON(t, env.handler.LogFrontendError, "/api/v1/log-frontend-error",
		`{"order_id": "1042", "code": "DropAllTables"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, env.handler.LogFrontendError, "/api/v1/log-frontend-error",
		`{"order_id": "1042", "code": "BuyerSessionExpired"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfirmationReturn_SuccessAuthorizesAndRedirects(t *testing.T) {
	env := newHandlerEnv(t)
	seedConfirmed(env)
	env.gateway.AuthorizeFunc = func(ctx context.Context, req *ports.AuthorizeRequest) (*ports.AuthorizationDetails, error) {
		return &ports.AuthorizationDetails{
			AuthorizationID: "P01-1234567-1234567-A000001",
			State:           domain.StateOpen,
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet,
		"/return/confirmation?hash=1042&AuthenticationStatus=Success", nil)
	rec := httptest.NewRecorder()
	env.handler.ConfirmationReturn(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/checkout/success", location.Path)
	assert.Equal(t, "1042", location.Query().Get("hash"))
	assert.True(t, env.states.State("1042").Authorized)
}

func TestConfirmationReturn_FailureRedirectsWithErrorCode(t *testing.T) {
	env := newHandlerEnv(t)
	seedConfirmed(env)

	req := httptest.NewRequest(http.MethodGet,
		"/return/confirmation?hash=1042&AuthenticationStatus=Failure&ErrorCode=BuyerAbandoned", nil)
	rec := httptest.NewRecorder()
	env.handler.ConfirmationReturn(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/checkout/failure", location.Path)
	assert.Equal(t, "BuyerAbandoned", location.Query().Get("error"))
	assert.Empty(t, env.gateway.AuthorizeCalls)
}
