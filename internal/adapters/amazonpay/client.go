package amazonpay

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
	"github.com/kevin07696/amazonpay-service/pkg/resilience"
	"github.com/kevin07696/amazonpay-service/pkg/timeutil"
)

// maxClosureReasonLength is the provider's limit on closure/cancelation
// reason strings
const maxClosureReasonLength = 1024

// maxCallAttempts bounds retries for throttled or transiently failing calls
const maxCallAttempts = 3

// Client implements ports.AmazonGateway against the OffAmazonPayments API.
// It is constructed once at startup and injected into every component that
// talks to the provider; it holds no mutable state beyond the HTTP client.
type Client struct {
	config     AuthConfig
	httpClient ports.HTTPClient
	logger     ports.Logger
	backoff    resilience.BackoffStrategy
}

// NewClient creates a new gateway client with dependency injection
func NewClient(config AuthConfig, httpClient ports.HTTPClient, logger ports.Logger) *Client {
	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		backoff:    resilience.DefaultExponentialBackoff(),
	}
}

// SetOrderReferenceDetails implements AmazonGateway.SetOrderReferenceDetails
func (c *Client) SetOrderReferenceDetails(ctx context.Context, req *ports.SetOrderDetailsRequest) (*ports.OrderReferenceDetails, error) {
	params := map[string]string{
		"AmazonOrderReferenceId":                                       req.OrderReferenceID,
		"OrderReferenceAttributes.OrderTotal.Amount":                   req.Amount.StringFixed(2),
		"OrderReferenceAttributes.OrderTotal.CurrencyCode":             req.Currency,
		"OrderReferenceAttributes.SellerNote":                          req.SellerNote,
		"OrderReferenceAttributes.SellerOrderAttributes.SellerOrderId": req.SellerOrderID,
	}
	if req.StoreName != "" {
		params["OrderReferenceAttributes.SellerOrderAttributes.StoreName"] = req.StoreName
	}
	if req.CustomInformation != "" {
		params["OrderReferenceAttributes.SellerOrderAttributes.CustomInformation"] = req.CustomInformation
	}

	var resp setOrderReferenceDetailsResponse
	if err := c.call(ctx, "SetOrderReferenceDetails", params, &resp); err != nil {
		return nil, err
	}
	return resp.Result.OrderReferenceDetails.toPort()
}

// ConfirmOrderReference implements AmazonGateway.ConfirmOrderReference
func (c *Client) ConfirmOrderReference(ctx context.Context, orderReferenceID, successURL, failureURL string) error {
	params := map[string]string{
		"AmazonOrderReferenceId": orderReferenceID,
	}
	if successURL != "" {
		params["SuccessUrl"] = successURL
	}
	if failureURL != "" {
		params["FailureUrl"] = failureURL
	}
	var resp struct{}
	return c.call(ctx, "ConfirmOrderReference", params, &resp)
}

// GetOrderReferenceDetails implements AmazonGateway.GetOrderReferenceDetails
func (c *Client) GetOrderReferenceDetails(ctx context.Context, orderReferenceID string) (*ports.OrderReferenceDetails, error) {
	var resp getOrderReferenceDetailsResponse
	err := c.call(ctx, "GetOrderReferenceDetails", map[string]string{
		"AmazonOrderReferenceId": orderReferenceID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Result.OrderReferenceDetails.toPort()
}

// CancelOrderReference implements AmazonGateway.CancelOrderReference
func (c *Client) CancelOrderReference(ctx context.Context, orderReferenceID, reason string) error {
	var resp struct{}
	return c.call(ctx, "CancelOrderReference", map[string]string{
		"AmazonOrderReferenceId": orderReferenceID,
		"CancelationReason":      truncateReason(reason),
	}, &resp)
}

// CloseOrderReference implements AmazonGateway.CloseOrderReference
func (c *Client) CloseOrderReference(ctx context.Context, orderReferenceID, reason string) error {
	var resp struct{}
	return c.call(ctx, "CloseOrderReference", map[string]string{
		"AmazonOrderReferenceId": orderReferenceID,
		"ClosureReason":          truncateReason(reason),
	}, &resp)
}

// Authorize implements AmazonGateway.Authorize
func (c *Client) Authorize(ctx context.Context, req *ports.AuthorizeRequest) (*ports.AuthorizationDetails, error) {
	params := map[string]string{
		"AmazonOrderReferenceId":           req.OrderReferenceID,
		"AuthorizationReferenceId":         req.AuthorizationReferenceID,
		"AuthorizationAmount.Amount":       req.Amount.StringFixed(2),
		"AuthorizationAmount.CurrencyCode": req.Currency,
		"TransactionTimeout":               strconv.Itoa(req.TransactionTimeout),
	}
	if req.CaptureNow {
		params["CaptureNow"] = "true"
	}
	if req.SellerAuthorizationNote != "" {
		params["SellerAuthorizationNote"] = req.SellerAuthorizationNote
	}

	var resp authorizeResponse
	if err := c.call(ctx, "Authorize", params, &resp); err != nil {
		return nil, err
	}
	return resp.Result.AuthorizationDetails.toPort()
}

// GetAuthorizationDetails implements AmazonGateway.GetAuthorizationDetails
func (c *Client) GetAuthorizationDetails(ctx context.Context, authorizationID string) (*ports.AuthorizationDetails, error) {
	var resp getAuthorizationDetailsResponse
	err := c.call(ctx, "GetAuthorizationDetails", map[string]string{
		"AmazonAuthorizationId": authorizationID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Result.AuthorizationDetails.toPort()
}

// Capture implements AmazonGateway.Capture
func (c *Client) Capture(ctx context.Context, req *ports.CaptureRequest) (*ports.CaptureDetails, error) {
	params := map[string]string{
		"AmazonAuthorizationId":      req.AuthorizationID,
		"CaptureReferenceId":         req.CaptureReferenceID,
		"CaptureAmount.Amount":       req.Amount.StringFixed(2),
		"CaptureAmount.CurrencyCode": req.Currency,
	}
	if req.SellerCaptureNote != "" {
		params["SellerCaptureNote"] = req.SellerCaptureNote
	}

	var resp captureResponse
	if err := c.call(ctx, "Capture", params, &resp); err != nil {
		return nil, err
	}
	return resp.Result.CaptureDetails.toPort()
}

// GetCaptureDetails implements AmazonGateway.GetCaptureDetails
func (c *Client) GetCaptureDetails(ctx context.Context, captureID string) (*ports.CaptureDetails, error) {
	var resp getCaptureDetailsResponse
	err := c.call(ctx, "GetCaptureDetails", map[string]string{
		"AmazonCaptureId": captureID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Result.CaptureDetails.toPort()
}

// Refund implements AmazonGateway.Refund
func (c *Client) Refund(ctx context.Context, req *ports.RefundRequest) (*ports.RefundDetails, error) {
	params := map[string]string{
		"AmazonCaptureId":           req.CaptureID,
		"RefundReferenceId":         req.RefundReferenceID,
		"RefundAmount.Amount":       req.Amount.StringFixed(2),
		"RefundAmount.CurrencyCode": req.Currency,
	}
	if req.SellerRefundNote != "" {
		params["SellerRefundNote"] = req.SellerRefundNote
	}

	var resp refundResponse
	if err := c.call(ctx, "Refund", params, &resp); err != nil {
		return nil, err
	}
	return resp.Result.RefundDetails.toPort()
}

// GetRefundDetails implements AmazonGateway.GetRefundDetails
func (c *Client) GetRefundDetails(ctx context.Context, refundID string) (*ports.RefundDetails, error) {
	var resp getRefundDetailsResponse
	err := c.call(ctx, "GetRefundDetails", map[string]string{
		"AmazonRefundId": refundID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Result.RefundDetails.toPort()
}

// SetBillingAgreementDetails implements AmazonGateway.SetBillingAgreementDetails
func (c *Client) SetBillingAgreementDetails(ctx context.Context, agreementID, sellerNote string) error {
	var resp struct{}
	return c.call(ctx, "SetBillingAgreementDetails", map[string]string{
		"AmazonBillingAgreementId":              agreementID,
		"BillingAgreementAttributes.SellerNote": sellerNote,
	}, &resp)
}

// ConfirmBillingAgreement implements AmazonGateway.ConfirmBillingAgreement
func (c *Client) ConfirmBillingAgreement(ctx context.Context, agreementID, successURL, failureURL string) error {
	params := map[string]string{
		"AmazonBillingAgreementId": agreementID,
	}
	if successURL != "" {
		params["SuccessUrl"] = successURL
	}
	if failureURL != "" {
		params["FailureUrl"] = failureURL
	}
	var resp struct{}
	return c.call(ctx, "ConfirmBillingAgreement", params, &resp)
}

// ValidateBillingAgreement implements AmazonGateway.ValidateBillingAgreement
func (c *Client) ValidateBillingAgreement(ctx context.Context, agreementID string) (*ports.AgreementValidation, error) {
	var resp validateBillingAgreementResponse
	err := c.call(ctx, "ValidateBillingAgreement", map[string]string{
		"AmazonBillingAgreementId": agreementID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &ports.AgreementValidation{
		Success:       resp.Result.ValidationResult == "Success",
		FailureReason: resp.Result.FailureReasonCode,
	}, nil
}

// GetBillingAgreementDetails implements AmazonGateway.GetBillingAgreementDetails
func (c *Client) GetBillingAgreementDetails(ctx context.Context, agreementID string) (*ports.BillingAgreementDetails, error) {
	var resp getBillingAgreementDetailsResponse
	err := c.call(ctx, "GetBillingAgreementDetails", map[string]string{
		"AmazonBillingAgreementId": agreementID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Result.BillingAgreementDetails.toPort()
}

// AuthorizeOnBillingAgreement implements AmazonGateway.AuthorizeOnBillingAgreement
func (c *Client) AuthorizeOnBillingAgreement(ctx context.Context, req *ports.AuthorizeOnAgreementRequest) (*ports.AuthorizationDetails, error) {
	params := map[string]string{
		"AmazonBillingAgreementId":         req.AgreementID,
		"AuthorizationReferenceId":         req.AuthorizationReferenceID,
		"AuthorizationAmount.Amount":       req.Amount.StringFixed(2),
		"AuthorizationAmount.CurrencyCode": req.Currency,
		"TransactionTimeout":               strconv.Itoa(req.TransactionTimeout),
	}
	if req.CaptureNow {
		params["CaptureNow"] = "true"
	}
	if req.SellerAuthorizationNote != "" {
		params["SellerAuthorizationNote"] = req.SellerAuthorizationNote
	}
	if req.SellerOrderID != "" {
		params["SellerOrderAttributes.SellerOrderId"] = req.SellerOrderID
	}
	if req.StoreName != "" {
		params["SellerOrderAttributes.StoreName"] = req.StoreName
	}

	var resp authorizeOnBillingAgreementResponse
	if err := c.call(ctx, "AuthorizeOnBillingAgreement", params, &resp); err != nil {
		return nil, err
	}
	return resp.Result.AuthorizationDetails.toPort()
}

// CloseBillingAgreement implements AmazonGateway.CloseBillingAgreement
func (c *Client) CloseBillingAgreement(ctx context.Context, agreementID, reason string) error {
	var resp struct{}
	return c.call(ctx, "CloseBillingAgreement", map[string]string{
		"AmazonBillingAgreementId": agreementID,
		"ClosureReason":            truncateReason(reason),
	}, &resp)
}

// call signs and posts one API action and decodes the XML response envelope
func (c *Client) call(ctx context.Context, action string, params map[string]string, response interface{}) error {
	all := map[string]string{
		"AWSAccessKeyId":   c.config.AccessKeyID,
		"Action":           action,
		"SellerId":         c.config.MerchantID,
		"SignatureMethod":  "HmacSHA256",
		"SignatureVersion": "2",
		"Timestamp":        timeutil.Now().Format(time.RFC3339),
		"Version":          apiVersion,
	}
	for k, v := range params {
		all[k] = v
	}
	all["Signature"] = CalculateSignature(c.config.SecretKey, c.config.Host(), c.config.Path(), all)

	form := url.Values{}
	for k, v := range all {
		form.Set(k, v)
	}

	endpoint := "https://" + c.config.Host() + c.config.Path()
	encoded := form.Encode()

	if c.logger != nil {
		c.logger.Debug("calling payment gateway",
			ports.String("action", action),
			ports.String("host", c.config.Host()),
		)
	}

	// Throttled and transiently failing calls are retried with backoff; the
	// reference ids make every mutating action idempotent at the provider.
	var lastErr error
	for attempt := 0; attempt < maxCallAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.WrapError(domain.ErrorCodeGatewayTimeout, "gateway call aborted", ctx.Err())
			case <-time.After(c.backoff.NextDelay(attempt - 1)):
			}
			if c.logger != nil {
				c.logger.Warn("retrying gateway call",
					ports.String("action", action),
					ports.Int("attempt", attempt+1))
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = domain.WrapError(domain.ErrorCodeGatewayError, "failed to reach payment gateway", err)
			continue
		}

		body, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if httpResp.StatusCode == http.StatusInternalServerError ||
			httpResp.StatusCode == http.StatusServiceUnavailable {
			lastErr = c.errorFromResponse(action, httpResp.StatusCode, body)
			continue
		}
		if httpResp.StatusCode >= 400 {
			return c.errorFromResponse(action, httpResp.StatusCode, body)
		}

		if err := xml.Unmarshal(body, response); err != nil {
			return domain.WrapError(domain.ErrorCodeGatewayError, "failed to decode gateway response", err)
		}
		return nil
	}
	return lastErr
}

// errorFromResponse maps the provider's error envelope to a domain error
func (c *Client) errorFromResponse(action string, statusCode int, body []byte) error {
	var er errorResponse
	if err := xml.Unmarshal(body, &er); err != nil || er.Error.Code == "" {
		return domain.NewDomainError(domain.ErrorCodeGatewayError,
			fmt.Sprintf("gateway returned HTTP %d for %s", statusCode, action))
	}

	if c.logger != nil {
		c.logger.Warn("gateway returned error response",
			ports.String("action", action),
			ports.String("code", er.Error.Code),
			ports.String("request_id", er.RequestID),
			ports.Int("status", statusCode),
		)
	}

	code := domain.ErrorCodeGatewayError
	switch er.Error.Code {
	case "TransactionAmountExceeded", "DuplicateReferenceId":
		code = domain.ErrorCodeGatewayRejected
	case "RequestThrottled", "ServiceUnavailable":
		code = domain.ErrorCodeGatewayTimeout
	}
	return domain.NewDomainError(code, er.Error.Message).
		WithDetail(domain.DetailGatewayCode, er.Error.Code)
}

func truncateReason(reason string) string {
	if len(reason) > maxClosureReasonLength {
		return reason[:maxClosureReasonLength]
	}
	return reason
}
