package payment

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// Handler exposes the interactive payment endpoints consumed by the shop
// frontend and backend
type Handler struct {
	service ports.PaymentService
	logger  ports.Logger
	cfg     Config
}

// Config carries the redirect targets for the confirmation return flow
type Config struct {
	// SuccessRedirectURL receives the buyer after a successful SCA return
	SuccessRedirectURL string
	// FailureRedirectURL receives the buyer after a failed or abandoned SCA
	// return; the error code is appended as a query parameter
	FailureRedirectURL string
}

// NewHandler creates a new payment handler
func NewHandler(service ports.PaymentService, logger ports.Logger, cfg Config) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		cfg:     cfg,
	}
}

// ConfirmOrderRequest is the body of POST /api/v1/confirm-order
type ConfirmOrderRequest struct {
	OrderID          string          `json:"order_id"`
	InvoiceID        string          `json:"invoice_id"`
	OrderReferenceID string          `json:"order_reference_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	SuccessURL       string          `json:"success_url"`
	FailureURL       string          `json:"failure_url"`
}

// ConfirmOrder handles POST /api/v1/confirm-order
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	var req ConfirmOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.OrderReferenceID == "" {
		h.respondError(w, domain.ErrValidationMissingField.WithDetail("fields", "order_id, order_reference_id"))
		return
	}

	err := h.service.ConfirmOrder(r.Context(), ports.ServiceConfirmOrderRequest{
		OrderID:          req.OrderID,
		InvoiceID:        req.InvoiceID,
		OrderReferenceID: req.OrderReferenceID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		SuccessURL:       req.SuccessURL,
		FailureURL:       req.FailureURL,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{"success": true})
}

// OrderActionRequest is the body of the authorize and capture endpoints
type OrderActionRequest struct {
	OrderID string `json:"order_id"`
}

// Authorize handles POST /api/v1/authorize
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req OrderActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.OrderID == "" {
		h.respondError(w, domain.ErrValidationMissingField.WithDetail("field", "order_id"))
		return
	}

	if err := h.service.AuthorizePayment(r.Context(), req.OrderID); err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Capture handles POST /api/v1/capture
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	var req OrderActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.OrderID == "" {
		h.respondError(w, domain.ErrValidationMissingField.WithDetail("field", "order_id"))
		return
	}

	if err := h.service.CapturePayment(r.Context(), req.OrderID); err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{"success": true})
}

// RefundRequest is the body of POST /api/v1/refund
type RefundRequest struct {
	TransactionID string           `json:"transaction_id"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Reason        string           `json:"reason,omitempty"`
}

// Refund handles POST /api/v1/refund. The refund usually completes
// asynchronously; the response carries the pending ledger transaction.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TransactionID == "" {
		h.respondError(w, domain.ErrValidationMissingField.WithDetail("field", "transaction_id"))
		return
	}

	txn, err := h.service.RefundPayment(r.Context(), ports.ServiceRefundRequest{
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Reason:        req.Reason,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"transaction": map[string]interface{}{
			"id":       txn.ID,
			"status":   string(txn.Status),
			"amount":   txn.Amount.String(),
			"currency": txn.Currency,
		},
	})
}

// GetOrderState handles GET /api/v1/order-state?order_id=
func (h *Handler) GetOrderState(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		h.respondError(w, domain.ErrValidationMissingField.WithDetail("field", "order_id"))
		return
	}

	state, err := h.service.GetOrderState(r.Context(), orderID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{
		"order_id":           state.OrderID,
		"order_reference_id": state.OrderReferenceID,
		"reference_set":      state.ReferenceSet,
		"confirmed":          state.Confirmed,
		"authorized":         state.Authorized,
		"captured":           state.Captured,
		"reconfirm_required": state.ReconfirmRequired,
		"authorization_id":   state.AuthorizationID,
		"capture_id":         state.CaptureID,
		"amount":             state.Amount.String(),
		"currency":           state.Currency,
	})
}

// GetOrderHistory handles GET /api/v1/order-history?order_id=
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		h.respondError(w, domain.ErrValidationMissingField.WithDetail("field", "order_id"))
		return
	}

	entries, err := h.service.ListOrderHistory(r.Context(), orderID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	history := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		history = append(history, map[string]interface{}{
			"message":    entry.Message,
			"created_at": entry.CreatedAt,
		})
	}
	h.respond(w, http.StatusOK, map[string]interface{}{
		"order_id": orderID,
		"history":  history,
	})
}

// frontendErrorCodes is the closed set of widget error codes the frontend may
// report. Anything else is dropped so the endpoint cannot be used to spam the
// order history.
var frontendErrorCodes = map[string]bool{
	"AddressNotModifiable":       true,
	"BuyerNotAssociated":         true,
	"BuyerSessionExpired":        true,
	"InvalidAccountStatus":       true,
	"InvalidOrderReferenceId":    true,
	"InvalidParameterValue":      true,
	"InvalidSellerId":            true,
	"MissingParameter":           true,
	"PaymentMethodNotModifiable": true,
	"StaleOrderReference":        true,
	"UnknownError":               true,
}

// FrontendErrorRequest is the body of POST /api/v1/log-frontend-error
type FrontendErrorRequest struct {
	OrderID string `json:"order_id"`
	Code    string `json:"code"`
}

// LogFrontendError handles POST /api/v1/log-frontend-error. The payment
// widget reports its own errors here; they go to the server log so widget
// misconfigurations show up without access to the buyer's browser.
func (h *Handler) LogFrontendError(w http.ResponseWriter, r *http.Request) {
	var req FrontendErrorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !frontendErrorCodes[req.Code] {
		h.respondError(w, domain.ErrValidationFailed.WithDetail("field", "code"))
		return
	}

	h.logger.Warn("payment widget reported an error",
		ports.String("order_id", req.OrderID),
		ports.String("code", req.Code))
	h.respond(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ConfirmationReturn handles GET /return/confirmation. The provider redirects
// the buyer here after strong customer authentication; the order is carried
// in the hash parameter.
func (h *Handler) ConfirmationReturn(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	orderID := query.Get("hash")
	authStatus := query.Get("AuthenticationStatus")

	if orderID == "" {
		http.Error(w, "missing hash", http.StatusBadRequest)
		return
	}

	h.logger.Info("confirmation return received",
		ports.String("order_id", orderID),
		ports.String("authentication_status", authStatus))

	if authStatus != "Success" {
		code := query.Get("ErrorCode")
		if code == "" {
			code = "AuthenticationFailed"
		}
		h.redirect(w, r, h.cfg.FailureRedirectURL, orderID, code)
		return
	}

	if err := h.service.AuthorizePayment(r.Context(), orderID); err != nil {
		h.logger.Error("authorization after confirmation return failed",
			ports.String("order_id", orderID),
			ports.Err(err))
		h.redirect(w, r, h.cfg.FailureRedirectURL, orderID, string(domain.GetErrorCode(err)))
		return
	}

	h.redirect(w, r, h.cfg.SuccessRedirectURL, orderID, "")
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, target, orderID, errorCode string) {
	u, err := url.Parse(target)
	if err != nil || target == "" {
		http.Error(w, "redirect target not configured", http.StatusInternalServerError)
		return
	}
	q := u.Query()
	q.Set("hash", orderID)
	if errorCode != "" {
		q.Set("error", errorCode)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		h.respond(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"success": false,
			"error":   "only POST is allowed",
		})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondError(w, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid request body", err))
		return false
	}
	return true
}

// respondError maps a domain error to an HTTP status and a JSON body. Details
// pass through so the frontend sees its UI hints (re_render_wallet,
// order_cancelled); internal errors stay generic.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := domain.GetErrorCode(err)
	switch {
	case domain.IsNotFoundError(err):
		status = http.StatusNotFound
	case code == domain.ErrorCodeValidationFailed || code == domain.ErrorCodeValidationMissingField:
		status = http.StatusBadRequest
	case code == domain.ErrorCodeTxnInvalidState ||
		code == domain.ErrorCodeTxnNotAuthorized ||
		code == domain.ErrorCodeTxnNotCaptured:
		status = http.StatusConflict
	case domain.IsGatewayError(err) || code == domain.ErrorCodeRefundFailed:
		status = http.StatusUnprocessableEntity
	}

	body := map[string]interface{}{
		"success": false,
		"code":    string(code),
	}
	if derr := domain.AsDomainError(err); derr != nil && status != http.StatusInternalServerError {
		body["error"] = derr.Message
		if len(derr.Details) > 0 {
			body["details"] = derr.Details
		}
	} else {
		body["error"] = "request failed"
		h.logger.Error("request failed", ports.Err(err))
	}
	h.respond(w, status, body)
}

func (h *Handler) respond(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encoding response failed", ports.Err(err))
	}
}
