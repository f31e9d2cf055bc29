package admin

import (
	"encoding/json"
	"net/http"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
)

// Handler exposes the billing agreement admin surface. Every endpoint is
// gated by a static API key; the shop backend is the only intended caller.
type Handler struct {
	subscriptions ports.SubscriptionService
	logger        ports.Logger
	apiKey        string
}

// NewHandler creates a new admin handler
func NewHandler(subscriptions ports.SubscriptionService, logger ports.Logger, apiKey string) *Handler {
	return &Handler{
		subscriptions: subscriptions,
		logger:        logger,
		apiKey:        apiKey,
	}
}

// ListAgreements handles GET /admin/agreements?active=true
func (h *Handler) ListAgreements(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, http.MethodGet) {
		return
	}

	filter := ports.ListAgreementsFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}
	agreements, err := h.subscriptions.ListAgreements(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}

	list := make([]map[string]interface{}, 0, len(agreements))
	for _, agreement := range agreements {
		list = append(list, agreementBody(agreement))
	}
	h.respond(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"agreements": list,
	})
}

// GetAgreement handles GET /admin/agreement?agreement_id=
func (h *Handler) GetAgreement(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, http.MethodGet) {
		return
	}

	agreementID := r.URL.Query().Get("agreement_id")
	if agreementID == "" {
		h.respondError(w, domain.ErrValidationMissingField.WithDetail("field", "agreement_id"))
		return
	}

	agreement, err := h.subscriptions.GetAgreement(r.Context(), agreementID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"agreement": agreementBody(agreement),
	})
}

// AgreementActionRequest is the body of the cancel, suspend and resume
// endpoints
type AgreementActionRequest struct {
	AgreementID string `json:"agreement_id"`
	Reason      string `json:"reason,omitempty"`
}

// CancelAgreement handles POST /admin/agreement/cancel
func (h *Handler) CancelAgreement(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	if err := h.subscriptions.CancelAgreement(r.Context(), req.AgreementID, req.Reason); err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{"success": true})
}

// SuspendAgreement handles POST /admin/agreement/suspend
func (h *Handler) SuspendAgreement(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	if err := h.subscriptions.SuspendAgreement(r.Context(), req.AgreementID); err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ResumeAgreement handles POST /admin/agreement/resume
func (h *Handler) ResumeAgreement(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	if err := h.subscriptions.ResumeAgreement(r.Context(), req.AgreementID); err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{"success": true})
}

func agreementBody(agreement *domain.BillingAgreement) map[string]interface{} {
	return map[string]interface{}{
		"agreement_id":      agreement.AgreementID,
		"global_process_id": agreement.GlobalProcessID,
		"active":            agreement.Active,
		"suspended":         agreement.Suspended,
		"customer":          json.RawMessage(agreement.Customer),
		"created_at":        agreement.CreatedAt,
		"updated_at":        agreement.UpdatedAt,
	}
}

func (h *Handler) decodeAction(w http.ResponseWriter, r *http.Request) (*AgreementActionRequest, bool) {
	if !h.authorize(w, r, http.MethodPost) {
		return nil, false
	}
	var req AgreementActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid request body", err))
		return nil, false
	}
	if req.AgreementID == "" {
		h.respondError(w, domain.ErrValidationMissingField.WithDetail("field", "agreement_id"))
		return nil, false
	}
	return &req, true
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		h.respond(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"success": false,
			"error":   "method not allowed",
		})
		return false
	}
	if h.apiKey == "" || r.Header.Get("X-API-Key") != h.apiKey {
		h.logger.Warn("unauthorized admin request",
			ports.String("remote_addr", r.RemoteAddr),
			ports.String("path", r.URL.Path))
		h.respond(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"error":   "unauthorized",
		})
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := domain.GetErrorCode(err)
	switch {
	case domain.IsNotFoundError(err):
		status = http.StatusNotFound
	case code == domain.ErrorCodeValidationFailed || code == domain.ErrorCodeValidationMissingField:
		status = http.StatusBadRequest
	}

	body := map[string]interface{}{
		"success": false,
		"code":    string(code),
	}
	if derr := domain.AsDomainError(err); derr != nil && status != http.StatusInternalServerError {
		body["error"] = derr.Message
	} else {
		body["error"] = "request failed"
		h.logger.Error("admin request failed", ports.Err(err))
	}
	h.respond(w, status, body)
}

func (h *Handler) respond(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encoding admin response failed", ports.Err(err))
	}
}
