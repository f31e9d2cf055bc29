package cron

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
	"github.com/kevin07696/amazonpay-service/internal/services/refund"
	"github.com/kevin07696/amazonpay-service/pkg/timeutil"
)

// RefundSweeper runs one reconciliation pass over the open refunds
type RefundSweeper interface {
	ProcessOpenRefunds(ctx context.Context) (*refund.SweepResult, error)
}

// Handler exposes the scheduler-triggered batch entry points. Per-item
// failures are counted and logged by the services; the handler only reports
// the batch totals.
type Handler struct {
	subscriptions ports.SubscriptionService
	refunds       RefundSweeper
	logger        ports.Logger
	cronSecret    string
}

// NewHandler creates a new cron handler
func NewHandler(
	subscriptions ports.SubscriptionService,
	refunds RefundSweeper,
	logger ports.Logger,
	cronSecret string,
) *Handler {
	return &Handler{
		subscriptions: subscriptions,
		refunds:       refunds,
		logger:        logger,
		cronSecret:    cronSecret,
	}
}

// ProcessUnpaidInvoices handles POST /cron/process-unpaid-invoices
func (h *Handler) ProcessUnpaidInvoices(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	result, err := h.subscriptions.ProcessUnpaidInvoices(r.Context())
	if err != nil {
		h.logger.Error("billing run failed", ports.Err(err))
		h.respond(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "billing run failed",
		})
		return
	}

	status := http.StatusOK
	if result.Failed > 0 {
		// 206 signals the scheduler that some invoices need another pass
		status = http.StatusPartialContent
	}
	h.respond(w, status, map[string]interface{}{
		"success":      result.Failed == 0,
		"processed":    result.Processed,
		"succeeded":    result.Succeeded,
		"failed":       result.Failed,
		"processed_at": timeutil.Now().Format(time.RFC3339),
	})
}

// ProcessOpenRefunds handles POST /cron/process-open-refunds
func (h *Handler) ProcessOpenRefunds(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	result, err := h.refunds.ProcessOpenRefunds(r.Context())
	if err != nil {
		h.logger.Error("refund sweep failed", ports.Err(err))
		h.respond(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "refund sweep failed",
		})
		return
	}

	status := http.StatusOK
	if result.Failed > 0 {
		status = http.StatusPartialContent
	}
	h.respond(w, status, map[string]interface{}{
		"success":       result.Failed == 0,
		"checked":       result.Checked,
		"finalized":     result.Finalized,
		"still_pending": result.StillPending,
		"failed":        result.Failed,
		"processed_at":  timeutil.Now().Format(time.RFC3339),
	})
}

// HealthCheck handles GET /cron/health for the scheduler's liveness probe
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   timeutil.Now().Format(time.RFC3339),
	})
}

// authorize rejects requests that do not carry the shared cron secret.
// Accepted carriers: X-Cron-Secret header, Bearer token, or (logged as
// insecure, for local use) a query parameter.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		h.respond(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"success": false,
			"error":   "only POST is allowed",
		})
		return false
	}

	if secret := r.Header.Get("X-Cron-Secret"); secret != "" && secret == h.cronSecret {
		return true
	}
	if r.Header.Get("Authorization") == "Bearer "+h.cronSecret {
		return true
	}
	if secret := r.URL.Query().Get("secret"); secret != "" && secret == h.cronSecret {
		h.logger.Warn("cron request authenticated via query parameter",
			ports.String("remote_addr", r.RemoteAddr))
		return true
	}

	h.logger.Warn("unauthorized cron request",
		ports.String("remote_addr", r.RemoteAddr),
		ports.String("path", r.URL.Path))
	h.respond(w, http.StatusUnauthorized, map[string]interface{}{
		"success": false,
		"error":   "unauthorized",
	})
	return false
}

func (h *Handler) respond(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encoding cron response failed", ports.Err(err))
	}
}
