package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/kevin07696/amazonpay-service/internal/adapters/amazonpay"
	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
	"github.com/kevin07696/amazonpay-service/pkg/observability"
)

// maxPayloadBytes bounds the notification body; real envelopes are a few KB
const maxPayloadBytes = 1 << 20

// NotificationParser verifies and parses an inbound notification payload
type NotificationParser interface {
	Parse(ctx context.Context, payload []byte) (*amazonpay.Notification, error)
}

// Handler receives payment notifications from the provider. Notifications
// race with the synchronous payment flow and the refund poller; the services
// behind the handler make every finalize idempotent, so the handler only maps
// payloads to service calls and errors to status codes.
type Handler struct {
	parser   NotificationParser
	payments ports.PaymentService
	logger   ports.Logger
}

// NewHandler creates a new notification handler
func NewHandler(parser NotificationParser, payments ports.PaymentService, logger ports.Logger) *Handler {
	return &Handler{
		parser:   parser,
		payments: payments,
		logger:   logger,
	}
}

// HandleIPN handles POST /webhook/ipn. The provider retries on any non-2xx
// response, so only genuinely unprocessable payloads return 400 and transient
// failures return 500 to trigger a redelivery.
func (h *Handler) HandleIPN(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond(w, http.StatusMethodNotAllowed, map[string]interface{}{"error": "only POST is allowed"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		h.logger.Warn("reading notification body failed", ports.Err(err))
		respond(w, http.StatusBadRequest, map[string]interface{}{"error": "unreadable body"})
		return
	}

	notification, err := h.parser.Parse(r.Context(), payload)
	if err != nil {
		observability.RecordNotification("unknown", "rejected")
		h.logger.Warn("rejecting notification",
			ports.String("remote_addr", r.RemoteAddr),
			ports.Err(err))
		respond(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid notification"})
		return
	}

	if err := h.dispatch(r.Context(), notification); err != nil {
		status := http.StatusInternalServerError
		outcome := "error"
		if domain.GetErrorCode(err) == domain.ErrorCodeIPNMalformedPayload || domain.IsNotFoundError(err) {
			status = http.StatusBadRequest
			outcome = "rejected"
		}
		observability.RecordNotification(string(notification.Type), outcome)
		h.logger.Error("processing notification failed",
			ports.String("type", string(notification.Type)),
			ports.Err(err))
		respond(w, status, map[string]interface{}{"error": "notification not processed"})
		return
	}

	observability.RecordNotification(string(notification.Type), "processed")
	respond(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handler) dispatch(ctx context.Context, notification *amazonpay.Notification) error {
	switch notification.Type {
	case amazonpay.NotificationTypeCapture:
		return h.payments.HandleCaptureNotification(ctx, notification.Capture)

	case amazonpay.NotificationTypeRefund:
		return h.payments.FinalizeRefund(ctx, notification.Refund)

	case amazonpay.NotificationTypeAuthorization:
		// Authorization outcomes are consumed synchronously; the notification
		// is a duplicate and safe to drop.
		h.logger.Debug("ignoring authorization notification",
			ports.String("authorization_id", notification.Authorization.AuthorizationID))
		return nil

	case amazonpay.NotificationTypeOrderReference:
		return h.payments.HandleOrderReferenceNotification(ctx, notification.OrderReferenceID)

	case amazonpay.NotificationTypeBillingAgreement:
		h.logger.Debug("ignoring billing agreement notification",
			ports.String("agreement_id", notification.AgreementID))
		return nil

	default:
		return domain.NewDomainError(domain.ErrorCodeIPNMalformedPayload,
			"notification type has no dispatch target")
	}
}

func respond(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
