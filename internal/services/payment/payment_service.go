package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
	"github.com/kevin07696/amazonpay-service/pkg/observability"
)

// Config carries the seller-facing attributes stamped onto provider objects
type Config struct {
	// StoreName appears in the buyer's payment overview
	StoreName string

	// SellerNoteTemplate formats the note shown to the buyer. It receives
	// the store name and the order id, in that order.
	SellerNoteTemplate string
}

func (c Config) sellerNote(orderID string) string {
	template := c.SellerNoteTemplate
	if template == "" {
		template = "%s - order %s"
	}
	return fmt.Sprintf(template, c.StoreName, orderID)
}

// Service implements ports.PaymentService
type Service struct {
	db      ports.DBPort
	states  ports.OrderStateRepository
	ledger  ports.LedgerRepository
	refunds ports.RefundRepository
	gateway ports.AmazonGateway
	logger  ports.Logger
	cfg     Config
}

// NewService creates a new payment service
func NewService(
	db ports.DBPort,
	states ports.OrderStateRepository,
	ledger ports.LedgerRepository,
	refunds ports.RefundRepository,
	gateway ports.AmazonGateway,
	logger ports.Logger,
	cfg Config,
) *Service {
	return &Service{
		db:      db,
		states:  states,
		ledger:  ledger,
		refunds: refunds,
		gateway: gateway,
		logger:  logger,
		cfg:     cfg,
	}
}

// ConfirmOrder sets the order attributes on the provider order reference and
// confirms it. Constraints reported by the provider abort before confirmation
// and surface as typed errors carrying the re-render hint for the wallet.
func (s *Service) ConfirmOrder(ctx context.Context, req ports.ServiceConfirmOrderRequest) error {
	state, err := s.states.GetByOrderID(ctx, nil, req.OrderID)
	switch {
	case errors.Is(err, domain.ErrNoRows):
		state = &domain.OrderPaymentState{
			OrderID:          req.OrderID,
			InvoiceID:        req.InvoiceID,
			OrderReferenceID: req.OrderReferenceID,
			Amount:           req.Amount,
			Currency:         req.Currency,
		}
		err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			return s.states.Create(ctx, tx, state)
		})
		if err != nil {
			return domain.WrapError(domain.ErrorCodeDatabaseError, "create order state", err)
		}
	case err != nil:
		return domain.WrapError(domain.ErrorCodeDatabaseError, "load order state", err)
	}

	if state.Confirmed && !state.ReconfirmRequired {
		s.logger.Info("order already confirmed",
			ports.String("order_id", state.OrderID),
			ports.String("order_reference_id", state.OrderReferenceID))
		return nil
	}

	// The buyer may have restarted the wallet widget, producing a fresh
	// order reference. Adopt it and start the reference setup over.
	if req.OrderReferenceID != "" && req.OrderReferenceID != state.OrderReferenceID {
		state.OrderReferenceID = req.OrderReferenceID
		state.ReferenceSet = false
	}
	if state.OrderReferenceID == "" {
		return domain.ErrValidationMissingField.WithDetail("field", "order_reference_id")
	}

	details, err := s.gateway.SetOrderReferenceDetails(ctx, &ports.SetOrderDetailsRequest{
		OrderReferenceID: state.OrderReferenceID,
		Amount:           state.Amount,
		Currency:         state.Currency,
		SellerOrderID:    state.OrderID,
		SellerNote:       s.cfg.sellerNote(state.OrderID),
		StoreName:        s.cfg.StoreName,
	})
	if err != nil {
		s.appendHistory(ctx, state.OrderID, fmt.Sprintf("setting order reference details failed: %v", err))
		return err
	}
	if len(details.Constraints) > 0 {
		constraintErr := details.Constraints[0].DomainError()
		s.appendHistory(ctx, state.OrderID,
			fmt.Sprintf("order reference %s has constraint %s", state.OrderReferenceID, details.Constraints[0]))
		return constraintErr
	}

	state.ReferenceSet = true
	if err := s.updateState(ctx, state, fmt.Sprintf("order reference %s details set", state.OrderReferenceID)); err != nil {
		return err
	}

	if err := s.gateway.ConfirmOrderReference(ctx, state.OrderReferenceID, req.SuccessURL, req.FailureURL); err != nil {
		s.appendHistory(ctx, state.OrderID, fmt.Sprintf("confirming order reference failed: %v", err))
		return err
	}

	state.Confirmed = true
	state.ReconfirmRequired = false
	if err := s.updateState(ctx, state, fmt.Sprintf("order reference %s confirmed", state.OrderReferenceID)); err != nil {
		return err
	}

	observability.RecordPaymentOperation("confirm", "success")
	s.logger.Info("order confirmed",
		ports.String("order_id", state.OrderID),
		ports.String("order_reference_id", state.OrderReferenceID))
	return nil
}

// AuthorizePayment reserves the full order amount on the confirmed order
// reference. The attempt counter is persisted before the gateway call so a
// crash between send and response never reuses a reference id.
func (s *Service) AuthorizePayment(ctx context.Context, orderID string) error {
	state, err := s.getState(ctx, orderID)
	if err != nil {
		return err
	}

	if state.Authorized {
		s.logger.Info("payment already authorized",
			ports.String("order_id", orderID),
			ports.String("authorization_id", state.AuthorizationID))
		return nil
	}
	if !state.Confirmed {
		return domain.NewDomainError(domain.ErrorCodeTxnInvalidState, "order reference is not confirmed").
			WithDetail("order_id", orderID)
	}
	if state.ReconfirmRequired {
		return domain.NewDomainError(domain.ErrorCodeTxnInvalidState, "order must be re-confirmed with a new payment method").
			WithDetail("order_id", orderID).
			WithDetail(domain.DetailReRenderWallet, true)
	}

	reference := state.NextAuthorizationReference()
	state.AuthorizationAttempts++
	if err := s.updateState(ctx, state, fmt.Sprintf("requesting authorization %s", reference)); err != nil {
		return err
	}

	details, err := s.gateway.Authorize(ctx, &ports.AuthorizeRequest{
		OrderReferenceID:         state.OrderReferenceID,
		AuthorizationReferenceID: reference,
		Amount:                   state.Amount,
		Currency:                 state.Currency,
		SellerAuthorizationNote:  s.cfg.sellerNote(state.OrderID),
		TransactionTimeout:       0,
	})
	if err != nil {
		s.appendHistory(ctx, state.OrderID, fmt.Sprintf("authorization request failed: %v", err))
		return err
	}

	switch details.State {
	case domain.StateOpen:
		state.Authorized = true
		state.AuthorizationID = details.AuthorizationID
		if err := s.updateState(ctx, state, fmt.Sprintf("authorization %s open", details.AuthorizationID)); err != nil {
			return err
		}
		observability.RecordPaymentOperation("authorize", "success")
		s.logger.Info("payment authorized",
			ports.String("order_id", orderID),
			ports.String("authorization_id", details.AuthorizationID))
		return nil

	case domain.StateDeclined:
		return s.handleAuthorizationDecline(ctx, state, details)

	default:
		s.appendHistory(ctx, state.OrderID,
			fmt.Sprintf("authorization ended in unexpected state %s (%s)", details.State, details.ReasonCode))
		return domain.NewDomainError(domain.ErrorCodeGatewayError,
			fmt.Sprintf("authorization ended in unexpected state %s", details.State)).
			WithDetail(domain.DetailReasonCode, details.ReasonCode.String())
	}
}

// handleAuthorizationDecline maps the provider's decline reason onto the order
// state. A soft decline keeps the order alive for another payment method; a
// timeout invalidates the order reference entirely.
func (s *Service) handleAuthorizationDecline(ctx context.Context, state *domain.OrderPaymentState, details *ports.AuthorizationDetails) error {
	reasonErr := details.ReasonCode.DomainError()

	observability.RecordPaymentOperation("authorize", "declined")
	observability.RecordAuthorizationDecline(details.ReasonCode.String())
	s.logger.Warn("authorization declined",
		ports.String("order_id", state.OrderID),
		ports.String("reason_code", details.ReasonCode.String()))

	switch details.ReasonCode {
	case domain.ReasonInvalidPaymentMethod, domain.ReasonPaymentMethodNotAllowed:
		// Recoverable: the buyer picks another payment method in the wallet
		// and the order reference is confirmed again.
		state.ReconfirmRequired = true
		if err := s.updateState(ctx, state,
			fmt.Sprintf("authorization declined (%s), buyer must choose another payment method", details.ReasonCode)); err != nil {
			return err
		}
		return reasonErr

	case domain.ReasonTransactionTimedOut:
		// The decision window elapsed; the order reference is unusable and
		// must be cancelled so the buyer can start a fresh checkout.
		if err := s.gateway.CancelOrderReference(ctx, state.OrderReferenceID, "authorization timed out"); err != nil {
			s.logger.Warn("cancelling timed out order reference failed",
				ports.String("order_id", state.OrderID),
				ports.Err(err))
		}
		state.ReferenceSet = false
		state.Confirmed = false
		if err := s.updateState(ctx, state,
			fmt.Sprintf("authorization timed out, order reference %s cancelled", state.OrderReferenceID)); err != nil {
			return err
		}
		return reasonErr.WithDetail(domain.DetailOrderCancelled, true)

	default:
		// Terminal decline. Cancel the order reference if the provider still
		// has it open so no stale reservation lingers.
		if current, err := s.gateway.GetOrderReferenceDetails(ctx, state.OrderReferenceID); err == nil &&
			current.State == domain.AgreementStatusOpen {
			if err := s.gateway.CancelOrderReference(ctx, state.OrderReferenceID, "authorization declined"); err != nil {
				s.logger.Warn("cancelling declined order reference failed",
					ports.String("order_id", state.OrderID),
					ports.Err(err))
			}
		}
		s.appendHistory(ctx, state.OrderID, fmt.Sprintf("authorization declined (%s)", details.ReasonCode))
		return reasonErr
	}
}

// CapturePayment captures the full authorized amount. A confirmed but not yet
// authorized order is authorized first.
func (s *Service) CapturePayment(ctx context.Context, orderID string) error {
	state, err := s.getState(ctx, orderID)
	if err != nil {
		return err
	}

	if state.Captured {
		s.logger.Info("payment already captured",
			ports.String("order_id", orderID),
			ports.String("capture_id", state.CaptureID))
		return nil
	}

	if !state.Authorized {
		if err := s.AuthorizePayment(ctx, orderID); err != nil {
			return domain.WrapError(domain.ErrorCodeTxnNotAuthorized, "authorization before capture failed", err)
		}
		state, err = s.getState(ctx, orderID)
		if err != nil {
			return err
		}
	}

	reference := state.NextCaptureReference()
	state.CaptureAttempts++
	if err := s.updateState(ctx, state, fmt.Sprintf("requesting capture %s", reference)); err != nil {
		return err
	}

	details, err := s.gateway.Capture(ctx, &ports.CaptureRequest{
		AuthorizationID:    state.AuthorizationID,
		CaptureReferenceID: reference,
		Amount:             state.Amount,
		Currency:           state.Currency,
		SellerCaptureNote:  s.cfg.sellerNote(state.OrderID),
	})
	if err != nil {
		s.appendHistory(ctx, state.OrderID, fmt.Sprintf("capture request failed: %v", err))
		return err
	}

	switch details.State {
	case domain.StateCompleted:
		return s.finalizeCapture(ctx, state, details)

	case domain.StatePending:
		observability.RecordPaymentOperation("capture", "pending")
		s.appendHistory(ctx, state.OrderID,
			fmt.Sprintf("capture %s pending, awaiting provider notification", details.CaptureID))
		s.logger.Info("capture pending",
			ports.String("order_id", orderID),
			ports.String("capture_id", details.CaptureID))
		return nil

	case domain.StateDeclined:
		observability.RecordPaymentOperation("capture", "declined")
		s.appendHistory(ctx, state.OrderID, fmt.Sprintf("capture declined (%s)", details.ReasonCode))
		return details.ReasonCode.DomainError()

	default:
		s.appendHistory(ctx, state.OrderID,
			fmt.Sprintf("capture ended in unexpected state %s (%s)", details.State, details.ReasonCode))
		return domain.NewDomainError(domain.ErrorCodeGatewayError,
			fmt.Sprintf("capture ended in unexpected state %s", details.State)).
			WithDetail(domain.DetailReasonCode, details.ReasonCode.String())
	}
}

// HandleCaptureNotification settles a capture reported asynchronously. The
// order is resolved from the capture reference id, so the notification needs
// no prior local record of the capture.
func (s *Service) HandleCaptureNotification(ctx context.Context, details *ports.CaptureDetails) error {
	orderID, err := domain.OrderIDFromReference(details.CaptureReferenceID)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeIPNMalformedPayload, "capture reference id is not resolvable", err)
	}

	state, err := s.getState(ctx, orderID)
	if err != nil {
		return err
	}

	switch details.State {
	case domain.StateCompleted:
		return s.finalizeCapture(ctx, state, details)

	case domain.StateDeclined:
		s.appendHistory(ctx, state.OrderID,
			fmt.Sprintf("capture %s declined (%s)", details.CaptureID, details.ReasonCode))
		s.logger.Warn("capture declined via notification",
			ports.String("order_id", orderID),
			ports.String("capture_id", details.CaptureID),
			ports.String("reason_code", details.ReasonCode.String()))
		return nil

	default:
		s.logger.Debug("ignoring non-terminal capture notification",
			ports.String("order_id", orderID),
			ports.String("state", details.State.String()))
		return nil
	}
}

// HandleOrderReferenceNotification syncs a provider-side order reference state
// change into the local order record. The notification only names the
// reference, so the current state is fetched from the provider; definitive
// states update local flags, everything else just lands in the history.
func (s *Service) HandleOrderReferenceNotification(ctx context.Context, orderReferenceID string) error {
	state, err := s.states.GetByOrderReferenceID(ctx, nil, orderReferenceID)
	if errors.Is(err, domain.ErrNoRows) {
		return domain.ErrOrderNotFound.WithDetail("order_reference_id", orderReferenceID)
	}
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "resolve order reference", err)
	}

	details, err := s.gateway.GetOrderReferenceDetails(ctx, orderReferenceID)
	if err != nil {
		return err
	}

	switch details.State {
	case domain.AgreementStatusSuspended:
		// The payment method became invalid after confirmation; the buyer
		// must pick another one in the wallet.
		state.ReconfirmRequired = true
		return s.updateState(ctx, state,
			fmt.Sprintf("order reference %s suspended, buyer must choose another payment method", orderReferenceID))

	case domain.AgreementStatusCanceled:
		state.ReferenceSet = false
		state.Confirmed = false
		return s.updateState(ctx, state,
			fmt.Sprintf("order reference %s cancelled by the provider", orderReferenceID))

	case domain.AgreementStatusClosed:
		s.appendHistory(ctx, state.OrderID, fmt.Sprintf("order reference %s closed", orderReferenceID))
		return nil

	default:
		s.logger.Debug("ignoring order reference notification",
			ports.String("order_id", state.OrderID),
			ports.String("order_reference_id", orderReferenceID),
			ports.String("state", details.State.String()))
		return nil
	}
}

// finalizeCapture books the ledger entry for a completed capture exactly once.
// The synchronous capture path and the notification path race here; the
// conditional captured-flag update decides the winner and the loser no-ops.
// The ledger lookup catches redeliveries that arrive after the captured flag
// was reset by a re-confirmation.
func (s *Service) finalizeCapture(ctx context.Context, state *domain.OrderPaymentState, details *ports.CaptureDetails) error {
	var booked bool
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		exists, err := s.ledger.ExistsForGatewayTransaction(ctx, tx, details.CaptureID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		won, err := s.states.MarkCaptured(ctx, tx, state.OrderID, details.CaptureID)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		booked = true

		txn := domain.NewCaptureTransaction(state.OrderID, state.InvoiceID,
			details.CaptureID, details.CaptureReferenceID, details.Amount, details.Currency)
		if err := s.ledger.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("book capture transaction: %w", err)
		}
		return s.states.AppendHistory(ctx, tx, state.OrderID,
			fmt.Sprintf("capture %s completed over %s %s", details.CaptureID, details.Amount, details.Currency))
	})
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "finalize capture", err)
	}

	if !booked {
		s.logger.Debug("capture already booked",
			ports.String("order_id", state.OrderID),
			ports.String("capture_id", details.CaptureID))
		return nil
	}

	// Best effort: a failed close leaves the reference open at the provider
	// but the money has moved, so the capture still succeeds locally.
	if err := s.gateway.CloseOrderReference(ctx, state.OrderReferenceID, "order complete"); err != nil {
		s.logger.Warn("closing order reference failed",
			ports.String("order_id", state.OrderID),
			ports.String("order_reference_id", state.OrderReferenceID),
			ports.Err(err))
	}

	observability.RecordPaymentOperation("capture", "success")
	observability.RecordCapturedAmount(details.Currency, details.Amount.Shift(2).IntPart())
	s.logger.Info("payment captured",
		ports.String("order_id", state.OrderID),
		ports.String("capture_id", details.CaptureID))
	return nil
}

// RefundPayment books a pending refund ledger entry and submits the refund.
// The reference id submitted to the provider is the dash-stripped ledger entry
// id, so terminal notifications can resolve the entry without a lookup table.
func (s *Service) RefundPayment(ctx context.Context, req ports.ServiceRefundRequest) (*domain.Transaction, error) {
	original, err := s.ledger.GetByID(ctx, nil, req.TransactionID)
	if errors.Is(err, domain.ErrNoRows) {
		return nil, domain.ErrTxnNotFound.WithDetail("transaction_id", req.TransactionID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load transaction", err)
	}

	if original.Type != domain.TransactionTypeCapture ||
		original.Status != domain.TransactionStatusCompleted ||
		original.GatewayTransactionID == "" {
		return nil, domain.ErrTxnNotCaptured.WithDetail("transaction_id", req.TransactionID)
	}

	state, err := s.getState(ctx, original.OrderID)
	if err != nil {
		return nil, err
	}

	amount := original.Amount
	if req.Amount != nil {
		amount = *req.Amount
		if amount.GreaterThan(original.Amount) || !amount.IsPositive() {
			return nil, domain.ErrValidationFailed.
				WithDetail("field", "amount").
				WithDetail("captured_amount", original.Amount.String())
		}
	}

	refundTxn := domain.NewPendingRefundTransaction(state.OrderID, state.InvoiceID,
		"", amount, original.Currency, req.Reason)
	refundTxn.GatewayReferenceID = domain.RefundReferenceID(refundTxn.ID)

	state.RefundAttempts++
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.states.Update(ctx, tx, state); err != nil {
			return err
		}
		if err := s.ledger.Create(ctx, tx, refundTxn); err != nil {
			return err
		}
		return s.states.AppendHistory(ctx, tx, state.OrderID,
			fmt.Sprintf("requesting refund of %s %s for capture %s", amount, original.Currency, original.GatewayTransactionID))
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "book pending refund", err)
	}

	details, err := s.gateway.Refund(ctx, &ports.RefundRequest{
		CaptureID:         original.GatewayTransactionID,
		RefundReferenceID: refundTxn.GatewayReferenceID,
		Amount:            amount,
		Currency:          original.Currency,
		SellerRefundNote:  req.Reason,
	})
	if err != nil {
		// The provider never accepted the refund; close the pending entry so
		// the poller does not wait on it forever.
		if _, ferr := s.ledger.Finalize(ctx, nil, refundTxn.ID, domain.TransactionStatusError, "", err.Error()); ferr != nil {
			s.logger.Error("finalizing failed refund entry",
				ports.String("transaction_id", refundTxn.ID),
				ports.Err(ferr))
		}
		s.appendHistory(ctx, state.OrderID, fmt.Sprintf("refund request failed: %v", err))
		return nil, err
	}

	switch details.State {
	case domain.StatePending:
		err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			if err := s.refunds.Create(ctx, tx, &domain.OpenRefund{
				RefundID:      details.RefundID,
				TransactionID: refundTxn.ID,
				OrderID:       state.OrderID,
				Amount:        amount,
				Currency:      original.Currency,
				Reason:        req.Reason,
			}); err != nil {
				return err
			}
			return s.states.AppendHistory(ctx, tx, state.OrderID,
				fmt.Sprintf("refund %s accepted, awaiting provider decision", details.RefundID))
		})
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "record open refund", err)
		}
		s.logger.Info("refund pending",
			ports.String("order_id", state.OrderID),
			ports.String("refund_id", details.RefundID))
		return refundTxn, nil

	case domain.StateCompleted:
		if err := s.FinalizeRefund(ctx, details); err != nil {
			return nil, err
		}
		refundTxn.Status = domain.TransactionStatusCompleted
		refundTxn.GatewayTransactionID = details.RefundID
		return refundTxn, nil

	default:
		reason := details.ReasonCode.String()
		if _, ferr := s.ledger.Finalize(ctx, nil, refundTxn.ID, domain.TransactionStatusError, details.RefundID, reason); ferr != nil {
			s.logger.Error("finalizing declined refund entry",
				ports.String("transaction_id", refundTxn.ID),
				ports.Err(ferr))
		}
		s.appendHistory(ctx, state.OrderID,
			fmt.Sprintf("refund %s declined (%s)", details.RefundID, details.ReasonCode))
		return nil, domain.NewDomainError(domain.ErrorCodeRefundFailed, "refund was not accepted by the gateway").
			WithDetail(domain.DetailReasonCode, reason)
	}
}

// FinalizeRefund settles the pending ledger entry for a refund the provider
// decided. The entry is resolved from the refund reference id first, falling
// back to the open refund record for payloads without a parseable reference.
// Webhook and poller race here; the conditional ledger update keeps the
// settlement single-shot.
func (s *Service) FinalizeRefund(ctx context.Context, details *ports.RefundDetails) error {
	if !details.State.IsTerminal() {
		s.logger.Debug("ignoring non-terminal refund outcome",
			ports.String("refund_id", details.RefundID),
			ports.String("state", details.State.String()))
		return nil
	}

	txn, err := s.resolveRefundTransaction(ctx, details)
	if err != nil {
		return err
	}

	status := domain.TransactionStatusCompleted
	message := ""
	if details.State != domain.StateCompleted {
		status = domain.TransactionStatusError
		message = details.ReasonCode.String()
	}

	var settled bool
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		won, err := s.ledger.Finalize(ctx, tx, txn.ID, status, details.RefundID, message)
		if err != nil {
			return err
		}
		settled = won
		if won {
			if err := s.states.AppendHistory(ctx, tx, txn.OrderID,
				fmt.Sprintf("refund %s %s", details.RefundID, details.State)); err != nil {
				return err
			}
		}
		// Idempotent: the open refund row may already be gone
		return s.refunds.Delete(ctx, tx, details.RefundID)
	})
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "finalize refund", err)
	}

	if !settled {
		s.logger.Debug("refund already finalized",
			ports.String("refund_id", details.RefundID),
			ports.String("transaction_id", txn.ID))
		return nil
	}

	if status == domain.TransactionStatusCompleted {
		observability.RecordPaymentOperation("refund", "success")
		observability.RecordRefundedAmount(txn.Currency, txn.Amount.Shift(2).IntPart())
	} else {
		observability.RecordPaymentOperation("refund", "error")
	}
	s.logger.Info("refund finalized",
		ports.String("order_id", txn.OrderID),
		ports.String("refund_id", details.RefundID),
		ports.String("status", string(status)))
	return nil
}

func (s *Service) resolveRefundTransaction(ctx context.Context, details *ports.RefundDetails) (*domain.Transaction, error) {
	if id := domain.TransactionIDFromRefundReference(details.RefundReferenceID); id != details.RefundReferenceID {
		if _, err := uuid.Parse(id); err == nil {
			txn, err := s.ledger.GetByID(ctx, nil, id)
			if err == nil {
				return txn, nil
			}
			if !errors.Is(err, domain.ErrNoRows) {
				return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load refund transaction", err)
			}
		}
	}

	open, err := s.refunds.GetByRefundID(ctx, nil, details.RefundID)
	if errors.Is(err, domain.ErrNoRows) {
		return nil, domain.ErrTxnNotFound.WithDetail("refund_id", details.RefundID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load open refund", err)
	}

	txn, err := s.ledger.GetByID(ctx, nil, open.TransactionID)
	if errors.Is(err, domain.ErrNoRows) {
		return nil, domain.ErrTxnNotFound.WithDetail("transaction_id", open.TransactionID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load refund transaction", err)
	}
	return txn, nil
}

// GetOrderState returns the lifecycle record of an order
func (s *Service) GetOrderState(ctx context.Context, orderID string) (*domain.OrderPaymentState, error) {
	return s.getState(ctx, orderID)
}

// ListOrderHistory returns the audit trail of an order, oldest first
func (s *Service) ListOrderHistory(ctx context.Context, orderID string) ([]*domain.HistoryEntry, error) {
	entries, err := s.states.ListHistory(ctx, nil, orderID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list order history", err)
	}
	return entries, nil
}

func (s *Service) getState(ctx context.Context, orderID string) (*domain.OrderPaymentState, error) {
	state, err := s.states.GetByOrderID(ctx, nil, orderID)
	if errors.Is(err, domain.ErrNoRows) {
		return nil, domain.ErrOrderNotFound.WithDetail("order_id", orderID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load order state", err)
	}
	return state, nil
}

func (s *Service) updateState(ctx context.Context, state *domain.OrderPaymentState, history string) error {
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.states.Update(ctx, tx, state); err != nil {
			return err
		}
		return s.states.AppendHistory(ctx, tx, state.OrderID, history)
	})
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "update order state", err)
	}
	return nil
}

// appendHistory records an audit entry outside a surrounding transaction.
// History writes never fail the operation they describe.
func (s *Service) appendHistory(ctx context.Context, orderID, message string) {
	if err := s.states.AppendHistory(ctx, nil, orderID, message); err != nil {
		s.logger.Error("appending order history failed",
			ports.String("order_id", orderID),
			ports.Err(err))
	}
}
