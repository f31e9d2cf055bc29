package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
	"github.com/kevin07696/amazonpay-service/pkg/observability"
	"github.com/shopspring/decimal"
)

// DefaultMaxCaptureAttempts is the failed-attempt budget per invoice before
// the billing agreement is cancelled
const DefaultMaxCaptureAttempts = 3

// Config carries the recurring billing policy
type Config struct {
	// StoreName appears in the buyer's payment overview
	StoreName string

	// SellerNoteTemplate formats the note shown to the buyer. It receives
	// the store name and the invoice id, in that order.
	SellerNoteTemplate string

	// MaxCaptureAttempts is the failed-attempt budget per invoice. Zero
	// falls back to DefaultMaxCaptureAttempts.
	MaxCaptureAttempts int

	// BillingBatchSize bounds one ProcessUnpaidInvoices pass. Zero uses the
	// repository default.
	BillingBatchSize int32
}

func (c Config) maxAttempts() int {
	if c.MaxCaptureAttempts <= 0 {
		return DefaultMaxCaptureAttempts
	}
	return c.MaxCaptureAttempts
}

func (c Config) sellerNote(invoiceID string) string {
	template := c.SellerNoteTemplate
	if template == "" {
		template = "%s - invoice %s"
	}
	return fmt.Sprintf(template, c.StoreName, invoiceID)
}

// Service implements ports.SubscriptionService
type Service struct {
	db         ports.DBPort
	agreements ports.AgreementRepository
	invoices   ports.InvoiceSource
	ledger     ports.LedgerRepository
	states     ports.OrderStateRepository
	gateway    ports.AmazonGateway
	logger     ports.Logger
	cfg        Config
}

// NewService creates a new subscription service
func NewService(
	db ports.DBPort,
	agreements ports.AgreementRepository,
	invoices ports.InvoiceSource,
	ledger ports.LedgerRepository,
	states ports.OrderStateRepository,
	gateway ports.AmazonGateway,
	logger ports.Logger,
	cfg Config,
) *Service {
	return &Service{
		db:         db,
		agreements: agreements,
		invoices:   invoices,
		ledger:     ledger,
		states:     states,
		gateway:    gateway,
		logger:     logger,
		cfg:        cfg,
	}
}

// ConfirmAgreement sets the seller attributes on the provider agreement,
// confirms it, validates the payment method and persists the agreement
// locally. A failed validation closes the provider agreement again so no
// half-open agreement lingers.
func (s *Service) ConfirmAgreement(ctx context.Context, req ports.ServiceConfirmAgreementRequest) error {
	if req.AgreementID == "" {
		return domain.ErrValidationMissingField.WithDetail("field", "agreement_id")
	}
	if req.GlobalProcessID == "" {
		return domain.ErrValidationMissingField.WithDetail("field", "global_process_id")
	}

	if existing, err := s.agreements.GetByAgreementID(ctx, nil, req.AgreementID); err == nil && existing.Active {
		s.logger.Info("billing agreement already confirmed",
			ports.String("agreement_id", req.AgreementID))
		return nil
	}

	if err := s.gateway.SetBillingAgreementDetails(ctx, req.AgreementID, s.cfg.sellerNote(req.GlobalProcessID)); err != nil {
		return err
	}
	if err := s.gateway.ConfirmBillingAgreement(ctx, req.AgreementID, req.SuccessURL, req.FailureURL); err != nil {
		return err
	}

	// The confirm call alone does not guarantee the agreement reached Open;
	// the provider may reject it with a constraint instead.
	confirmed, err := s.gateway.GetBillingAgreementDetails(ctx, req.AgreementID)
	if err != nil {
		return err
	}
	if confirmed.Status != domain.AgreementStatusOpen {
		if len(confirmed.Constraints) > 0 {
			return confirmed.Constraints[0].DomainError()
		}
		return domain.NewDomainError(domain.ErrorCodeGatewayConstraint, "billing agreement confirmation was rejected by the provider").
			WithDetail("agreement_status", confirmed.Status.String())
	}

	validation, err := s.gateway.ValidateBillingAgreement(ctx, req.AgreementID)
	if err != nil {
		return err
	}
	if !validation.Success {
		if err := s.gateway.CloseBillingAgreement(ctx, req.AgreementID, "payment method validation failed"); err != nil {
			s.logger.Warn("closing unvalidated billing agreement failed",
				ports.String("agreement_id", req.AgreementID),
				ports.Err(err))
		}
		return domain.ErrAgreementValidationFailed.
			WithDetail("failure_reason", validation.FailureReason)
	}

	customer := req.Customer
	if len(customer) == 0 {
		customer = []byte("{}")
	}
	agreement := &domain.BillingAgreement{
		AgreementID:     req.AgreementID,
		GlobalProcessID: req.GlobalProcessID,
		Customer:        customer,
		Active:          true,
	}
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.agreements.Create(ctx, tx, agreement)
	})
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "persist billing agreement", err)
	}

	s.logger.Info("billing agreement confirmed",
		ports.String("agreement_id", req.AgreementID),
		ports.String("global_process_id", req.GlobalProcessID))
	return nil
}

// ValidateAgreement asks the provider to validate the agreement's payment
// method without changing any local state
func (s *Service) ValidateAgreement(ctx context.Context, agreementID string) error {
	validation, err := s.gateway.ValidateBillingAgreement(ctx, agreementID)
	if err != nil {
		return err
	}
	if !validation.Success {
		return domain.ErrAgreementValidationFailed.
			WithDetail("failure_reason", validation.FailureReason)
	}
	return nil
}

// BillAgreementBalance charges the outstanding amount of one invoice against
// its subscription's billing agreement. The invoice is settled only when the
// provider reports a captured amount exactly equal to the outstanding amount
// in the invoice currency; anything else counts as a failed attempt, and an
// exhausted attempt budget cancels the agreement.
func (s *Service) BillAgreementBalance(ctx context.Context, invoiceID string) error {
	invoice, err := s.invoices.GetByID(ctx, nil, invoiceID)
	if errors.Is(err, domain.ErrNoRows) {
		return domain.ErrTxnNotFound.WithDetail("invoice_id", invoiceID)
	}
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "load invoice", err)
	}

	if invoice.Paid {
		s.logger.Info("invoice already paid", ports.String("invoice_id", invoiceID))
		return nil
	}
	if invoice.GlobalProcessID == "" {
		return domain.ErrValidationMissingField.WithDetail("field", "global_process_id")
	}

	agreement, err := s.agreements.GetByGlobalProcessID(ctx, nil, invoice.GlobalProcessID)
	if errors.Is(err, domain.ErrNoRows) {
		return domain.ErrAgreementNotFound.WithDetail("global_process_id", invoice.GlobalProcessID)
	}
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "load billing agreement", err)
	}
	if !agreement.Active {
		return domain.ErrAgreementNotFound.WithDetail("agreement_id", agreement.AgreementID)
	}
	if agreement.Suspended {
		return domain.WrapError(domain.ErrorCodeTxnInvalidState, "billing is suspended for this agreement", domain.ErrAgreementSuspended).
			WithDetail("agreement_id", agreement.AgreementID)
	}

	// The provider is the authority on whether the agreement can still be
	// charged. A definitively non-Open agreement skips the invoice without
	// burning an attempt; a failed lookup does not block billing.
	if remote, derr := s.gateway.GetBillingAgreementDetails(ctx, agreement.AgreementID); derr != nil {
		s.logger.Warn("billing agreement status lookup failed",
			ports.String("agreement_id", agreement.AgreementID),
			ports.Err(derr))
	} else if remote.Status != domain.AgreementStatusOpen {
		s.logger.Info("billing agreement not open at provider, skipping invoice",
			ports.String("agreement_id", agreement.AgreementID),
			ports.String("invoice_id", invoiceID),
			ports.String("agreement_status", remote.Status.String()))
		return nil
	}

	attempt, err := s.agreements.GetOrCreateTransaction(ctx, nil, agreement.AgreementID, invoice.ID)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "load billing attempt record", err)
	}
	if attempt.Completed {
		s.logger.Info("invoice already billed",
			ports.String("invoice_id", invoiceID),
			ports.String("agreement_id", agreement.AgreementID))
		return nil
	}
	if attempt.AttemptsExhausted(s.cfg.maxAttempts()) {
		s.CancelAgreement(ctx, agreement.AgreementID,
			fmt.Sprintf("maximum capture attempts reached for invoice %s", invoice.ID))
		return domain.ErrGatewayMaxCaptures.
			WithDetail("invoice_id", invoice.ID).
			WithDetail("agreement_id", agreement.AgreementID)
	}

	charge, err := s.chargeAgreement(ctx, agreement, invoice, attempt)
	if err != nil {
		observability.RecordAgreementBilling("error")
		s.registerFailedAttempt(ctx, agreement, invoice, fmt.Sprintf("charge request failed: %v", err))
		return err
	}

	attempt.AuthorizationID = charge.authorizationID
	attempt.ProviderTimestamp = charge.timestamp
	if raw, merr := json.Marshal(charge.raw); merr == nil {
		attempt.RawResponse = raw
	}

	if charge.state == domain.StateDeclined {
		if uerr := s.agreements.UpdateTransaction(ctx, nil, attempt); uerr != nil {
			s.logger.Error("recording declined billing attempt failed",
				ports.String("invoice_id", invoice.ID),
				ports.Err(uerr))
		}
		observability.RecordAgreementBilling("declined")
		s.registerFailedAttempt(ctx, agreement, invoice,
			fmt.Sprintf("charge declined (%s)", charge.reason))
		return charge.reason.DomainError()
	}

	// The invoice settles only when both the captured amount and its currency
	// match the invoice exactly. Anything else leaves the invoice open and
	// burns an attempt.
	if !charge.capturedAmount.Equal(invoice.AmountOutstanding) || charge.capturedCurrency != invoice.Currency {
		if uerr := s.agreements.UpdateTransaction(ctx, nil, attempt); uerr != nil {
			s.logger.Error("recording mismatched billing attempt failed",
				ports.String("invoice_id", invoice.ID),
				ports.Err(uerr))
		}
		observability.RecordAgreementBilling("amount_mismatch")
		s.registerFailedAttempt(ctx, agreement, invoice,
			fmt.Sprintf("captured %s %s, expected %s %s",
				charge.capturedAmount, charge.capturedCurrency,
				invoice.AmountOutstanding, invoice.Currency))
		return domain.NewDomainError(domain.ErrorCodeGatewayError, "captured amount does not match invoice amount").
			WithDetail("captured_amount", charge.capturedAmount.String()).
			WithDetail("captured_currency", charge.capturedCurrency).
			WithDetail("expected_amount", invoice.AmountOutstanding.String()).
			WithDetail("expected_currency", invoice.Currency).
			WithDetail(domain.DetailReasonCode, charge.reason.String())
	}

	captureID := charge.captureID

	txn := domain.NewCaptureTransaction(invoice.OrderID, invoice.ID, captureID, charge.reference,
		charge.capturedAmount, invoice.Currency)
	attempt.TransactionID = txn.ID

	var booked bool
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		won, err := s.agreements.MarkTransactionCompleted(ctx, tx, attempt)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		booked = true

		if err := s.ledger.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("book recurring capture: %w", err)
		}
		if err := s.invoices.MarkPaid(ctx, tx, invoice.ID); err != nil {
			return fmt.Errorf("mark invoice paid: %w", err)
		}
		return s.states.AppendHistory(ctx, tx, invoice.OrderID,
			fmt.Sprintf("invoice %s billed via agreement %s (capture %s)", invoice.ID, agreement.AgreementID, captureID))
	})
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "settle invoice", err)
	}

	if !booked {
		s.logger.Debug("invoice settlement already booked",
			ports.String("invoice_id", invoice.ID),
			ports.String("agreement_id", agreement.AgreementID))
		return nil
	}

	observability.RecordAgreementBilling("success")
	observability.RecordCapturedAmount(invoice.Currency, charge.capturedAmount.Shift(2).IntPart())
	s.logger.Info("invoice billed",
		ports.String("invoice_id", invoice.ID),
		ports.String("agreement_id", agreement.AgreementID),
		ports.String("capture_id", captureID),
		ports.String("amount", charge.capturedAmount.String()))
	return nil
}

// chargeOutcome normalizes a billing charge regardless of whether it came from
// a fresh authorization or from capturing the prior attempt's authorization
type chargeOutcome struct {
	reference        string
	authorizationID  string
	captureID        string
	state            domain.AuthorizationState
	reason           domain.ReasonCode
	capturedAmount   decimal.Decimal
	capturedCurrency string
	timestamp        time.Time
	raw              interface{}
}

// chargeAgreement charges the invoice's outstanding amount against the
// agreement. When a previous attempt left an authorization that is still open
// at the provider, that authorization is captured directly instead of
// requesting a new one.
func (s *Service) chargeAgreement(ctx context.Context, agreement *domain.BillingAgreement, invoice *domain.Invoice, attempt *domain.AgreementTransaction) (*chargeOutcome, error) {
	if attempt.AuthorizationID != "" {
		outcome, err := s.captureOpenAuthorization(ctx, invoice, attempt)
		if err != nil {
			return nil, err
		}
		if outcome != nil {
			return outcome, nil
		}
	}

	reference := domain.AuthorizationReferenceID(invoice.ID, attempt.CaptureAttempts+1)
	details, err := s.gateway.AuthorizeOnBillingAgreement(ctx, &ports.AuthorizeOnAgreementRequest{
		AgreementID:              agreement.AgreementID,
		AuthorizationReferenceID: reference,
		Amount:                   invoice.AmountOutstanding,
		Currency:                 invoice.Currency,
		SellerAuthorizationNote:  s.cfg.sellerNote(invoice.ID),
		SellerOrderID:            invoice.OrderID,
		StoreName:                s.cfg.StoreName,
		CaptureNow:               true,
		TransactionTimeout:       0,
	})
	if err != nil {
		return nil, err
	}

	captureID := details.AuthorizationID
	if len(details.CaptureIDs) > 0 {
		captureID = details.CaptureIDs[0]
	}
	return &chargeOutcome{
		reference:        reference,
		authorizationID:  details.AuthorizationID,
		captureID:        captureID,
		state:            details.State,
		reason:           details.ReasonCode,
		capturedAmount:   details.CapturedAmount,
		capturedCurrency: details.CapturedCurrency,
		timestamp:        details.Timestamp,
		raw:              details,
	}, nil
}

// captureOpenAuthorization captures the authorization left behind by the prior
// attempt if it is still open at the provider. A nil outcome means a fresh
// authorization is needed. A failed capture call propagates as-is: retrying
// with a new authorization could charge the buyer twice.
func (s *Service) captureOpenAuthorization(ctx context.Context, invoice *domain.Invoice, attempt *domain.AgreementTransaction) (*chargeOutcome, error) {
	auth, err := s.gateway.GetAuthorizationDetails(ctx, attempt.AuthorizationID)
	if err != nil {
		s.logger.Warn("prior authorization lookup failed, requesting a fresh one",
			ports.String("authorization_id", attempt.AuthorizationID),
			ports.String("invoice_id", invoice.ID),
			ports.Err(err))
		return nil, nil
	}
	if auth.State != domain.StateOpen {
		return nil, nil
	}

	reference := domain.CaptureReferenceID(invoice.ID, attempt.CaptureAttempts+1)
	capture, err := s.gateway.Capture(ctx, &ports.CaptureRequest{
		AuthorizationID:    attempt.AuthorizationID,
		CaptureReferenceID: reference,
		Amount:             invoice.AmountOutstanding,
		Currency:           invoice.Currency,
		SellerCaptureNote:  s.cfg.sellerNote(invoice.ID),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("captured still-open authorization from prior attempt",
		ports.String("invoice_id", invoice.ID),
		ports.String("authorization_id", attempt.AuthorizationID),
		ports.String("capture_id", capture.CaptureID))
	return &chargeOutcome{
		reference:        reference,
		authorizationID:  attempt.AuthorizationID,
		captureID:        capture.CaptureID,
		state:            capture.State,
		reason:           capture.ReasonCode,
		capturedAmount:   capture.Amount,
		capturedCurrency: capture.Currency,
		timestamp:        capture.Timestamp,
		raw:              capture,
	}, nil
}

// registerFailedAttempt burns one attempt and cancels the agreement once the
// budget is spent. Bookkeeping failures are logged, never propagated: the
// caller already has a more specific error to return.
func (s *Service) registerFailedAttempt(ctx context.Context, agreement *domain.BillingAgreement, invoice *domain.Invoice, reason string) {
	attempts, err := s.agreements.IncrementCaptureAttempts(ctx, nil, agreement.AgreementID, invoice.ID)
	if err != nil {
		s.logger.Error("incrementing capture attempts failed",
			ports.String("invoice_id", invoice.ID),
			ports.String("agreement_id", agreement.AgreementID),
			ports.Err(err))
		return
	}

	if err := s.states.AppendHistory(ctx, nil, invoice.OrderID,
		fmt.Sprintf("billing attempt %d for invoice %s failed: %s", attempts, invoice.ID, reason)); err != nil {
		s.logger.Error("appending billing history failed",
			ports.String("order_id", invoice.OrderID),
			ports.Err(err))
	}

	s.logger.Warn("billing attempt failed",
		ports.String("invoice_id", invoice.ID),
		ports.String("agreement_id", agreement.AgreementID),
		ports.Int("attempts", attempts),
		ports.String("reason", reason))

	if attempts >= s.cfg.maxAttempts() {
		s.CancelAgreement(ctx, agreement.AgreementID,
			fmt.Sprintf("maximum capture attempts reached for invoice %s", invoice.ID))
	}
}

// ProcessUnpaidInvoices bills every unpaid invoice routed to this gateway.
// A failing invoice never blocks the rest of the batch.
func (s *Service) ProcessUnpaidInvoices(ctx context.Context) (*ports.BillingRunResult, error) {
	unpaid, err := s.invoices.ListUnpaid(ctx, nil, s.cfg.BillingBatchSize)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list unpaid invoices", err)
	}

	result := &ports.BillingRunResult{}
	for _, invoice := range unpaid {
		result.Processed++
		if err := s.BillAgreementBalance(ctx, invoice.ID); err != nil {
			result.Failed++
			s.logger.Error("billing invoice failed",
				ports.String("invoice_id", invoice.ID),
				ports.Err(err))
			continue
		}
		result.Succeeded++
	}

	s.logger.Info("billing run finished",
		ports.Int("processed", result.Processed),
		ports.Int("succeeded", result.Succeeded),
		ports.Int("failed", result.Failed))
	return result, nil
}

// CancelAgreement closes the agreement at the provider and deactivates it
// locally. A provider-side failure is logged but never blocks the local
// deactivation: a closed-but-active agreement would keep billing, the inverse
// merely leaves a dead object at the provider.
func (s *Service) CancelAgreement(ctx context.Context, agreementID, reason string) error {
	if _, err := s.getAgreement(ctx, agreementID); err != nil {
		return err
	}
	if reason == "" {
		reason = "subscription cancelled"
	}

	if err := s.gateway.CloseBillingAgreement(ctx, agreementID, reason); err != nil {
		s.logger.Warn("closing billing agreement at provider failed",
			ports.String("agreement_id", agreementID),
			ports.Err(err))
	}

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.agreements.SetActive(ctx, tx, agreementID, false)
	})
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "deactivate billing agreement", err)
	}

	observability.RecordAgreementCancelled()
	s.logger.Info("billing agreement cancelled",
		ports.String("agreement_id", agreementID),
		ports.String("reason", reason))
	return nil
}

// SuspendAgreement pauses automated billing locally
func (s *Service) SuspendAgreement(ctx context.Context, agreementID string) error {
	return s.setSuspended(ctx, agreementID, true)
}

// ResumeAgreement re-enables automated billing
func (s *Service) ResumeAgreement(ctx context.Context, agreementID string) error {
	return s.setSuspended(ctx, agreementID, false)
}

// IsSuspended reports the local suspension flag
func (s *Service) IsSuspended(ctx context.Context, agreementID string) (bool, error) {
	agreement, err := s.getAgreement(ctx, agreementID)
	if err != nil {
		return false, err
	}
	return agreement.Suspended, nil
}

// GetAgreement retrieves a locally persisted agreement
func (s *Service) GetAgreement(ctx context.Context, agreementID string) (*domain.BillingAgreement, error) {
	return s.getAgreement(ctx, agreementID)
}

// ListAgreements lists agreements for the admin surface
func (s *Service) ListAgreements(ctx context.Context, filter ports.ListAgreementsFilter) ([]*domain.BillingAgreement, error) {
	agreements, err := s.agreements.List(ctx, nil, filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list billing agreements", err)
	}
	return agreements, nil
}

func (s *Service) setSuspended(ctx context.Context, agreementID string, suspended bool) error {
	if _, err := s.getAgreement(ctx, agreementID); err != nil {
		return err
	}

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.agreements.SetSuspended(ctx, tx, agreementID, suspended)
	})
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "update suspension flag", err)
	}

	s.logger.Info("billing agreement suspension updated",
		ports.String("agreement_id", agreementID),
		ports.Bool("suspended", suspended))
	return nil
}

func (s *Service) getAgreement(ctx context.Context, agreementID string) (*domain.BillingAgreement, error) {
	agreement, err := s.agreements.GetByAgreementID(ctx, nil, agreementID)
	if errors.Is(err, domain.ErrNoRows) {
		return nil, domain.ErrAgreementNotFound.WithDetail("agreement_id", agreementID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load billing agreement", err)
	}
	return agreement, nil
}
