package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
)

// AgreementRepository implements ports.AgreementRepository on PostgreSQL
type AgreementRepository struct {
	db ports.DBPort
}

// NewAgreementRepository creates a new billing agreement repository
func NewAgreementRepository(db ports.DBPort) *AgreementRepository {
	return &AgreementRepository{db: db}
}

const agreementColumns = `
	id, amazon_agreement_id, global_process_id, customer, active, suspended,
	created_at, updated_at`

// Create inserts a new billing agreement after successful validation
func (r *AgreementRepository) Create(ctx context.Context, tx ports.DBTX, agreement *domain.BillingAgreement) error {
	customer := agreement.Customer
	if customer == nil {
		customer = []byte("{}")
	}

	err := executor(r.db, tx).QueryRow(ctx, `
		INSERT INTO amazon_billing_agreements (
			amazon_agreement_id, global_process_id, customer, active, suspended
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		agreement.AgreementID,
		agreement.GlobalProcessID,
		customer,
		agreement.Active,
		agreement.Suspended,
	).Scan(&agreement.ID, &agreement.CreatedAt, &agreement.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create billing agreement: %w", err)
	}
	return nil
}

// GetByAgreementID retrieves an agreement by the provider's id
func (r *AgreementRepository) GetByAgreementID(ctx context.Context, db ports.DBTX, agreementID string) (*domain.BillingAgreement, error) {
	row := executor(r.db, db).QueryRow(ctx,
		`SELECT `+agreementColumns+` FROM amazon_billing_agreements WHERE amazon_agreement_id = $1`,
		agreementID,
	)
	return scanAgreement(row)
}

// GetByGlobalProcessID resolves the agreement serving a subscription process
func (r *AgreementRepository) GetByGlobalProcessID(ctx context.Context, db ports.DBTX, globalProcessID string) (*domain.BillingAgreement, error) {
	row := executor(r.db, db).QueryRow(ctx,
		`SELECT `+agreementColumns+` FROM amazon_billing_agreements
		 WHERE global_process_id = $1 ORDER BY id DESC LIMIT 1`,
		globalProcessID,
	)
	return scanAgreement(row)
}

// List returns agreements for the admin surface
func (r *AgreementRepository) List(ctx context.Context, db ports.DBTX, filter ports.ListAgreementsFilter) ([]*domain.BillingAgreement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := executor(r.db, db).Query(ctx, `
		SELECT `+agreementColumns+` FROM amazon_billing_agreements
		WHERE ($1 = FALSE OR active = TRUE)
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`,
		filter.ActiveOnly, limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list billing agreements: %w", err)
	}
	defer rows.Close()

	var agreements []*domain.BillingAgreement
	for rows.Next() {
		agreement, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		agreements = append(agreements, agreement)
	}
	return agreements, rows.Err()
}

// SetActive toggles the local activation flag
func (r *AgreementRepository) SetActive(ctx context.Context, tx ports.DBTX, agreementID string, active bool) error {
	tag, err := executor(r.db, tx).Exec(ctx,
		`UPDATE amazon_billing_agreements SET active = $2, updated_at = NOW()
		 WHERE amazon_agreement_id = $1`,
		agreementID, active,
	)
	if err != nil {
		return fmt.Errorf("set agreement active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoRows
	}
	return nil
}

// SetSuspended toggles the local suspension flag
func (r *AgreementRepository) SetSuspended(ctx context.Context, tx ports.DBTX, agreementID string, suspended bool) error {
	tag, err := executor(r.db, tx).Exec(ctx,
		`UPDATE amazon_billing_agreements SET suspended = $2, updated_at = NOW()
		 WHERE amazon_agreement_id = $1`,
		agreementID, suspended,
	)
	if err != nil {
		return fmt.Errorf("set agreement suspended: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoRows
	}
	return nil
}

const agreementTxnColumns = `
	id, agreement_id, invoice_id, authorization_id, transaction_id,
	capture_attempts, completed, raw_response, provider_timestamp,
	created_at, updated_at`

// GetOrCreateTransaction returns the billing attempt record for an
// (agreement, invoice) pair, creating it on first use. The unique constraint
// on the pair makes concurrent first attempts converge on one row.
func (r *AgreementRepository) GetOrCreateTransaction(ctx context.Context, tx ports.DBTX, agreementID, invoiceID string) (*domain.AgreementTransaction, error) {
	_, err := executor(r.db, tx).Exec(ctx, `
		INSERT INTO amazon_agreement_transactions (agreement_id, invoice_id)
		VALUES ($1, $2)
		ON CONFLICT (agreement_id, invoice_id) DO NOTHING`,
		agreementID, invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("create agreement transaction: %w", err)
	}

	row := executor(r.db, tx).QueryRow(ctx,
		`SELECT `+agreementTxnColumns+` FROM amazon_agreement_transactions
		 WHERE agreement_id = $1 AND invoice_id = $2`,
		agreementID, invoiceID,
	)
	return scanAgreementTxn(row)
}

// UpdateTransaction writes the mutable fields of a billing attempt record
func (r *AgreementRepository) UpdateTransaction(ctx context.Context, tx ports.DBTX, txn *domain.AgreementTransaction) error {
	providerTS := pgtype.Timestamptz{Time: txn.ProviderTimestamp, Valid: !txn.ProviderTimestamp.IsZero()}

	tag, err := executor(r.db, tx).Exec(ctx, `
		UPDATE amazon_agreement_transactions SET
			authorization_id = $2,
			transaction_id = $3,
			raw_response = $4,
			provider_timestamp = $5,
			updated_at = NOW()
		WHERE id = $1`,
		txn.ID,
		nullText(txn.AuthorizationID),
		nullText(txn.TransactionID),
		txn.RawResponse,
		providerTS,
	)
	if err != nil {
		return fmt.Errorf("update agreement transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoRows
	}
	return nil
}

// IncrementCaptureAttempts atomically bumps the failed-attempt counter
func (r *AgreementRepository) IncrementCaptureAttempts(ctx context.Context, tx ports.DBTX, agreementID, invoiceID string) (int, error) {
	var attempts int
	err := executor(r.db, tx).QueryRow(ctx, `
		UPDATE amazon_agreement_transactions
		SET capture_attempts = capture_attempts + 1, updated_at = NOW()
		WHERE agreement_id = $1 AND invoice_id = $2
		RETURNING capture_attempts`,
		agreementID, invoiceID,
	).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNoRows
	}
	if err != nil {
		return 0, fmt.Errorf("increment capture attempts: %w", err)
	}
	return attempts, nil
}

// MarkTransactionCompleted records completion exactly once
func (r *AgreementRepository) MarkTransactionCompleted(ctx context.Context, tx ports.DBTX, txn *domain.AgreementTransaction) (bool, error) {
	providerTS := pgtype.Timestamptz{Time: txn.ProviderTimestamp, Valid: !txn.ProviderTimestamp.IsZero()}

	tag, err := executor(r.db, tx).Exec(ctx, `
		UPDATE amazon_agreement_transactions SET
			completed = TRUE,
			authorization_id = $2,
			transaction_id = $3,
			raw_response = $4,
			provider_timestamp = $5,
			updated_at = NOW()
		WHERE id = $1 AND completed = FALSE`,
		txn.ID,
		nullText(txn.AuthorizationID),
		nullText(txn.TransactionID),
		txn.RawResponse,
		providerTS,
	)
	if err != nil {
		return false, fmt.Errorf("mark agreement transaction completed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanAgreement(row pgx.Row) (*domain.BillingAgreement, error) {
	agreement := &domain.BillingAgreement{}
	err := row.Scan(
		&agreement.ID,
		&agreement.AgreementID,
		&agreement.GlobalProcessID,
		&agreement.Customer,
		&agreement.Active,
		&agreement.Suspended,
		&agreement.CreatedAt,
		&agreement.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scan billing agreement: %w", err)
	}
	return agreement, nil
}

func scanAgreementTxn(row pgx.Row) (*domain.AgreementTransaction, error) {
	var (
		txn                   domain.AgreementTransaction
		authID, transactionID pgtype.Text
		providerTS            pgtype.Timestamptz
	)
	err := row.Scan(
		&txn.ID,
		&txn.AgreementID,
		&txn.InvoiceID,
		&authID,
		&transactionID,
		&txn.CaptureAttempts,
		&txn.Completed,
		&txn.RawResponse,
		&providerTS,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scan agreement transaction: %w", err)
	}

	txn.AuthorizationID = textValue(authID)
	txn.TransactionID = textValue(transactionID)
	if providerTS.Valid {
		txn.ProviderTimestamp = providerTS.Time.UTC()
	}
	return &txn, nil
}
