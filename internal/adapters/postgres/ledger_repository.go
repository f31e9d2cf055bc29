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

// LedgerRepository implements ports.LedgerRepository on PostgreSQL
type LedgerRepository struct {
	db ports.DBPort
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db ports.DBPort) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const ledgerColumns = `
	id, order_id, invoice_id, type, status, amount, currency,
	gateway_transaction_id, gateway_reference_id, message, created_at, updated_at`

// Create books a new ledger entry
func (r *LedgerRepository) Create(ctx context.Context, tx ports.DBTX, txn *domain.Transaction) error {
	amount, err := decimalToNumeric(txn.Amount)
	if err != nil {
		return err
	}

	_, err = executor(r.db, tx).Exec(ctx, `
		INSERT INTO transactions (
			id, order_id, invoice_id, type, status, amount, currency,
			gateway_transaction_id, gateway_reference_id, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		txn.ID,
		txn.OrderID,
		nullText(txn.InvoiceID),
		string(txn.Type),
		string(txn.Status),
		amount,
		txn.Currency,
		nullText(txn.GatewayTransactionID),
		nullText(txn.GatewayReferenceID),
		nullText(txn.Message),
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a ledger entry
func (r *LedgerRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Transaction, error) {
	row := executor(r.db, db).QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM transactions WHERE id = $1`,
		id,
	)
	return scanTransaction(row)
}

// Finalize moves a pending entry to a terminal status with one conditional
// update. The status guard lets the webhook and poller race without a lock:
// whoever runs second affects zero rows and receives false.
func (r *LedgerRepository) Finalize(ctx context.Context, tx ports.DBTX, id string, status domain.TransactionStatus, gatewayTxnID, message string) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("finalize requires a terminal status, got %q", status)
	}

	tag, err := executor(r.db, tx).Exec(ctx, `
		UPDATE transactions SET
			status = $2,
			gateway_transaction_id = COALESCE(NULLIF($3, ''), gateway_transaction_id),
			message = COALESCE(NULLIF($4, ''), message),
			updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'error')`,
		id, string(status), gatewayTxnID, message,
	)
	if err != nil {
		return false, fmt.Errorf("finalize transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ExistsForGatewayTransaction reports whether an entry is already booked
// against a provider object id
func (r *LedgerRepository) ExistsForGatewayTransaction(ctx context.Context, db ports.DBTX, gatewayTxnID string) (bool, error) {
	var exists bool
	err := executor(r.db, db).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE gateway_transaction_id = $1)`,
		gatewayTxnID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check gateway transaction: %w", err)
	}
	return exists, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		txn                     domain.Transaction
		txnType, status         string
		invoiceID, gatewayTxnID pgtype.Text
		gatewayRefID, message   pgtype.Text
		amount                  pgtype.Numeric
	)
	err := row.Scan(
		&txn.ID,
		&txn.OrderID,
		&invoiceID,
		&txnType,
		&status,
		&amount,
		&txn.Currency,
		&gatewayTxnID,
		&gatewayRefID,
		&message,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	txn.Type = domain.TransactionType(txnType)
	txn.Status = domain.TransactionStatus(status)
	txn.InvoiceID = textValue(invoiceID)
	txn.GatewayTransactionID = textValue(gatewayTxnID)
	txn.GatewayReferenceID = textValue(gatewayRefID)
	txn.Message = textValue(message)

	txn.Amount, err = pgNumericToDecimal(amount)
	if err != nil {
		return nil, fmt.Errorf("transaction amount: %w", err)
	}
	return &txn, nil
}
