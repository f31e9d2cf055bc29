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

// InvoiceRepository implements ports.InvoiceSource on PostgreSQL
type InvoiceRepository struct {
	db ports.DBPort
}

// NewInvoiceRepository creates a new invoice source
func NewInvoiceRepository(db ports.DBPort) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `
	id, order_id, global_process_id, amount_outstanding, currency, paid, created_at`

// GetByID retrieves a single invoice
func (r *InvoiceRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Invoice, error) {
	row := executor(r.db, db).QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`,
		id,
	)
	return scanInvoice(row)
}

// ListUnpaid returns unpaid invoices routed to this gateway, oldest first
func (r *InvoiceRepository) ListUnpaid(ctx context.Context, db ports.DBTX, limit int32) ([]*domain.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := executor(r.db, db).Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE paid = FALSE ORDER BY created_at LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unpaid invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// MarkPaid settles an invoice after its ledger transaction was booked
func (r *InvoiceRepository) MarkPaid(ctx context.Context, tx ports.DBTX, id string) error {
	tag, err := executor(r.db, tx).Exec(ctx,
		`UPDATE invoices SET paid = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoRows
	}
	return nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		invoice         domain.Invoice
		globalProcessID pgtype.Text
		amount          pgtype.Numeric
	)
	err := row.Scan(
		&invoice.ID,
		&invoice.OrderID,
		&globalProcessID,
		&amount,
		&invoice.Currency,
		&invoice.Paid,
		&invoice.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scan invoice: %w", err)
	}

	invoice.GlobalProcessID = textValue(globalProcessID)
	invoice.AmountOutstanding, err = pgNumericToDecimal(amount)
	if err != nil {
		return nil, fmt.Errorf("invoice amount: %w", err)
	}
	return &invoice, nil
}
