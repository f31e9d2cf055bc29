package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the billing document recurring charges settle against. The
// orchestrator does not own invoicing; it reads outstanding invoices whose
// payment method is this gateway and books payments against them.
type Invoice struct {
	ID      string
	OrderID string

	// GlobalProcessID ties the invoice to the subscription process that
	// generated it; billing agreements are resolved through it.
	GlobalProcessID string

	// AmountOutstanding is the exact amount a capture must match. Comparison
	// is exact decimal equality, never tolerance-based.
	AmountOutstanding decimal.Decimal
	Currency          string

	Paid      bool
	CreatedAt time.Time
}

// HistoryEntry is one human-readable line of the order/invoice audit trail.
// Entries are appended before or after every transition so the trail reflects
// what was attempted even when the transition fails.
type HistoryEntry struct {
	ID        int64
	OrderID   string
	Message   string
	CreatedAt time.Time
}
