package domain

import (
	"fmt"
	"time"
)

// AgreementStatus is the closed set of billing agreement states reported by
// the provider.
type AgreementStatus int

const (
	AgreementStatusUnknown AgreementStatus = iota
	AgreementStatusDraft
	AgreementStatusOpen
	AgreementStatusSuspended
	AgreementStatusCanceled
	AgreementStatusClosed
)

var agreementStatusNames = map[AgreementStatus]string{
	AgreementStatusDraft:     "Draft",
	AgreementStatusOpen:      "Open",
	AgreementStatusSuspended: "Suspended",
	AgreementStatusCanceled:  "Canceled",
	AgreementStatusClosed:    "Closed",
}

func (s AgreementStatus) String() string {
	if name, ok := agreementStatusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// ParseAgreementStatus maps a provider agreement status string to the enum
func ParseAgreementStatus(s string) (AgreementStatus, error) {
	for status, name := range agreementStatusNames {
		if name == s {
			return status, nil
		}
	}
	return AgreementStatusUnknown, fmt.Errorf("%w: agreement status %q", ErrUnknownProviderStatus, s)
}

// BillingAgreement is a locally persisted recurring-charge subscription tied
// to a provider-side billing agreement object.
type BillingAgreement struct {
	ID int64

	// AgreementID is the provider's billing agreement identifier
	AgreementID string

	// GlobalProcessID links the agreement to the subscription process that
	// spawns recurring invoices. Unpaid invoices resolve their agreement
	// through this id.
	GlobalProcessID string

	// Customer is a JSON snapshot of the buyer at subscription time, kept
	// for audit. The live customer record may change or disappear.
	Customer []byte

	Active    bool
	Suspended bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Billable reports whether automated billing may run for this agreement.
// Suspension pauses billing without cancelling the provider-side agreement.
func (a *BillingAgreement) Billable() bool {
	return a.Active && !a.Suspended
}

// AgreementTransaction is one billing attempt record per (agreement, invoice)
// pair. Created lazily on the first attempt and updated in place on retries.
type AgreementTransaction struct {
	ID int64

	AgreementID string
	InvoiceID   string

	// AuthorizationID is the provider authorization produced by the most
	// recent attempt, reused for a direct capture while it is still Open.
	AuthorizationID string

	// TransactionID is the local ledger transaction booked once the captured
	// amount matched the invoice. Empty until completion.
	TransactionID string

	// CaptureAttempts counts failed attempts only; it strictly increases by
	// one per mismatched capture and never resets.
	CaptureAttempts int

	Completed bool

	// RawResponse holds the provider response of the last attempt for audit
	RawResponse []byte

	// ProviderTimestamp is the completion time reported by the provider
	ProviderTimestamp time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AttemptsExhausted reports whether the failed-attempt budget is spent and
// the agreement must be cancelled.
func (t *AgreementTransaction) AttemptsExhausted(maxAttempts int) bool {
	return t.CaptureAttempts >= maxAttempts
}
