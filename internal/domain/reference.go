package domain

import (
	"fmt"
	"strings"
)

// Gateway constraints on reference identifiers: the provider accepts at most
// 32 characters from [A-Za-z0-9_-] for seller-supplied reference ids.
const (
	MaxReferenceIDLength = 32

	authorizationReferencePrefix = "a"
	captureReferencePrefix       = "c"
)

// SanitizeReferenceID strips characters the gateway rejects and truncates the
// result to the maximum allowed length. The output is safe to submit as a
// seller reference id.
func SanitizeReferenceID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > MaxReferenceIDLength {
		s = s[:MaxReferenceIDLength]
	}
	return s
}

// AuthorizationReferenceID builds the idempotency reference id for the n-th
// authorization attempt of an order. The order id is embedded so the webhook
// can resolve the order from the reference alone.
func AuthorizationReferenceID(orderID string, attempt int) string {
	return referenceID(authorizationReferencePrefix, orderID, attempt)
}

// CaptureReferenceID builds the idempotency reference id for the n-th capture
// attempt of an order.
func CaptureReferenceID(orderID string, attempt int) string {
	return referenceID(captureReferencePrefix, orderID, attempt)
}

// RefundReferenceID builds the idempotency reference id for a refund: the
// dash-stripped id of the local ledger transaction being created. A stripped
// UUID is exactly 32 characters, so the webhook can restore it and resolve
// the transaction from the reference alone.
func RefundReferenceID(transactionID string) string {
	return SanitizeReferenceID(StripTransactionID(transactionID))
}

// TransactionIDFromRefundReference reverses RefundReferenceID
func TransactionIDFromRefundReference(reference string) string {
	return RestoreTransactionID(reference)
}

func referenceID(prefix, orderID string, attempt int) string {
	suffix := fmt.Sprintf("_%d", attempt)
	oid := SanitizeReferenceID(StripTransactionID(orderID))
	// Truncate the order id portion, never the attempt suffix, so the
	// reference stays parseable by OrderIDFromReference.
	budget := MaxReferenceIDLength - len(prefix) - 1 - len(suffix)
	if len(oid) > budget {
		oid = oid[:budget]
	}
	return prefix + "_" + oid + suffix
}

// OrderIDFromReference extracts the embedded order id from a reference id
// built by one of the *ReferenceID constructors. Returns ErrInvalidReferenceID
// if the reference does not follow the <prefix>_<orderID>_<n> shape.
func OrderIDFromReference(reference string) (string, error) {
	parts := strings.Split(reference, "_")
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidReferenceID, reference)
	}
	switch parts[0] {
	case authorizationReferencePrefix, captureReferencePrefix:
	default:
		return "", fmt.Errorf("%w: unknown prefix in %q", ErrInvalidReferenceID, reference)
	}
	orderID := strings.Join(parts[1:len(parts)-1], "_")
	if orderID == "" {
		return "", fmt.Errorf("%w: empty order id in %q", ErrInvalidReferenceID, reference)
	}
	return RestoreTransactionID(orderID), nil
}

// dashOffsets are the positions of dashes in a canonical UUID-shaped id.
var dashOffsets = [4]int{8, 13, 18, 23}

// StripTransactionID removes the dashes from a canonical 36-character
// UUID-shaped transaction id so it fits the gateway's reference id alphabet
// and length limit. Ids that are not UUID-shaped pass through unchanged.
func StripTransactionID(id string) string {
	if !isDashedUUID(id) {
		return id
	}
	return strings.ReplaceAll(id, "-", "")
}

// RestoreTransactionID re-inserts dashes at offsets 8, 13, 18 and 23,
// restoring the canonical form produced by StripTransactionID. Ids that are
// not 32 hex-ish characters pass through unchanged, so the function is safe
// to apply to references that never were UUIDs.
func RestoreTransactionID(id string) string {
	if len(id) != 32 || strings.Contains(id, "-") {
		return id
	}
	var b strings.Builder
	b.Grow(36)
	next := 0
	for i := 0; i < len(id); i++ {
		if next < len(dashOffsets) && b.Len() == dashOffsets[next] {
			b.WriteByte('-')
			next++
		}
		b.WriteByte(id[i])
	}
	return b.String()
}

func isDashedUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	for _, off := range dashOffsets {
		if id[off] != '-' {
			return false
		}
	}
	return true
}
