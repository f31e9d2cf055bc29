package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Payment operation outcomes by stage of the order lifecycle
	paymentOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amazonpay_payment_operations_total",
		Help: "Total payment operations by stage and outcome",
	}, []string{
		"operation", // confirm, authorize, capture, refund
		"outcome",   // success, declined, pending, error
	})

	// Authorization declines by provider reason code; the reason drives the
	// recovery path (re-render wallet, cancel order, terminal failure)
	authorizationDeclinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amazonpay_authorization_declines_total",
		Help: "Authorization declines by provider reason code",
	}, []string{"reason_code"})

	// Captured revenue in minor units, split by currency
	capturedAmountCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amazonpay_captured_amount_cents_total",
		Help: "Total captured amount in minor currency units",
	}, []string{"currency"})

	refundedAmountCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amazonpay_refunded_amount_cents_total",
		Help: "Total refunded amount in minor currency units",
	}, []string{"currency"})

	// Recurring billing attempts against billing agreements
	agreementBillingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amazonpay_agreement_billings_total",
		Help: "Recurring billing attempts by outcome",
	}, []string{
		"outcome", // success, declined, amount_mismatch, error
	})

	agreementsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amazonpay_agreements_cancelled_total",
		Help: "Billing agreements cancelled after exhausting the attempt budget or by request",
	})

	// Inbound notification processing
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amazonpay_notifications_total",
		Help: "Inbound payment notifications by type and outcome",
	}, []string{
		"type",    // PaymentCapture, PaymentRefund, ...
		"outcome", // processed, ignored, rejected, error
	})

	// Open refunds awaiting a terminal provider state
	openRefundsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amazonpay_open_refunds",
		Help: "Refunds currently pending at the provider",
	})
)

// RecordPaymentOperation records one payment operation outcome
func RecordPaymentOperation(operation, outcome string) {
	paymentOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordAuthorizationDecline records a declined authorization with its
// provider reason code
func RecordAuthorizationDecline(reasonCode string) {
	authorizationDeclinesTotal.WithLabelValues(reasonCode).Inc()
}

// RecordCapturedAmount adds captured revenue, in minor units
func RecordCapturedAmount(currency string, amountCents int64) {
	capturedAmountCents.WithLabelValues(currency).Add(float64(amountCents))
}

// RecordRefundedAmount adds refunded volume, in minor units
func RecordRefundedAmount(currency string, amountCents int64) {
	refundedAmountCents.WithLabelValues(currency).Add(float64(amountCents))
}

// RecordAgreementBilling records one recurring billing attempt
func RecordAgreementBilling(outcome string) {
	agreementBillingsTotal.WithLabelValues(outcome).Inc()
}

// RecordAgreementCancelled records a cancelled billing agreement
func RecordAgreementCancelled() {
	agreementsCancelledTotal.Inc()
}

// RecordNotification records an inbound notification outcome
func RecordNotification(notificationType, outcome string) {
	notificationsTotal.WithLabelValues(notificationType, outcome).Inc()
}

// SetOpenRefunds updates the open refund gauge after a sweep
func SetOpenRefunds(count int) {
	openRefundsGauge.Set(float64(count))
}
