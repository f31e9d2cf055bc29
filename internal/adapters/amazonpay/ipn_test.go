package amazonpay

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/test/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCertURL = "https://sns.eu-west-1.amazonaws.com/SimpleNotificationService-test.pem"

// ipnFixture signs envelopes with a throwaway RSA key and serves the matching
// self-signed certificate through a mock HTTP client
type ipnFixture struct {
	key     *rsa.PrivateKey
	certPEM []byte
}

func newIPNFixture(t *testing.T) *ipnFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "sns.amazonaws.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	return &ipnFixture{
		key:     key,
		certPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}
}

func (f *ipnFixture) envelope(t *testing.T, message string) []byte {
	t.Helper()

	envelope := snsEnvelope{
		Type:             "Notification",
		MessageID:        "msg-0001",
		TopicArn:         "arn:aws:sns:eu-west-1:123456789:A1MERCHANT",
		Message:          message,
		Timestamp:        "2026-01-02T15:04:05.000Z",
		SignatureVersion: "1",
		SigningCertURL:   testCertURL,
	}

	digest := sha1.Sum(canonicalEnvelopeString(&envelope))
	signature, err := rsa.SignPKCS1v15(rand.Reader, f.key, crypto.SHA1, digest[:])
	require.NoError(t, err)
	envelope.Signature = base64.StdEncoding.EncodeToString(signature)

	payload, err := json.Marshal(envelope)
	require.NoError(t, err)
	return payload
}

func (f *ipnFixture) verifier() (*IPNVerifier, *mocks.MockHTTPClient) {
	httpClient := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(f.certPEM)),
			Header:     make(http.Header),
		}, nil
	})
	return NewIPNVerifier(httpClient, mocks.NewMockLogger()), httpClient
}

func refundMessage(t *testing.T) string {
	t.Helper()
	msg := notificationMessage{
		NotificationType: string(NotificationTypeRefund),
		NotificationData: `<RefundNotification>
  <RefundDetails>
    <AmazonRefundId>P01-1234567-1234567-R000001</AmazonRefundId>
    <RefundReferenceId>1f3a5c7e9b1d4f6a8c2e0a1b2c3d4e5f</RefundReferenceId>
    <RefundAmount><Amount>49.99</Amount><CurrencyCode>EUR</CurrencyCode></RefundAmount>
    <RefundStatus>
      <State>Completed</State>
      <LastUpdateTimestamp>2026-01-02T15:04:05Z</LastUpdateTimestamp>
    </RefundStatus>
  </RefundDetails>
</RefundNotification>`,
		SellerID:  "A1MERCHANT",
		Timestamp: "2026-01-02T15:04:05.000Z",
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return string(data)
}

func TestIPNVerifier_Parse_Refund(t *testing.T) {
	fixture := newIPNFixture(t)
	verifier, _ := fixture.verifier()

	notification, err := verifier.Parse(context.Background(), fixture.envelope(t, refundMessage(t)))
	require.NoError(t, err)

	assert.Equal(t, NotificationTypeRefund, notification.Type)
	require.NotNil(t, notification.Refund)
	assert.Equal(t, "P01-1234567-1234567-R000001", notification.Refund.RefundID)
	assert.Equal(t, "1f3a5c7e9b1d4f6a8c2e0a1b2c3d4e5f", notification.Refund.RefundReferenceID)
	assert.Equal(t, domain.StateCompleted, notification.Refund.State)
	assert.True(t, notification.Refund.Amount.Equal(decimal.RequireFromString("49.99")))
}

func TestIPNVerifier_Parse_Capture(t *testing.T) {
	fixture := newIPNFixture(t)
	verifier, _ := fixture.verifier()

	msg := notificationMessage{
		NotificationType: string(NotificationTypeCapture),
		NotificationData: `<CaptureNotification>
  <CaptureDetails>
    <AmazonCaptureId>P01-1234567-1234567-C000001</AmazonCaptureId>
    <CaptureReferenceId>c_1042_1</CaptureReferenceId>
    <CaptureAmount><Amount>49.99</Amount><CurrencyCode>EUR</CurrencyCode></CaptureAmount>
    <CaptureStatus><State>Completed</State></CaptureStatus>
  </CaptureDetails>
</CaptureNotification>`,
	}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	notification, err := verifier.Parse(context.Background(), fixture.envelope(t, string(raw)))
	require.NoError(t, err)

	assert.Equal(t, NotificationTypeCapture, notification.Type)
	require.NotNil(t, notification.Capture)
	assert.Equal(t, "c_1042_1", notification.Capture.CaptureReferenceID)
	assert.Equal(t, domain.StateCompleted, notification.Capture.State)
}

func TestIPNVerifier_CachesSigningCert(t *testing.T) {
	fixture := newIPNFixture(t)
	verifier, httpClient := fixture.verifier()

	payload := fixture.envelope(t, refundMessage(t))
	_, err := verifier.Parse(context.Background(), payload)
	require.NoError(t, err)
	_, err = verifier.Parse(context.Background(), payload)
	require.NoError(t, err)

	assert.Len(t, httpClient.Calls, 1, "certificate fetched once")
}

func TestIPNVerifier_RejectsTamperedMessage(t *testing.T) {
	fixture := newIPNFixture(t)
	verifier, _ := fixture.verifier()

	payload := fixture.envelope(t, refundMessage(t))

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &envelope))
	envelope["Message"] = `{"NotificationType":"PaymentRefund","NotificationData":"<RefundNotification/>"}`
	tampered, err := json.Marshal(envelope)
	require.NoError(t, err)

	_, err = verifier.Parse(context.Background(), tampered)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeIPNInvalidSignature))
}

func TestIPNVerifier_RejectsUntrustedCertURL(t *testing.T) {
	fixture := newIPNFixture(t)
	verifier, httpClient := fixture.verifier()

	for _, certURL := range []string{
		"http://sns.eu-west-1.amazonaws.com/cert.pem",
		"https://evil.example.com/cert.pem",
		"https://amazonaws.com.evil.example/cert.pem",
	} {
		envelope := snsEnvelope{
			Type:             "Notification",
			SignatureVersion: "1",
			SigningCertURL:   certURL,
			Signature:        base64.StdEncoding.EncodeToString([]byte("sig")),
		}
		payload, err := json.Marshal(envelope)
		require.NoError(t, err)

		_, err = verifier.Parse(context.Background(), payload)
		assert.True(t, domain.IsDomainError(err, domain.ErrorCodeIPNInvalidSignature), certURL)
	}

	assert.Empty(t, httpClient.Calls, "no certificate fetch for untrusted urls")
}

func TestIPNVerifier_MalformedPayloads(t *testing.T) {
	fixture := newIPNFixture(t)
	verifier, _ := fixture.verifier()

	t.Run("not json", func(t *testing.T) {
		_, err := verifier.Parse(context.Background(), []byte("not-json"))
		assert.True(t, domain.IsDomainError(err, domain.ErrorCodeIPNMalformedPayload))
	})

	t.Run("wrong envelope type", func(t *testing.T) {
		payload, err := json.Marshal(snsEnvelope{Type: "SubscriptionConfirmation"})
		require.NoError(t, err)
		_, err = verifier.Parse(context.Background(), payload)
		assert.True(t, domain.IsDomainError(err, domain.ErrorCodeIPNMalformedPayload))
	})

	t.Run("unknown notification type", func(t *testing.T) {
		msg, err := json.Marshal(notificationMessage{NotificationType: "SomethingElse"})
		require.NoError(t, err)
		_, err = verifier.Parse(context.Background(), fixture.envelope(t, string(msg)))
		assert.True(t, domain.IsDomainError(err, domain.ErrorCodeIPNMalformedPayload))
	})
}
