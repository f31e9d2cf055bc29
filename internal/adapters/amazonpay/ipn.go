package amazonpay

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
)

// NotificationType identifies the payload shape of an inbound notification
type NotificationType string

const (
	NotificationTypeAuthorization    NotificationType = "PaymentAuthorize"
	NotificationTypeCapture          NotificationType = "PaymentCapture"
	NotificationTypeRefund           NotificationType = "PaymentRefund"
	NotificationTypeOrderReference   NotificationType = "OrderReferenceNotification"
	NotificationTypeBillingAgreement NotificationType = "BillingAgreementNotification"
)

// Notification is a verified, parsed inbound notification. Exactly one of
// the detail fields is set, matching Type.
type Notification struct {
	Type NotificationType

	Authorization *ports.AuthorizationDetails
	Capture       *ports.CaptureDetails
	Refund        *ports.RefundDetails

	// OrderReferenceID is set for order reference notifications
	OrderReferenceID string
	// AgreementID is set for billing agreement notifications
	AgreementID string
}

// snsEnvelope is the signed wrapper every notification arrives in
type snsEnvelope struct {
	Type             string `json:"Type"`
	MessageID        string `json:"MessageId"`
	TopicArn         string `json:"TopicArn"`
	Message          string `json:"Message"`
	Timestamp        string `json:"Timestamp"`
	SignatureVersion string `json:"SignatureVersion"`
	Signature        string `json:"Signature"`
	SigningCertURL   string `json:"SigningCertURL"`
}

// notificationMessage is the inner JSON document of the envelope's Message
type notificationMessage struct {
	NotificationType string `json:"NotificationType"`
	NotificationData string `json:"NotificationData"`
	SellerID         string `json:"SellerId"`
	Timestamp        string `json:"Timestamp"`
}

// NotificationData XML roots

type authorizationNotificationData struct {
	AuthorizationDetails xmlAuthorizationDetails `xml:"AuthorizationDetails"`
}

type captureNotificationData struct {
	CaptureDetails xmlCaptureDetails `xml:"CaptureDetails"`
}

type refundNotificationData struct {
	RefundDetails xmlRefundDetails `xml:"RefundDetails"`
}

type orderReferenceNotificationData struct {
	OrderReference struct {
		AmazonOrderReferenceID string `xml:"AmazonOrderReferenceId"`
	} `xml:"OrderReference"`
}

type billingAgreementNotificationData struct {
	BillingAgreement struct {
		AmazonBillingAgreementID string `xml:"AmazonBillingAgreementId"`
	} `xml:"BillingAgreement"`
}

// IPNVerifier verifies and parses inbound payment notifications. Signing
// certificates are fetched once per URL and cached for the process lifetime.
type IPNVerifier struct {
	httpClient ports.HTTPClient
	logger     ports.Logger

	mu    sync.Mutex
	certs map[string]*x509.Certificate
}

// NewIPNVerifier creates a new notification verifier
func NewIPNVerifier(httpClient ports.HTTPClient, logger ports.Logger) *IPNVerifier {
	return &IPNVerifier{
		httpClient: httpClient,
		logger:     logger,
		certs:      make(map[string]*x509.Certificate),
	}
}

// Parse verifies the payload signature and returns the typed notification.
// Returns a domain error with code IPN_INVALID_SIGNATURE or
// IPN_MALFORMED_PAYLOAD; the handler maps both to HTTP 400.
func (v *IPNVerifier) Parse(ctx context.Context, payload []byte) (*Notification, error) {
	var envelope snsEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeIPNMalformedPayload, "failed to decode notification envelope", err)
	}
	if envelope.Type != "Notification" {
		return nil, domain.NewDomainError(domain.ErrorCodeIPNMalformedPayload,
			fmt.Sprintf("unexpected envelope type %q", envelope.Type))
	}

	if err := v.verifySignature(ctx, &envelope); err != nil {
		return nil, err
	}

	var msg notificationMessage
	if err := json.Unmarshal([]byte(envelope.Message), &msg); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeIPNMalformedPayload, "failed to decode notification message", err)
	}

	return parseNotificationData(msg)
}

func parseNotificationData(msg notificationMessage) (*Notification, error) {
	data := []byte(msg.NotificationData)

	switch NotificationType(msg.NotificationType) {
	case NotificationTypeAuthorization:
		var nd authorizationNotificationData
		if err := xml.Unmarshal(data, &nd); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeIPNMalformedPayload, "failed to decode authorization data", err)
		}
		details, err := nd.AuthorizationDetails.toPort()
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeIPNMalformedPayload, "invalid authorization data", err)
		}
		return &Notification{Type: NotificationTypeAuthorization, Authorization: details}, nil

	case NotificationTypeCapture:
		var nd captureNotificationData
		if err := xml.Unmarshal(data, &nd); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeIPNMalformedPayload, "failed to decode capture data", err)
		}
		details, err := nd.CaptureDetails.toPort()
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeIPNMalformedPayload, "invalid capture data", err)
		}
		return &Notification{Type: NotificationTypeCapture, Capture: details}, nil

	case NotificationTypeRefund:
		var nd refundNotificationData
		if err := xml.Unmarshal(data, &nd); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeIPNMalformedPayload, "failed to decode refund data", err)
		}
		details, err := nd.RefundDetails.toPort()
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeIPNMalformedPayload, "invalid refund data", err)
		}
		return &Notification{Type: NotificationTypeRefund, Refund: details}, nil

	case NotificationTypeOrderReference:
		var nd orderReferenceNotificationData
		if err := xml.Unmarshal(data, &nd); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeIPNMalformedPayload, "failed to decode order reference data", err)
		}
		return &Notification{
			Type:             NotificationTypeOrderReference,
			OrderReferenceID: nd.OrderReference.AmazonOrderReferenceID,
		}, nil

	case NotificationTypeBillingAgreement:
		var nd billingAgreementNotificationData
		if err := xml.Unmarshal(data, &nd); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeIPNMalformedPayload, "failed to decode billing agreement data", err)
		}
		return &Notification{
			Type:        NotificationTypeBillingAgreement,
			AgreementID: nd.BillingAgreement.AmazonBillingAgreementID,
		}, nil

	default:
		return nil, domain.NewDomainError(domain.ErrorCodeIPNMalformedPayload,
			fmt.Sprintf("unknown notification type %q", msg.NotificationType))
	}
}

// verifySignature checks the SHA1-RSA signature over the envelope's canonical
// string against the certificate the envelope points at
func (v *IPNVerifier) verifySignature(ctx context.Context, envelope *snsEnvelope) error {
	if envelope.SignatureVersion != "1" {
		return domain.NewDomainError(domain.ErrorCodeIPNInvalidSignature,
			fmt.Sprintf("unsupported signature version %q", envelope.SignatureVersion))
	}

	cert, err := v.signingCert(ctx, envelope.SigningCertURL)
	if err != nil {
		return err
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return domain.NewDomainError(domain.ErrorCodeIPNInvalidSignature, "signing certificate does not carry an RSA key")
	}

	signature, err := base64.StdEncoding.DecodeString(envelope.Signature)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeIPNInvalidSignature, "signature is not valid base64", err)
	}

	digest := sha1.Sum(canonicalEnvelopeString(envelope))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest[:], signature); err != nil {
		return domain.WrapError(domain.ErrorCodeIPNInvalidSignature, "signature verification failed", err)
	}
	return nil
}

// canonicalEnvelopeString builds the signed string: sorted key/value lines of
// the envelope fields covered by the signature
func canonicalEnvelopeString(envelope *snsEnvelope) []byte {
	var b strings.Builder
	for _, kv := range [][2]string{
		{"Message", envelope.Message},
		{"MessageId", envelope.MessageID},
		{"Timestamp", envelope.Timestamp},
		{"TopicArn", envelope.TopicArn},
		{"Type", envelope.Type},
	} {
		b.WriteString(kv[0])
		b.WriteByte('\n')
		b.WriteString(kv[1])
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// signingCert returns the certificate behind certURL, fetching and caching it
// on first use. The URL must be HTTPS on an amazonaws.com host; anything else
// is treated as a forged envelope.
func (v *IPNVerifier) signingCert(ctx context.Context, certURL string) (*x509.Certificate, error) {
	if err := validateCertURL(certURL); err != nil {
		return nil, err
	}

	v.mu.Lock()
	cert, ok := v.certs[certURL]
	v.mu.Unlock()
	if ok {
		return cert, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, certURL, nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeIPNInvalidSignature, "failed to build certificate request", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeIPNInvalidSignature, "failed to fetch signing certificate", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewDomainError(domain.ErrorCodeIPNInvalidSignature,
			fmt.Sprintf("certificate fetch returned HTTP %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeIPNInvalidSignature, "failed to read signing certificate", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, domain.NewDomainError(domain.ErrorCodeIPNInvalidSignature, "signing certificate is not PEM encoded")
	}
	cert, err = x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeIPNInvalidSignature, "failed to parse signing certificate", err)
	}

	v.mu.Lock()
	v.certs[certURL] = cert
	v.mu.Unlock()

	if v.logger != nil {
		v.logger.Debug("cached notification signing certificate", ports.String("url", certURL))
	}
	return cert, nil
}

func validateCertURL(certURL string) error {
	u, err := url.Parse(certURL)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeIPNInvalidSignature, "invalid signing certificate url", err)
	}
	if u.Scheme != "https" {
		return domain.NewDomainError(domain.ErrorCodeIPNInvalidSignature, "signing certificate url must use https")
	}
	host := u.Hostname()
	if host != "amazonaws.com" && !strings.HasSuffix(host, ".amazonaws.com") {
		return domain.NewDomainError(domain.ErrorCodeIPNInvalidSignature,
			fmt.Sprintf("signing certificate host %q is not trusted", host))
	}
	return nil
}
