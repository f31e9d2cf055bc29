package amazonpay

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalQuery(t *testing.T) {
	params := map[string]string{
		"Action":         "Authorize",
		"AWSAccessKeyId": "AKIATEST",
		"SellerNote":     "Order 1042 / thank you~",
	}

	canonical := canonicalQuery(params)

	// Keys sorted byte-wise, space as %20, tilde unescaped
	assert.Equal(t, "AWSAccessKeyId=AKIATEST&Action=Authorize&SellerNote=Order%201042%20%2F%20thank%20you~", canonical)
}

func TestCalculateSignature(t *testing.T) {
	params := map[string]string{
		"Action":    "Capture",
		"SellerId":  "A1MERCHANT",
		"Timestamp": "2026-01-02T15:04:05Z",
	}

	sig := CalculateSignature("secret", "mws-eu.amazonservices.com", "/OffAmazonPayments/2013-01-01", params)

	decoded, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	assert.Len(t, decoded, 32, "HMAC-SHA256 digest")

	// Deterministic for identical input
	again := CalculateSignature("secret", "mws-eu.amazonservices.com", "/OffAmazonPayments/2013-01-01", params)
	assert.Equal(t, sig, again)

	// Sensitive to every signing input
	assert.NotEqual(t, sig, CalculateSignature("other", "mws-eu.amazonservices.com", "/OffAmazonPayments/2013-01-01", params))
	assert.NotEqual(t, sig, CalculateSignature("secret", "mws.amazonservices.com", "/OffAmazonPayments/2013-01-01", params))
	assert.NotEqual(t, sig, CalculateSignature("secret", "mws-eu.amazonservices.com", "/OffAmazonPayments_Sandbox/2013-01-01", params))

	params["Timestamp"] = "2026-01-02T15:04:06Z"
	assert.NotEqual(t, sig, CalculateSignature("secret", "mws-eu.amazonservices.com", "/OffAmazonPayments/2013-01-01", params))
}

func TestValidateSignature(t *testing.T) {
	params := map[string]string{"Action": "Refund"}
	sig := CalculateSignature("secret", "mws-eu.amazonservices.com", "/OffAmazonPayments/2013-01-01", params)

	assert.True(t, ValidateSignature("secret", "mws-eu.amazonservices.com", "/OffAmazonPayments/2013-01-01", params, sig))
	assert.False(t, ValidateSignature("secret", "mws-eu.amazonservices.com", "/OffAmazonPayments/2013-01-01", params, "tampered"))
	assert.False(t, ValidateSignature("wrong", "mws-eu.amazonservices.com", "/OffAmazonPayments/2013-01-01", params, sig))
}

func TestAuthConfigHostAndPath(t *testing.T) {
	tests := []struct {
		region string
		host   string
	}{
		{region: "de", host: "mws-eu.amazonservices.com"},
		{region: "uk", host: "mws-eu.amazonservices.com"},
		{region: "US", host: "mws.amazonservices.com"},
		{region: "jp", host: "mws.amazonservices.jp"},
		{region: "unknown", host: "mws-eu.amazonservices.com"},
	}

	for _, tt := range tests {
		cfg := AuthConfig{Region: tt.region}
		assert.Equal(t, tt.host, cfg.Host(), tt.region)
	}

	live := AuthConfig{Region: "de"}
	assert.Equal(t, "/OffAmazonPayments/2013-01-01", live.Path())

	sandbox := AuthConfig{Region: "de", Sandbox: true}
	assert.True(t, strings.Contains(sandbox.Path(), "Sandbox"))
}
