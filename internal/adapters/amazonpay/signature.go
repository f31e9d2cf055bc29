package amazonpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// AuthConfig holds the merchant credentials used to sign OffAmazonPayments
// requests
type AuthConfig struct {
	MerchantID  string
	AccessKeyID string
	SecretKey   string
	Region      string
	Sandbox     bool
}

var regionHosts = map[string]string{
	"us": "mws.amazonservices.com",
	"na": "mws.amazonservices.com",
	"eu": "mws-eu.amazonservices.com",
	"de": "mws-eu.amazonservices.com",
	"uk": "mws-eu.amazonservices.com",
	"jp": "mws.amazonservices.jp",
}

// Host returns the regional API host. Unknown regions fall back to the EU
// host, matching the merchant accounts this service is operated for.
func (c AuthConfig) Host() string {
	if host, ok := regionHosts[strings.ToLower(c.Region)]; ok {
		return host
	}
	return regionHosts["eu"]
}

// Path returns the API path, which differs between sandbox and live
func (c AuthConfig) Path() string {
	if c.Sandbox {
		return "/OffAmazonPayments_Sandbox/" + apiVersion
	}
	return "/OffAmazonPayments/" + apiVersion
}

// CalculateSignature computes the Signature Version 2 request signature:
// base64(HMAC-SHA256("POST\n<host>\n<path>\n<canonical query>", secret)).
func CalculateSignature(secret, host, path string, params map[string]string) string {
	canonical := canonicalQuery(params)
	toSign := strings.Join([]string{"POST", host, path, canonical}, "\n")

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(toSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ValidateSignature checks a Signature Version 2 signature in constant time
func ValidateSignature(secret, host, path string, params map[string]string, signature string) bool {
	expected := CalculateSignature(secret, host, path, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// canonicalQuery renders params sorted by key with the provider's percent
// encoding variant (space as %20, tilde unescaped)
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", percentEncode(k), percentEncode(params[k])))
	}
	return strings.Join(pairs, "&")
}

func percentEncode(s string) string {
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "+", "%20")
	e = strings.ReplaceAll(e, "%7E", "~")
	return e
}
