package ports

import "net/http"

// HTTPClient abstracts the transport used by the gateway client and the IPN
// verifier so tests can stub provider responses without a network.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
