package jamf

import (
	"crypto/tls"
	"net/http"
	"time"
)

// NewHTTPClient returns the HTTP client used for Jamf requests. Each
// request, including every per-device fetch, is bounded by timeout.
func NewHTTPClient(timeout time.Duration, insecureSkipVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipVerify {
		//nolint:gosec // opt-in for lab instances with self-signed certificates
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
