package narration

import (
	"crypto/tls"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// buildHTTPClient creates a client that negotiates HTTP/2 over TLS and
// falls back to HTTP/1.1 for plain endpoints.
func buildHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	// ConfigureTransport only fails when the transport was already configured.
	_ = http2.ConfigureTransport(transport)

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
