package apiclient

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	retry "github.com/appleboy/go-httpretry"
)

// retryDoer adapts a go-httpretry client to Doer. Transient failures are
// retried before the interceptor chain sees the outcome, so a 401 still
// reaches the refresh logic exactly once.
type retryDoer struct {
	client *retry.Client
}

func (d *retryDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.DoWithContext(req.Context(), req)
}

// NewTransport returns the HTTP client used for API calls.
func NewTransport() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// NewRetryDoer wraps base with retries on transient network and 5xx failures.
func NewRetryDoer(base *http.Client) (Doer, error) {
	if base == nil {
		base = NewTransport()
	}
	client, err := retry.NewBackgroundClient(retry.WithHTTPClient(base))
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	return &retryDoer{client: client}, nil
}
