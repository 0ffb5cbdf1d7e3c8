package telegram

import (
	"net/http"
	"time"

	"github.com/m3rciful/sushef/core/telegram/netutil"
)

const (
	defaultResponseTimeout = 5 * time.Second
	defaultClientTimeout   = 30 * time.Second
	defaultRetryAttempts   = 3
	defaultRetryBackoff    = 2 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for Telegram Bot API calls.
// Transient dial and timeout failures are retried with linear backoff.
func BuildHTTPClient() *http.Client {
	return &http.Client{
		Timeout: defaultClientTimeout,
		Transport: &netutil.RetryTransport{
			Base:       netutil.NewTransport(netutil.TransportOptions{ResponseHeaderTimeout: defaultResponseTimeout}),
			MaxRetries: defaultRetryAttempts,
			Backoff:    defaultRetryBackoff,
		},
	}
}

// BuildSingleShotHTTPClient returns a client that never retries and relies on
// per-request contexts for deadlines. Used for file downloads and backend relays.
func BuildSingleShotHTTPClient() *http.Client {
	return &http.Client{Transport: netutil.NewTransport(netutil.TransportOptions{})}
}
