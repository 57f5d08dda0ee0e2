// Package source implements adapters for external data providers.
// Each adapter fetches one bounded batch of raw records; retries and
// throttling are the pipeline's responsibility, never the adapter's.
package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"crypto-market-etl/internal/domain"
)

// Adapter is the uniform fetch capability for one external source.
type Adapter interface {
	// Source identifies the provider this adapter fetches from.
	Source() domain.Source

	// FetchBatch retrieves one bounded batch of raw payloads.
	// Errors carry enough type information for IsRetryable classification.
	FetchBatch(ctx context.Context) ([]*domain.RawRecord, error)
}

// HTTPError is a non-2xx response from a provider.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) from %s", e.StatusCode, e.Status, e.URL)
}

// IsRetryable classifies a fetch failure as transient. Transient failures
// are rate limiting (429), server errors (5xx), request timeouts, and
// refused connections; everything else is fatal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	return false
}
