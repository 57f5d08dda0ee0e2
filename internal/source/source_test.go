package source

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// timeoutErr implements net.Error with Timeout() == true.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &HTTPError{StatusCode: 429, Status: "429 Too Many Requests"}, true},
		{"server error", &HTTPError{StatusCode: 500, Status: "500 Internal Server Error"}, true},
		{"bad gateway", &HTTPError{StatusCode: 502, Status: "502 Bad Gateway"}, true},
		{"not found", &HTTPError{StatusCode: 404, Status: "404 Not Found"}, false},
		{"unauthorized", &HTTPError{StatusCode: 401, Status: "401 Unauthorized"}, false},
		{"wrapped http error", fmt.Errorf("fetch: %w", &HTTPError{StatusCode: 503}), true},
		{"timeout", timeoutErr{}, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"plain error", errors.New("malformed payload"), false},
		{"context canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestHTTPError_Message(t *testing.T) {
	err := &HTTPError{StatusCode: 429, Status: "429 Too Many Requests", URL: "http://x/tickers"}
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "http://x/tickers")
}

func TestExtractStringField(t *testing.T) {
	doc := []byte(`{"id":"btc-bitcoin","rank":1}`)
	assert.Equal(t, "btc-bitcoin", extractStringField(doc, "id"))
	assert.Equal(t, "", extractStringField(doc, "rank"))
	assert.Equal(t, "", extractStringField(doc, "missing"))
	assert.Equal(t, "", extractStringField([]byte(`not json`), "id"))
}

// fixedTime pins the adapters' FetchedAt stamp in tests.
var fixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
