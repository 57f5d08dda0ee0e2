package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crypto-market-etl/internal/domain"
)

// Default CoinPaprika configuration.
const (
	DefaultCoinPaprikaBaseURL = "https://api.coinpaprika.com/v1"
	DefaultFetchTimeout       = 30 * time.Second
	DefaultFetchLimit         = 10
)

// CoinPaprika fetches top tickers from the CoinPaprika REST API.
type CoinPaprika struct {
	baseURL string
	apiKey  string
	limit   int
	client  *http.Client
	now     func() time.Time
}

// CoinPaprikaOption configures CoinPaprika.
type CoinPaprikaOption func(*CoinPaprika)

// WithCoinPaprikaAPIKey sets the Authorization header value.
func WithCoinPaprikaAPIKey(key string) CoinPaprikaOption {
	return func(c *CoinPaprika) {
		c.apiKey = key
	}
}

// WithCoinPaprikaLimit sets the batch size requested per fetch.
func WithCoinPaprikaLimit(n int) CoinPaprikaOption {
	return func(c *CoinPaprika) {
		c.limit = n
	}
}

// WithCoinPaprikaTimeout sets the per-request timeout.
func WithCoinPaprikaTimeout(d time.Duration) CoinPaprikaOption {
	return func(c *CoinPaprika) {
		c.client.Timeout = d
	}
}

// WithCoinPaprikaHTTPClient sets a custom http.Client.
func WithCoinPaprikaHTTPClient(client *http.Client) CoinPaprikaOption {
	return func(c *CoinPaprika) {
		c.client = client
	}
}

// NewCoinPaprika creates a CoinPaprika adapter for the given base URL.
func NewCoinPaprika(baseURL string, opts ...CoinPaprikaOption) *CoinPaprika {
	if baseURL == "" {
		baseURL = DefaultCoinPaprikaBaseURL
	}
	c := &CoinPaprika{
		baseURL: baseURL,
		limit:   DefaultFetchLimit,
		client:  &http.Client{Timeout: DefaultFetchTimeout},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source identifies the provider.
func (c *CoinPaprika) Source() domain.Source {
	return domain.SourceCoinPaprika
}

// Compile-time interface check.
var _ Adapter = (*CoinPaprika)(nil)

// FetchBatch retrieves the top tickers by market cap.
// Each ticker element is kept verbatim as the raw payload.
func (c *CoinPaprika) FetchBatch(ctx context.Context) ([]*domain.RawRecord, error) {
	endpoint := fmt.Sprintf("%s/tickers?%s", c.baseURL,
		url.Values{"limit": {strconv.Itoa(c.limit)}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch coinpaprika tickers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: endpoint}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var tickers []json.RawMessage
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("unmarshal tickers: %w", err)
	}

	fetchedAt := c.now()
	records := make([]*domain.RawRecord, 0, len(tickers))
	for _, ticker := range tickers {
		records = append(records, &domain.RawRecord{
			Source:     domain.SourceCoinPaprika,
			ExternalID: extractStringField(ticker, "id"),
			FetchedAt:  fetchedAt,
			Payload:    ticker,
		})
	}

	return records, nil
}

// extractStringField pulls one top-level string field out of a JSON
// document, returning "" when absent or of the wrong type.
func extractStringField(doc json.RawMessage, field string) string {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(doc, &probe); err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(probe[field], &value); err != nil {
		return ""
	}
	return value
}
