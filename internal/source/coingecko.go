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

// DefaultCoinGeckoBaseURL is the public CoinGecko API v3 endpoint.
const DefaultCoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGecko fetches market data from the CoinGecko REST API.
type CoinGecko struct {
	baseURL string
	perPage int
	page    int
	client  *http.Client
	now     func() time.Time
}

// CoinGeckoOption configures CoinGecko.
type CoinGeckoOption func(*CoinGecko)

// WithCoinGeckoPerPage sets the batch size requested per fetch.
func WithCoinGeckoPerPage(n int) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.perPage = n
	}
}

// WithCoinGeckoPage sets the page to fetch (1-based).
func WithCoinGeckoPage(n int) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.page = n
	}
}

// WithCoinGeckoTimeout sets the per-request timeout.
func WithCoinGeckoTimeout(d time.Duration) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.client.Timeout = d
	}
}

// WithCoinGeckoHTTPClient sets a custom http.Client.
func WithCoinGeckoHTTPClient(client *http.Client) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.client = client
	}
}

// NewCoinGecko creates a CoinGecko adapter for the given base URL.
func NewCoinGecko(baseURL string, opts ...CoinGeckoOption) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoBaseURL
	}
	c := &CoinGecko{
		baseURL: baseURL,
		perPage: DefaultFetchLimit,
		page:    1,
		client:  &http.Client{Timeout: DefaultFetchTimeout},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source identifies the provider.
func (c *CoinGecko) Source() domain.Source {
	return domain.SourceCoinGecko
}

// Compile-time interface check.
var _ Adapter = (*CoinGecko)(nil)

// FetchBatch retrieves one page of USD market data ordered by market cap.
func (c *CoinGecko) FetchBatch(ctx context.Context) ([]*domain.RawRecord, error) {
	params := url.Values{
		"vs_currency": {"usd"},
		"order":       {"market_cap_desc"},
		"per_page":    {strconv.Itoa(c.perPage)},
		"page":        {strconv.Itoa(c.page)},
	}
	endpoint := fmt.Sprintf("%s/coins/markets?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch coingecko markets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: endpoint}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var coins []json.RawMessage
	if err := json.Unmarshal(body, &coins); err != nil {
		return nil, fmt.Errorf("unmarshal markets: %w", err)
	}

	fetchedAt := c.now()
	records := make([]*domain.RawRecord, 0, len(coins))
	for _, coin := range coins {
		records = append(records, &domain.RawRecord{
			Source:     domain.SourceCoinGecko,
			ExternalID: extractStringField(coin, "id"),
			FetchedAt:  fetchedAt,
			Payload:    coin,
		})
	}

	return records, nil
}
