// Package transform maps raw source payloads into the unified schema.
package transform

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"crypto-market-etl/internal/domain"
)

// ValidationError marks a single malformed raw record. The record is
// dropped from its batch; the batch itself continues.
type ValidationError struct {
	Source domain.Source
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %s record: field %q %s", e.Source, e.Field, e.Reason)
}

// Transformer converts raw records into unified records. Identical raw
// input always yields identical output apart from IngestedAt, which is
// stamped from the injected clock at transform time.
type Transformer struct {
	now func() time.Time
}

// New creates a Transformer using the wall clock.
func New() *Transformer {
	return &Transformer{now: time.Now}
}

// WithClock overrides the IngestedAt clock. Tests use a fixed clock to
// make upsert identities reproducible.
func (t *Transformer) WithClock(now func() time.Time) *Transformer {
	t.now = now
	return t
}

// Transform maps one raw record into the unified schema, dispatching on
// the closed set of known sources. Returns *ValidationError when the
// record is missing its identity field or fails type coercion.
func (t *Transformer) Transform(raw *domain.RawRecord) (*domain.UnifiedRecord, error) {
	if raw == nil {
		return nil, &ValidationError{Field: "payload", Reason: "is nil"}
	}

	var (
		rec *domain.UnifiedRecord
		err error
	)
	switch raw.Source {
	case domain.SourceCoinPaprika:
		rec, err = transformCoinPaprika(raw.Payload)
	case domain.SourceCoinGecko:
		rec, err = transformCoinGecko(raw.Payload)
	case domain.SourceCSV:
		rec, err = transformCSV(raw.Payload)
	default:
		return nil, &ValidationError{Source: raw.Source, Field: "source", Reason: "is unknown"}
	}
	if err != nil {
		return nil, err
	}

	rec.Source = raw.Source
	rec.IngestedAt = t.now().UTC()
	return rec, nil
}

// coinpaprika tickers carry USD figures nested under quotes.USD.
func transformCoinPaprika(payload json.RawMessage) (*domain.UnifiedRecord, error) {
	var doc struct {
		ID     string     `json:"id"`
		Name   string     `json:"name"`
		Symbol string     `json:"symbol"`
		Quotes struct {
			USD struct {
				Price     json.RawMessage `json:"price"`
				MarketCap json.RawMessage `json:"market_cap"`
				Volume24h json.RawMessage `json:"volume_24h"`
			} `json:"USD"`
		} `json:"quotes"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &ValidationError{Source: domain.SourceCoinPaprika, Field: "payload", Reason: "is not a ticker document"}
	}
	if doc.ID == "" {
		return nil, &ValidationError{Source: domain.SourceCoinPaprika, Field: "coin_id", Reason: "is missing"}
	}

	rec := &domain.UnifiedRecord{CoinID: doc.ID, Name: doc.Name, Symbol: doc.Symbol}
	var err error
	if rec.PriceUSD, err = coerceDecimal(domain.SourceCoinPaprika, "price_usd", doc.Quotes.USD.Price); err != nil {
		return nil, err
	}
	if rec.MarketCap, err = coerceDecimal(domain.SourceCoinPaprika, "market_cap", doc.Quotes.USD.MarketCap); err != nil {
		return nil, err
	}
	if rec.Volume24h, err = coerceDecimal(domain.SourceCoinPaprika, "volume_24h", doc.Quotes.USD.Volume24h); err != nil {
		return nil, err
	}
	return rec, nil
}

// coingecko markets use flat current_price/market_cap/total_volume fields.
func transformCoinGecko(payload json.RawMessage) (*domain.UnifiedRecord, error) {
	var doc struct {
		ID           string          `json:"id"`
		Name         string          `json:"name"`
		Symbol       string          `json:"symbol"`
		CurrentPrice json.RawMessage `json:"current_price"`
		MarketCap    json.RawMessage `json:"market_cap"`
		TotalVolume  json.RawMessage `json:"total_volume"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &ValidationError{Source: domain.SourceCoinGecko, Field: "payload", Reason: "is not a market document"}
	}
	if doc.ID == "" {
		return nil, &ValidationError{Source: domain.SourceCoinGecko, Field: "coin_id", Reason: "is missing"}
	}

	rec := &domain.UnifiedRecord{CoinID: doc.ID, Name: doc.Name, Symbol: doc.Symbol}
	var err error
	if rec.PriceUSD, err = coerceDecimal(domain.SourceCoinGecko, "price_usd", doc.CurrentPrice); err != nil {
		return nil, err
	}
	if rec.MarketCap, err = coerceDecimal(domain.SourceCoinGecko, "market_cap", doc.MarketCap); err != nil {
		return nil, err
	}
	if rec.Volume24h, err = coerceDecimal(domain.SourceCoinGecko, "volume_24h", doc.TotalVolume); err != nil {
		return nil, err
	}
	return rec, nil
}

// csv rows arrive as string-valued documents keyed by header column.
func transformCSV(payload json.RawMessage) (*domain.UnifiedRecord, error) {
	var doc struct {
		CoinID    string          `json:"coin_id"`
		Name      string          `json:"name"`
		Symbol    string          `json:"symbol"`
		PriceUSD  json.RawMessage `json:"price_usd"`
		MarketCap json.RawMessage `json:"market_cap"`
		Volume24h json.RawMessage `json:"volume_24h"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &ValidationError{Source: domain.SourceCSV, Field: "payload", Reason: "is not a row document"}
	}
	if doc.CoinID == "" {
		return nil, &ValidationError{Source: domain.SourceCSV, Field: "coin_id", Reason: "is missing"}
	}

	rec := &domain.UnifiedRecord{CoinID: doc.CoinID, Name: doc.Name, Symbol: doc.Symbol}
	var err error
	if rec.PriceUSD, err = coerceDecimal(domain.SourceCSV, "price_usd", doc.PriceUSD); err != nil {
		return nil, err
	}
	if rec.MarketCap, err = coerceDecimal(domain.SourceCSV, "market_cap", doc.MarketCap); err != nil {
		return nil, err
	}
	if rec.Volume24h, err = coerceDecimal(domain.SourceCSV, "volume_24h", doc.Volume24h); err != nil {
		return nil, err
	}
	return rec, nil
}

// coerceDecimal accepts a JSON number, a numeric string, or null/absent.
// Absent and empty values default to null; non-numeric or negative values
// fail validation.
func coerceDecimal(source domain.Source, field string, raw json.RawMessage) (decimal.NullDecimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.NullDecimal{}, nil
	}

	text := string(raw)
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.NullDecimal{}, &ValidationError{Source: source, Field: field, Reason: "is not a valid string"}
		}
		if s == "" {
			return decimal.NullDecimal{}, nil
		}
		text = s
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}, &ValidationError{Source: source, Field: field, Reason: "is not numeric"}
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, &ValidationError{Source: source, Field: field, Reason: "is negative"}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
