package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnifiedRecord is the normalized shape all sources are mapped into.
// Identity for upsert purposes is (CoinID, Source, IngestedAt).
type UnifiedRecord struct {
	ID         int64 // storage-assigned, 0 until persisted
	CoinID     string
	Name       string
	Symbol     string
	PriceUSD   decimal.NullDecimal
	MarketCap  decimal.NullDecimal
	Volume24h  decimal.NullDecimal
	Source     Source
	IngestedAt time.Time
}
