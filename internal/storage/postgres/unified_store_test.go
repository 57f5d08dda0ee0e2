package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-market-etl/internal/domain"
	"crypto-market-etl/internal/storage"
)

var testIngestedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testRecord(coinID string, source domain.Source, ingestedAt time.Time, price string) *domain.UnifiedRecord {
	rec := &domain.UnifiedRecord{
		CoinID:     coinID,
		Name:       coinID,
		Symbol:     coinID,
		Source:     source,
		IngestedAt: ingestedAt,
	}
	if price != "" {
		rec.PriceUSD = decimal.NullDecimal{Decimal: decimal.RequireFromString(price), Valid: true}
	}
	return rec
}

func TestUnifiedStore_UpsertAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUnifiedStore(pool)
	ctx := context.Background()

	rec := testRecord("btc-bitcoin", domain.SourceCoinPaprika, testIngestedAt, "45000.5")
	rec.MarketCap = decimal.NullDecimal{Decimal: decimal.RequireFromString("850000000000"), Valid: true}
	require.NoError(t, store.Upsert(ctx, rec))

	got, total, err := store.Query(ctx, storage.QueryFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, got, 1)

	assert.Equal(t, "btc-bitcoin", got[0].CoinID)
	assert.Equal(t, domain.SourceCoinPaprika, got[0].Source)
	require.True(t, got[0].PriceUSD.Valid)
	assert.True(t, got[0].PriceUSD.Decimal.Equal(decimal.RequireFromString("45000.5")))
	require.True(t, got[0].MarketCap.Valid)
	assert.False(t, got[0].Volume24h.Valid, "unset metric should round-trip as NULL")
	assert.True(t, got[0].IngestedAt.Equal(testIngestedAt))
}

func TestUnifiedStore_UpsertReplayIsIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUnifiedStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("btc-bitcoin", domain.SourceCoinPaprika, testIngestedAt, "45000.5")))
	require.NoError(t, store.Upsert(ctx, testRecord("btc-bitcoin", domain.SourceCoinPaprika, testIngestedAt, "46000")))

	got, total, err := store.Query(ctx, storage.QueryFilter{CoinID: "btc-bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "replaying the same identity must not create rows")
	require.Len(t, got, 1)
	assert.True(t, got[0].PriceUSD.Decimal.Equal(decimal.RequireFromString("46000")))
}

func TestUnifiedStore_DistinctIdentities(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUnifiedStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("btc-bitcoin", domain.SourceCoinPaprika, testIngestedAt, "1")))
	require.NoError(t, store.Upsert(ctx, testRecord("btc-bitcoin", domain.SourceCoinGecko, testIngestedAt, "2")))
	require.NoError(t, store.Upsert(ctx, testRecord("btc-bitcoin", domain.SourceCoinPaprika, testIngestedAt.Add(time.Hour), "3")))

	_, total, err := store.Query(ctx, storage.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestUnifiedStore_QueryFiltersAndPagination(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUnifiedStore(pool)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := testRecord("btc-bitcoin", domain.SourceCoinPaprika, testIngestedAt.Add(time.Duration(i)*time.Minute), "1")
		require.NoError(t, store.Upsert(ctx, rec))
	}
	require.NoError(t, store.Upsert(ctx, testRecord("eth-ethereum", domain.SourceCoinGecko, testIngestedAt, "2")))

	// Source filter.
	got, total, err := store.Query(ctx, storage.QueryFilter{Source: domain.SourceCoinGecko})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, "eth-ethereum", got[0].CoinID)

	// Pagination, newest first.
	page1, total, err := store.Query(ctx, storage.QueryFilter{CoinID: "btc-bitcoin", Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page1, 2)
	assert.True(t, page1[0].IngestedAt.After(page1[1].IngestedAt))
	assert.True(t, page1[0].IngestedAt.Equal(testIngestedAt.Add(4*time.Minute)))

	page3, _, err := store.Query(ctx, storage.QueryFilter{CoinID: "btc-bitcoin", Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page3, 1)

	empty, total, err := store.Query(ctx, storage.QueryFilter{CoinID: "btc-bitcoin", Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, empty)
}

func TestUnifiedStore_UpsertInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUnifiedStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Upsert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Upsert(ctx, testRecord("", domain.SourceCSV, testIngestedAt, "")), storage.ErrInvalidInput)
}
