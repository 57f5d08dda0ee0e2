package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"crypto-market-etl/internal/domain"
	"crypto-market-etl/internal/storage"
)

// UnifiedStore implements storage.UnifiedStore using PostgreSQL.
type UnifiedStore struct {
	pool *Pool
}

// NewUnifiedStore creates a new UnifiedStore.
func NewUnifiedStore(pool *Pool) *UnifiedStore {
	return &UnifiedStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UnifiedStore = (*UnifiedStore)(nil)

// Upsert inserts or replaces the row identified by (coin_id, source,
// ingested_at). Replaying the same record is a no-op beyond refreshing
// the value columns.
func (s *UnifiedStore) Upsert(ctx context.Context, rec *domain.UnifiedRecord) error {
	if rec == nil || rec.CoinID == "" || !rec.Source.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO unified_records (
			coin_id, name, symbol, price_usd, market_cap, volume_24h, source, ingested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (coin_id, source, ingested_at) DO UPDATE
		SET name = EXCLUDED.name,
		    symbol = EXCLUDED.symbol,
		    price_usd = EXCLUDED.price_usd,
		    market_cap = EXCLUDED.market_cap,
		    volume_24h = EXCLUDED.volume_24h
	`

	_, err := s.pool.Exec(ctx, query,
		rec.CoinID,
		rec.Name,
		rec.Symbol,
		rec.PriceUSD,
		rec.MarketCap,
		rec.Volume24h,
		string(rec.Source),
		rec.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert unified record: %w", err)
	}
	return nil
}

// Query returns one page of records ordered by ingested_at DESC plus the
// total count matching the filter.
func (s *UnifiedStore) Query(ctx context.Context, filter storage.QueryFilter) ([]*domain.UnifiedRecord, int, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Source != "" {
		args = append(args, string(filter.Source))
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.CoinID != "" {
		args = append(args, filter.CoinID)
		conditions = append(conditions, fmt.Sprintf("coin_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT count(*) FROM unified_records %s", where)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count unified records: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 {
		size = total
	}

	query := fmt.Sprintf(`
		SELECT id, coin_id, name, symbol, price_usd, market_cap, volume_24h, source, ingested_at
		FROM unified_records
		%s
		ORDER BY ingested_at DESC, id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, size, (page-1)*size)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query unified records: %w", err)
	}
	defer rows.Close()

	records, err := scanUnifiedRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// scanUnifiedRecords scans multiple rows into a slice of UnifiedRecord.
func scanUnifiedRecords(rows pgx.Rows) ([]*domain.UnifiedRecord, error) {
	var records []*domain.UnifiedRecord

	for rows.Next() {
		var (
			rec       domain.UnifiedRecord
			sourceStr string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.CoinID,
			&rec.Name,
			&rec.Symbol,
			&rec.PriceUSD,
			&rec.MarketCap,
			&rec.Volume24h,
			&sourceStr,
			&rec.IngestedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan unified record row: %w", err)
		}
		rec.Source = domain.Source(sourceStr)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unified record rows: %w", err)
	}
	return records, nil
}
