package clickhouse

import (
	"context"
	"fmt"

	"crypto-market-etl/internal/domain"
	"crypto-market-etl/internal/storage"
)

// RawStore implements storage.RawStore using ClickHouse. The archive is a
// plain MergeTree: inserts only, duplicates from replayed runs are kept.
type RawStore struct {
	conn *Conn
}

// NewRawStore creates a new RawStore.
func NewRawStore(conn *Conn) *RawStore {
	return &RawStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RawStore = (*RawStore)(nil)

// Append persists one raw record.
func (s *RawStore) Append(ctx context.Context, rec *domain.RawRecord) error {
	if rec == nil || !rec.Source.IsValid() {
		return storage.ErrInvalidInput
	}
	return s.AppendBatch(ctx, []*domain.RawRecord{rec})
}

// AppendBatch persists a fetch batch in one insert.
func (s *RawStore) AppendBatch(ctx context.Context, recs []*domain.RawRecord) error {
	if len(recs) == 0 {
		return nil
	}
	for _, rec := range recs {
		if rec == nil || !rec.Source.IsValid() {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO raw_records (
			source, external_id, fetched_at, payload
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, rec := range recs {
		err = batch.Append(
			string(rec.Source),
			rec.ExternalID,
			rec.FetchedAt,
			string(rec.Payload),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// CountBySource returns the number of archived records for a source.
func (s *RawStore) CountBySource(ctx context.Context, source domain.Source) (int64, error) {
	query := `
		SELECT count(*) FROM raw_records
		WHERE source = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, string(source)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count raw records: %w", err)
	}
	return int64(count), nil
}
