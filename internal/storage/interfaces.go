package storage

import (
	"context"

	"crypto-market-etl/internal/domain"
)

// CheckpointStore provides durable per-source run state with
// compare-and-set exclusion semantics.
type CheckpointStore interface {
	// TryStartRun atomically transitions the source's checkpoint to running.
	// Returns false (and leaves state unchanged) if a run is already in
	// progress for the source. Creates the checkpoint on first use.
	// Must behave atomically under concurrent invocation for the same source.
	TryStartRun(ctx context.Context, source domain.Source) (bool, error)

	// FinishRun atomically commits the terminal outcome of a run.
	// This is the single commit point: partial updates are never observable.
	FinishRun(ctx context.Context, source domain.Source, outcome domain.RunOutcome) error

	// Get retrieves the checkpoint for a source. Returns ErrNotFound if the
	// source has never run.
	Get(ctx context.Context, source domain.Source) (*domain.Checkpoint, error)

	// List retrieves all checkpoints ordered by source name.
	List(ctx context.Context) ([]*domain.Checkpoint, error)
}

// RawStore persists raw payloads append-only. Records are never updated
// or deleted; repeated runs may archive the same payload twice.
type RawStore interface {
	// Append persists one raw record.
	Append(ctx context.Context, rec *domain.RawRecord) error

	// AppendBatch persists a fetch batch in one round trip.
	AppendBatch(ctx context.Context, recs []*domain.RawRecord) error

	// CountBySource returns the number of archived records for a source.
	CountBySource(ctx context.Context, source domain.Source) (int64, error)
}

// QueryFilter selects unified records for the read API.
// Zero values mean "no filter"; Page is 1-based.
type QueryFilter struct {
	Source   domain.Source
	CoinID   string
	Page     int
	PageSize int
}

// UnifiedStore persists normalized records keyed by
// (coin_id, source, ingested_at).
type UnifiedStore interface {
	// Upsert inserts the record, or replaces the row's value fields when the
	// identity key already exists. Repeated calls with the same key leave
	// exactly one row. Safe under concurrent calls.
	Upsert(ctx context.Context, rec *domain.UnifiedRecord) error

	// Query returns one page of records matching the filter ordered by
	// ingested_at DESC, plus the total match count.
	Query(ctx context.Context, filter QueryFilter) ([]*domain.UnifiedRecord, int, error)
}
