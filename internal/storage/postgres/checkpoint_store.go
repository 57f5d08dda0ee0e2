package postgres

import (
	"context"
	"fmt"

	"crypto-market-etl/internal/domain"
	"crypto-market-etl/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL.
// The start/finish pair relies on a conditional upsert so that concurrent
// runs of the same source resolve to exactly one winner.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// TryStartRun claims the running state for a source. Returns false without
// error when another run already holds it.
func (s *CheckpointStore) TryStartRun(ctx context.Context, source domain.Source) (bool, error) {
	if !source.IsValid() {
		return false, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO etl_checkpoints (source, status, last_run_started_at)
		VALUES ($1, 'running', NOW())
		ON CONFLICT (source) DO UPDATE
		SET status = 'running',
		    last_run_started_at = NOW(),
		    error_message = ''
		WHERE etl_checkpoints.status <> 'running'
	`

	tag, err := s.pool.Exec(ctx, query, string(source))
	if err != nil {
		return false, fmt.Errorf("try start run: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FinishRun records the run outcome and releases the running state.
func (s *CheckpointStore) FinishRun(ctx context.Context, source domain.Source, outcome domain.RunOutcome) error {
	query := `
		UPDATE etl_checkpoints
		SET status = $2,
		    last_run_finished_at = NOW(),
		    records_processed = $3,
		    duration_seconds = $4,
		    error_message = $5
		WHERE source = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		string(source),
		string(outcome.Status),
		outcome.RecordsProcessed,
		outcome.DurationSeconds,
		outcome.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Get retrieves a source's checkpoint. Returns ErrNotFound if no run was
// ever recorded for it.
func (s *CheckpointStore) Get(ctx context.Context, source domain.Source) (*domain.Checkpoint, error) {
	query := `
		SELECT source, status, last_run_started_at, last_run_finished_at,
		       records_processed, duration_seconds, error_message
		FROM etl_checkpoints
		WHERE source = $1
	`

	var (
		cp        domain.Checkpoint
		sourceStr string
		statusStr string
	)
	err := s.pool.QueryRow(ctx, query, string(source)).Scan(
		&sourceStr,
		&statusStr,
		&cp.LastRunStartedAt,
		&cp.LastRunFinishedAt,
		&cp.RecordsProcessed,
		&cp.DurationSeconds,
		&cp.ErrorMessage,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}

	cp.Source = domain.Source(sourceStr)
	cp.Status = domain.RunStatus(statusStr)
	return &cp, nil
}

// List retrieves all checkpoints ordered by source name.
func (s *CheckpointStore) List(ctx context.Context) ([]*domain.Checkpoint, error) {
	query := `
		SELECT source, status, last_run_started_at, last_run_finished_at,
		       records_processed, duration_seconds, error_message
		FROM etl_checkpoints
		ORDER BY source ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*domain.Checkpoint
	for rows.Next() {
		var (
			cp        domain.Checkpoint
			sourceStr string
			statusStr string
		)
		err := rows.Scan(
			&sourceStr,
			&statusStr,
			&cp.LastRunStartedAt,
			&cp.LastRunFinishedAt,
			&cp.RecordsProcessed,
			&cp.DurationSeconds,
			&cp.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		cp.Source = domain.Source(sourceStr)
		cp.Status = domain.RunStatus(statusStr)
		checkpoints = append(checkpoints, &cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoint rows: %w", err)
	}
	return checkpoints, nil
}
