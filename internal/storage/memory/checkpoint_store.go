// Package memory provides in-memory store implementations used by tests
// and the storage-less wiring path.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crypto-market-etl/internal/domain"
	"crypto-market-etl/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
// The mutex gives TryStartRun/FinishRun compare-and-set semantics.
type CheckpointStore struct {
	mu   sync.Mutex
	data map[domain.Source]*domain.Checkpoint
	now  func() time.Time
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		data: make(map[domain.Source]*domain.Checkpoint),
		now:  time.Now,
	}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// TryStartRun atomically claims the running state for a source.
func (s *CheckpointStore) TryStartRun(_ context.Context, source domain.Source) (bool, error) {
	if !source.IsValid() {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp, exists := s.data[source]
	if !exists {
		cp = &domain.Checkpoint{Source: source, Status: domain.RunStatusIdle}
		s.data[source] = cp
	}
	if cp.Status == domain.RunStatusRunning {
		return false, nil
	}

	cp.Status = domain.RunStatusRunning
	cp.LastRunStartedAt = s.now().UTC()
	cp.ErrorMessage = ""
	return true, nil
}

// FinishRun commits the run outcome in one step.
func (s *CheckpointStore) FinishRun(_ context.Context, source domain.Source, outcome domain.RunOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, exists := s.data[source]
	if !exists {
		return storage.ErrNotFound
	}

	finished := s.now().UTC()
	cp.Status = outcome.Status
	cp.LastRunFinishedAt = &finished
	cp.RecordsProcessed = outcome.RecordsProcessed
	cp.DurationSeconds = outcome.DurationSeconds
	cp.ErrorMessage = outcome.ErrorMessage
	return nil
}

// Get retrieves a source's checkpoint.
func (s *CheckpointStore) Get(_ context.Context, source domain.Source) (*domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, exists := s.data[source]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cpCopy := *cp
	return &cpCopy, nil
}

// List retrieves all checkpoints ordered by source name.
func (s *CheckpointStore) List(_ context.Context) ([]*domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*domain.Checkpoint, 0, len(s.data))
	for _, cp := range s.data {
		cpCopy := *cp
		result = append(result, &cpCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Source < result[j].Source
	})
	return result, nil
}
