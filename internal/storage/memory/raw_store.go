package memory

import (
	"context"
	"sync"

	"crypto-market-etl/internal/domain"
	"crypto-market-etl/internal/storage"
)

// RawStore is an in-memory implementation of storage.RawStore.
// Strictly append-only, mirroring the archive table.
type RawStore struct {
	mu   sync.RWMutex
	data []*domain.RawRecord
}

// NewRawStore creates a new in-memory raw store.
func NewRawStore() *RawStore {
	return &RawStore{}
}

// Compile-time interface check.
var _ storage.RawStore = (*RawStore)(nil)

// Append persists one raw record.
func (s *RawStore) Append(_ context.Context, rec *domain.RawRecord) error {
	if rec == nil || !rec.Source.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recCopy := *rec
	s.data = append(s.data, &recCopy)
	return nil
}

// AppendBatch persists a fetch batch.
func (s *RawStore) AppendBatch(ctx context.Context, recs []*domain.RawRecord) error {
	for _, rec := range recs {
		if err := s.Append(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// CountBySource returns the number of archived records for a source.
func (s *RawStore) CountBySource(_ context.Context, source domain.Source) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, rec := range s.data {
		if rec.Source == source {
			n++
		}
	}
	return n, nil
}
