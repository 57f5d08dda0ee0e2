package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crypto-market-etl/internal/domain"
	"crypto-market-etl/internal/storage"
)

// unifiedKey is the upsert identity.
type unifiedKey struct {
	coinID     string
	source     domain.Source
	ingestedAt time.Time
}

// UnifiedStore is an in-memory implementation of storage.UnifiedStore.
// The map key mirrors the database's unique constraint.
type UnifiedStore struct {
	mu     sync.RWMutex
	data   map[unifiedKey]*domain.UnifiedRecord
	nextID int64
}

// NewUnifiedStore creates a new in-memory unified store.
func NewUnifiedStore() *UnifiedStore {
	return &UnifiedStore{data: make(map[unifiedKey]*domain.UnifiedRecord)}
}

// Compile-time interface check.
var _ storage.UnifiedStore = (*UnifiedStore)(nil)

// Upsert inserts or replaces the row for the record's identity key.
func (s *UnifiedStore) Upsert(_ context.Context, rec *domain.UnifiedRecord) error {
	if rec == nil || rec.CoinID == "" || !rec.Source.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := unifiedKey{rec.CoinID, rec.Source, rec.IngestedAt.UTC()}
	recCopy := *rec
	if existing, ok := s.data[key]; ok {
		// Replace value fields, keep the assigned row id.
		recCopy.ID = existing.ID
	} else {
		s.nextID++
		recCopy.ID = s.nextID
	}
	s.data[key] = &recCopy
	return nil
}

// Query returns one page ordered by ingested_at DESC plus the total count.
func (s *UnifiedStore) Query(_ context.Context, filter storage.QueryFilter) ([]*domain.UnifiedRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.UnifiedRecord
	for _, rec := range s.data {
		if filter.Source != "" && rec.Source != filter.Source {
			continue
		}
		if filter.CoinID != "" && rec.CoinID != filter.CoinID {
			continue
		}
		recCopy := *rec
		matched = append(matched, &recCopy)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].IngestedAt.Equal(matched[j].IngestedAt) {
			return matched[i].IngestedAt.After(matched[j].IngestedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 {
		size = total
	}
	start := (page - 1) * size
	if start >= total {
		return nil, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Count reports the number of stored rows. Test helper.
func (s *UnifiedStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
