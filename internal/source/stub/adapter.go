// Package stub provides a scripted source adapter for tests.
package stub

import (
	"context"
	"sync"

	"crypto-market-etl/internal/domain"
)

// Call is one scripted FetchBatch result.
type Call struct {
	Records []*domain.RawRecord
	Err     error
}

// Adapter replays scripted fetch results in order. When the script is
// exhausted it keeps returning the last entry.
type Adapter struct {
	source domain.Source

	mu    sync.Mutex
	calls []Call
	count int
}

// New creates a stub adapter for the given source.
func New(source domain.Source, calls ...Call) *Adapter {
	return &Adapter{source: source, calls: calls}
}

// Source identifies the stubbed provider.
func (a *Adapter) Source() domain.Source {
	return a.source
}

// FetchBatch returns the next scripted result.
func (a *Adapter) FetchBatch(_ context.Context) ([]*domain.RawRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count++
	if len(a.calls) == 0 {
		return nil, nil
	}
	i := a.count - 1
	if i >= len(a.calls) {
		i = len(a.calls) - 1
	}
	return a.calls[i].Records, a.calls[i].Err
}

// Calls reports how many fetches were made.
func (a *Adapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}
