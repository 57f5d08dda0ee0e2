// Package ratelimit spaces outbound requests per source.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"crypto-market-etl/internal/domain"
)

// Limiter enforces a minimum interval between successive calls for the
// same source. Sources are tracked independently: waiting on one source
// never delays another.
type Limiter struct {
	interval time.Duration

	mu   sync.Mutex
	next map[domain.Source]time.Time // earliest permitted time per source
	now  func() time.Time
}

// New creates a Limiter with the given minimum interval between calls.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		next:     make(map[domain.Source]time.Time),
		now:      time.Now,
	}
}

// Wait blocks until at least the configured interval has elapsed since the
// previous call for the same source. The first call per source returns
// immediately. Fails only on context cancellation.
func (l *Limiter) Wait(ctx context.Context, source domain.Source) error {
	wait := l.reserve(source)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reserve claims the source's next permitted slot and returns how long the
// caller must sleep. The lock is held only for the map update, never while
// sleeping, so sources do not contend on each other's delays.
func (l *Limiter) reserve(source domain.Source) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	at := l.next[source]
	if at.Before(now) {
		at = now
	}
	l.next[source] = at.Add(l.interval)
	return at.Sub(now)
}
