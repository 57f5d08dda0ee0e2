package ratelimit

import (
	"context"
	"testing"
	"time"

	"crypto-market-etl/internal/domain"
)

func TestLimiter_FirstCallImmediate(t *testing.T) {
	l := New(time.Second)
	ctx := context.Background()

	start := time.Now()
	if err := l.Wait(ctx, domain.SourceCoinPaprika); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first call should not block, took %v", elapsed)
	}
}

func TestLimiter_EnforcesInterval(t *testing.T) {
	interval := 50 * time.Millisecond
	l := New(interval)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx, domain.SourceCoinGecko); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	elapsed := time.Since(start)

	// Three calls: first immediate, then two full intervals.
	if elapsed < 2*interval {
		t.Errorf("expected at least %v between three calls, got %v", 2*interval, elapsed)
	}
}

func TestLimiter_SourcesIndependent(t *testing.T) {
	l := New(time.Second)
	ctx := context.Background()

	if err := l.Wait(ctx, domain.SourceCoinPaprika); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	// A different source must not be throttled by the first one.
	start := time.Now()
	if err := l.Wait(ctx, domain.SourceCSV); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("other source should not be delayed, took %v", elapsed)
	}
}

func TestLimiter_ContextCancel(t *testing.T) {
	l := New(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	if err := l.Wait(ctx, domain.SourceCSV); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- l.Wait(ctx, domain.SourceCSV)
	}()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected context error, got nil")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}
