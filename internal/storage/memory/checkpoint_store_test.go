package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"crypto-market-etl/internal/domain"
	"crypto-market-etl/internal/storage"
)

func TestCheckpointStore_TryStartRun(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	ok, err := store.TryStartRun(ctx, domain.SourceCoinPaprika)
	if err != nil {
		t.Fatalf("TryStartRun failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected first TryStartRun to acquire the run")
	}

	cp, err := store.Get(ctx, domain.SourceCoinPaprika)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cp.Status != domain.RunStatusRunning {
		t.Errorf("Status mismatch: got %s, want %s", cp.Status, domain.RunStatusRunning)
	}
	if cp.LastRunStartedAt.IsZero() {
		t.Error("Expected LastRunStartedAt to be set")
	}
}

func TestCheckpointStore_SecondStartRefused(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	if _, err := store.TryStartRun(ctx, domain.SourceCoinGecko); err != nil {
		t.Fatalf("TryStartRun failed: %v", err)
	}

	ok, err := store.TryStartRun(ctx, domain.SourceCoinGecko)
	if err != nil {
		t.Fatalf("Second TryStartRun failed: %v", err)
	}
	if ok {
		t.Error("Expected second TryStartRun to be refused while running")
	}
}

func TestCheckpointStore_ConcurrentStartExactlyOneWins(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	const attempts = 50
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.TryStartRun(ctx, domain.SourceCSV)
			if err != nil {
				t.Errorf("TryStartRun failed: %v", err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Errorf("Expected exactly one winner, got %d", won)
	}
}

func TestCheckpointStore_FinishRunSuccess(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	if _, err := store.TryStartRun(ctx, domain.SourceCoinPaprika); err != nil {
		t.Fatalf("TryStartRun failed: %v", err)
	}

	err := store.FinishRun(ctx, domain.SourceCoinPaprika, domain.SuccessOutcome(42, 1.5))
	if err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	cp, err := store.Get(ctx, domain.SourceCoinPaprika)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cp.Status != domain.RunStatusSuccess {
		t.Errorf("Status mismatch: got %s, want %s", cp.Status, domain.RunStatusSuccess)
	}
	if cp.RecordsProcessed != 42 {
		t.Errorf("RecordsProcessed mismatch: got %d, want 42", cp.RecordsProcessed)
	}
	if cp.LastRunFinishedAt == nil {
		t.Error("Expected LastRunFinishedAt to be set")
	}
	if cp.ErrorMessage != "" {
		t.Errorf("Expected empty error message, got %q", cp.ErrorMessage)
	}
}

func TestCheckpointStore_FinishRunFailureZeroRecords(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	if _, err := store.TryStartRun(ctx, domain.SourceCoinGecko); err != nil {
		t.Fatalf("TryStartRun failed: %v", err)
	}

	err := store.FinishRun(ctx, domain.SourceCoinGecko, domain.FailureOutcome(errors.New("fetch blew up"), 0.7))
	if err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	cp, err := store.Get(ctx, domain.SourceCoinGecko)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cp.Status != domain.RunStatusFailure {
		t.Errorf("Status mismatch: got %s, want %s", cp.Status, domain.RunStatusFailure)
	}
	if cp.RecordsProcessed != 0 {
		t.Errorf("Expected 0 records on failure, got %d", cp.RecordsProcessed)
	}
	if cp.ErrorMessage != "fetch blew up" {
		t.Errorf("ErrorMessage mismatch: got %q", cp.ErrorMessage)
	}
}

func TestCheckpointStore_RestartAfterFinish(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	if _, err := store.TryStartRun(ctx, domain.SourceCSV); err != nil {
		t.Fatalf("TryStartRun failed: %v", err)
	}
	if err := store.FinishRun(ctx, domain.SourceCSV, domain.SuccessOutcome(1, 0.1)); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	ok, err := store.TryStartRun(ctx, domain.SourceCSV)
	if err != nil {
		t.Fatalf("TryStartRun after finish failed: %v", err)
	}
	if !ok {
		t.Error("Expected restart after finished run to succeed")
	}
}

func TestCheckpointStore_FinishUnknownSource(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	err := store.FinishRun(ctx, domain.SourceCSV, domain.SuccessOutcome(0, 0))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCheckpointStore_GetNotFound(t *testing.T) {
	store := NewCheckpointStore()

	_, err := store.Get(context.Background(), domain.SourceCoinPaprika)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCheckpointStore_InvalidSource(t *testing.T) {
	store := NewCheckpointStore()

	_, err := store.TryStartRun(context.Background(), domain.Source("bogus"))
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestCheckpointStore_ListOrdered(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	for _, src := range []domain.Source{domain.SourceCSV, domain.SourceCoinPaprika, domain.SourceCoinGecko} {
		if _, err := store.TryStartRun(ctx, src); err != nil {
			t.Fatalf("TryStartRun failed: %v", err)
		}
	}

	cps, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cps) != 3 {
		t.Fatalf("Expected 3 checkpoints, got %d", len(cps))
	}

	want := []domain.Source{domain.SourceCoinGecko, domain.SourceCoinPaprika, domain.SourceCSV}
	for i, cp := range cps {
		if cp.Source != want[i] {
			t.Errorf("Order mismatch at %d: got %s, want %s", i, cp.Source, want[i])
		}
	}
}
