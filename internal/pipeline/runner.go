// Package pipeline coordinates the per-source ETL run:
// checkpoint claim → fetch → archive → transform → upsert → commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"crypto-market-etl/internal/domain"
	"crypto-market-etl/internal/observability"
	"crypto-market-etl/internal/ratelimit"
	"crypto-market-etl/internal/retry"
	"crypto-market-etl/internal/source"
	"crypto-market-etl/internal/storage"
	"crypto-market-etl/internal/transform"
)

// Runner executes ETL runs across all configured sources. Sources run
// concurrently and independently: one source failing never affects the
// others.
type Runner struct {
	adapters    []source.Adapter
	checkpoints storage.CheckpointStore
	raw         storage.RawStore
	unified     storage.UnifiedStore
	transformer *transform.Transformer
	limiter     *ratelimit.Limiter
	retryPolicy retry.Policy
	logger      *log.Logger
	now         func() time.Time
}

// Options for creating Runner.
type Options struct {
	// Required
	Adapters        []source.Adapter
	CheckpointStore storage.CheckpointStore
	RawStore        storage.RawStore
	UnifiedStore    storage.UnifiedStore
	Transformer     *transform.Transformer

	// Optional
	Limiter     *ratelimit.Limiter // nil disables rate limiting
	RetryPolicy *retry.Policy      // nil uses retry.DefaultPolicy
	Logger      *log.Logger        // nil uses log.Default()
}

// New creates a new Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	policy := retry.DefaultPolicy()
	if opts.RetryPolicy != nil {
		policy = *opts.RetryPolicy
	}
	transformer := opts.Transformer
	if transformer == nil {
		transformer = transform.New()
	}

	return &Runner{
		adapters:    opts.Adapters,
		checkpoints: opts.CheckpointStore,
		raw:         opts.RawStore,
		unified:     opts.UnifiedStore,
		transformer: transformer,
		limiter:     opts.Limiter,
		retryPolicy: policy,
		logger:      logger,
		now:         time.Now,
	}
}

// SourceResult is the outcome of one source's run.
type SourceResult struct {
	Source           domain.Source
	Skipped          bool // another run already held the source
	RecordsProcessed int
	RecordsSkipped   int // dropped by validation
	Duration         time.Duration
	Err              error
}

// Summary aggregates the results of one RunAll invocation.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Results   []SourceResult
}

// RunAll executes one ETL run for every adapter concurrently and waits for
// all of them. Per-source failures are reported in the Summary, never as an
// error: the only error case is a nil receiver misuse.
func (r *Runner) RunAll(ctx context.Context) *Summary {
	results := make([]SourceResult, len(r.adapters))

	var wg sync.WaitGroup
	for i, adapter := range r.adapters {
		wg.Add(1)
		go func(i int, adapter source.Adapter) {
			defer wg.Done()
			results[i] = r.runSource(ctx, adapter)
		}(i, adapter)
	}
	wg.Wait()

	summary := &Summary{Results: results}
	for _, res := range results {
		switch {
		case res.Skipped:
			summary.Skipped++
		case res.Err != nil:
			summary.Failed++
		default:
			summary.Succeeded++
		}
	}
	return summary
}

// runSource executes the full run for one source. Every terminal path goes
// through FinishRun so the checkpoint always returns to a settled state.
func (r *Runner) runSource(ctx context.Context, adapter source.Adapter) SourceResult {
	src := adapter.Source()
	result := SourceResult{Source: src}

	ok, err := r.checkpoints.TryStartRun(ctx, src)
	if err != nil {
		result.Err = fmt.Errorf("start run for %s: %w", src, err)
		return result
	}
	if !ok {
		r.logger.Printf("[pipeline] %s: run already in progress, skipping", src)
		result.Skipped = true
		return result
	}

	start := r.now()
	err = r.ingest(ctx, adapter, &result)
	result.Duration = r.now().Sub(start)
	seconds := result.Duration.Seconds()

	if err != nil {
		result.Err = err
		r.logger.Printf("[pipeline] %s: run failed after %.2fs: %v", src, seconds, err)
		observability.RecordRun(string(src), string(domain.RunStatusFailure), seconds)
		if finishErr := r.checkpoints.FinishRun(ctx, src, domain.FailureOutcome(err, seconds)); finishErr != nil {
			r.logger.Printf("[pipeline] %s: record failure checkpoint: %v", src, finishErr)
		}
		return result
	}

	r.logger.Printf("[pipeline] %s: run succeeded in %.2fs (%d records, %d dropped)",
		src, seconds, result.RecordsProcessed, result.RecordsSkipped)
	observability.RecordRun(string(src), string(domain.RunStatusSuccess), seconds)
	observability.RecordRecordsProcessed(string(src), result.RecordsProcessed)

	outcome := domain.SuccessOutcome(result.RecordsProcessed, seconds)
	if finishErr := r.checkpoints.FinishRun(ctx, src, outcome); finishErr != nil {
		result.Err = fmt.Errorf("commit run for %s: %w", src, finishErr)
	}
	return result
}

// ingest runs fetch → archive → transform → upsert. The returned error is
// the run's terminal failure; validation drops are counted, not returned.
func (r *Runner) ingest(ctx context.Context, adapter source.Adapter, result *SourceResult) error {
	src := adapter.Source()

	batch, err := r.fetch(ctx, adapter)
	if err != nil {
		observability.RecordFetchFailure(string(src))
		return fmt.Errorf("fetch %s: %w", src, err)
	}
	if len(batch) == 0 {
		r.logger.Printf("[pipeline] %s: empty batch", src)
		return nil
	}

	// Archive before transforming so the raw payloads survive even when
	// normalization rejects them.
	if err := r.raw.AppendBatch(ctx, batch); err != nil {
		observability.RecordStoreError("raw", "append")
		return fmt.Errorf("archive %s batch: %w", src, err)
	}

	for _, rec := range batch {
		unified, err := r.transformer.Transform(rec)
		if err != nil {
			var vErr *transform.ValidationError
			if errors.As(err, &vErr) {
				r.logger.Printf("[pipeline] %s: dropping record %q: %v", src, rec.ExternalID, err)
				observability.RecordRecordSkipped(string(src))
				result.RecordsSkipped++
				continue
			}
			return fmt.Errorf("transform %s record: %w", src, err)
		}

		if err := r.unified.Upsert(ctx, unified); err != nil {
			observability.RecordStoreError("unified", "upsert")
			return fmt.Errorf("upsert %s record %q: %w", src, unified.CoinID, err)
		}
		result.RecordsProcessed++
	}

	return nil
}

// fetch pulls one batch from the adapter, honoring the rate limiter and
// retrying transient failures with exponential backoff.
func (r *Runner) fetch(ctx context.Context, adapter source.Adapter) ([]*domain.RawRecord, error) {
	src := adapter.Source()

	var batch []*domain.RawRecord
	attempt := 0
	start := r.now()
	err := r.retryPolicy.Do(ctx, func(ctx context.Context) error {
		if attempt > 0 {
			observability.RecordFetchRetry(string(src))
			r.logger.Printf("[pipeline] %s: retrying fetch (attempt %d)", src, attempt+1)
		}
		attempt++

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx, src); err != nil {
				return err
			}
		}

		recs, err := adapter.FetchBatch(ctx)
		if err != nil {
			return err
		}
		batch = recs
		return nil
	}, source.IsRetryable)
	observability.RecordFetch(string(src), r.now().Sub(start).Seconds())

	if err != nil {
		return nil, err
	}
	return batch, nil
}
