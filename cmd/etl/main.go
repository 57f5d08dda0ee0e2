// Package main runs one ETL pass across all configured sources and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"crypto-market-etl/internal/config"
	"crypto-market-etl/internal/pipeline"
	"crypto-market-etl/internal/ratelimit"
	"crypto-market-etl/internal/retry"
	"crypto-market-etl/internal/source"
	"crypto-market-etl/internal/storage"
	chstore "crypto-market-etl/internal/storage/clickhouse"
	"crypto-market-etl/internal/storage/memory"
	"crypto-market-etl/internal/storage/migrations"
	pgstore "crypto-market-etl/internal/storage/postgres"
	"crypto-market-etl/internal/transform"
)

func main() {
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of Postgres/ClickHouse")
	flag.Parse()

	logger := log.New(os.Stdout, "[etl] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, cancelling run", sig)
		cancel()
	}()

	stores, closeStores, err := buildStores(ctx, cfg, *useMemory)
	if err != nil {
		logger.Fatalf("init storage: %v", err)
	}
	defer closeStores()

	runner := pipeline.New(pipeline.Options{
		Adapters:        buildAdapters(cfg),
		CheckpointStore: stores.checkpoints,
		RawStore:        stores.raw,
		UnifiedStore:    stores.unified,
		Transformer:     transform.New(),
		Limiter:         ratelimit.New(cfg.RateLimitDelay),
		RetryPolicy:     retryPolicy(cfg),
		Logger:          logger,
	})

	summary := runner.RunAll(ctx)

	fmt.Printf("Run completed: %d succeeded, %d failed, %d skipped\n",
		summary.Succeeded, summary.Failed, summary.Skipped)
	for _, res := range summary.Results {
		switch {
		case res.Skipped:
			fmt.Printf("  %-12s skipped (run in progress)\n", res.Source)
		case res.Err != nil:
			fmt.Printf("  %-12s failed in %.2fs: %v\n", res.Source, res.Duration.Seconds(), res.Err)
		default:
			fmt.Printf("  %-12s ok in %.2fs (%d records, %d dropped)\n",
				res.Source, res.Duration.Seconds(), res.RecordsProcessed, res.RecordsSkipped)
		}
	}

	if summary.Succeeded == 0 && summary.Failed > 0 {
		os.Exit(1)
	}
}

// stores bundles the three storage backends.
type stores struct {
	checkpoints storage.CheckpointStore
	raw         storage.RawStore
	unified     storage.UnifiedStore
}

// buildStores wires Postgres and ClickHouse (running migrations first), or
// the in-memory equivalents for local runs.
func buildStores(ctx context.Context, cfg *config.Config, useMemory bool) (*stores, func(), error) {
	if useMemory {
		return &stores{
			checkpoints: memory.NewCheckpointStore(),
			raw:         memory.NewRawStore(),
			unified:     memory.NewUnifiedStore(),
		}, func() {}, nil
	}

	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required (or pass -use-memory)")
	}
	if cfg.ClickhouseDSN == "" {
		return nil, nil, fmt.Errorf("CLICKHOUSE_DSN is required (or pass -use-memory)")
	}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		conn.Close()
	}
	return &stores{
		checkpoints: pgstore.NewCheckpointStore(pool),
		raw:         chstore.NewRawStore(conn),
		unified:     pgstore.NewUnifiedStore(pool),
	}, cleanup, nil
}

// buildAdapters constructs one adapter per configured source.
func buildAdapters(cfg *config.Config) []source.Adapter {
	paprikaOpts := []source.CoinPaprikaOption{
		source.WithCoinPaprikaLimit(cfg.FetchLimit),
		source.WithCoinPaprikaTimeout(cfg.FetchTimeout),
	}
	if cfg.CoinPaprikaAPIKey != "" {
		paprikaOpts = append(paprikaOpts, source.WithCoinPaprikaAPIKey(cfg.CoinPaprikaAPIKey))
	}

	return []source.Adapter{
		source.NewCoinPaprika(cfg.CoinPaprikaBaseURL, paprikaOpts...),
		source.NewCoinGecko(cfg.CoinGeckoBaseURL,
			source.WithCoinGeckoPerPage(cfg.FetchLimit),
			source.WithCoinGeckoTimeout(cfg.FetchTimeout),
		),
		source.NewCSVFile(cfg.CSVFilePath),
	}
}

func retryPolicy(cfg *config.Config) *retry.Policy {
	p := retry.NewPolicy(cfg.MaxRetries, cfg.InitialRetryDelay, cfg.MaxRetryDelay)
	return &p
}
