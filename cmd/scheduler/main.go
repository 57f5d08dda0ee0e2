// Package main runs the ETL on a fixed interval until stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-market-etl/internal/config"
	"crypto-market-etl/internal/observability"
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
	interval := flag.Duration("interval", 0, "Run interval (overrides SCHEDULE_INTERVAL)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	flag.Parse()

	logger := log.New(os.Stdout, "[scheduler] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	runEvery := cfg.ScheduleInterval
	if *interval > 0 {
		runEvery = *interval
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
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

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		logger.Printf("metrics on %s/metrics", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			logger.Printf("metrics server: %v", err)
		}
	}()

	logger.Printf("running every %s", runEvery)

	// First run immediately, then on the ticker. The per-source checkpoint
	// claim keeps an overrunning cycle from stacking with the next one.
	runOnce(ctx, runner, logger)

	ticker := time.NewTicker(runEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Println("stopped")
			return
		case <-ticker.C:
			runOnce(ctx, runner, logger)
		}
	}
}

func runOnce(ctx context.Context, runner *pipeline.Runner, logger *log.Logger) {
	if ctx.Err() != nil {
		return
	}
	summary := runner.RunAll(ctx)
	logger.Printf("cycle done: %d succeeded, %d failed, %d skipped",
		summary.Succeeded, summary.Failed, summary.Skipped)
}

// stores bundles the three storage backends.
type stores struct {
	checkpoints storage.CheckpointStore
	raw         storage.RawStore
	unified     storage.UnifiedStore
}

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
