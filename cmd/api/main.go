// Package main serves the read API over the unified store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"crypto-market-etl/internal/api"
	"crypto-market-etl/internal/config"
	"crypto-market-etl/internal/pipeline"
	"crypto-market-etl/internal/ratelimit"
	"crypto-market-etl/internal/retry"
	"crypto-market-etl/internal/source"
	chstore "crypto-market-etl/internal/storage/clickhouse"
	"crypto-market-etl/internal/storage/memory"
	"crypto-market-etl/internal/storage/migrations"
	pgstore "crypto-market-etl/internal/storage/postgres"
	"crypto-market-etl/internal/transform"
)

func main() {
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of Postgres/ClickHouse")
	flag.Parse()

	logger := log.New(os.Stdout, "[api] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	opts := api.Options{
		Logger:          logger,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	}

	if *useMemory {
		opts.CheckpointStore = memory.NewCheckpointStore()
		opts.UnifiedStore = memory.NewUnifiedStore()
		opts.RawStore = memory.NewRawStore()
	} else {
		if cfg.DatabaseURL == "" {
			logger.Fatal("DATABASE_URL is required (or pass -use-memory)")
		}
		if cfg.ClickhouseDSN == "" {
			logger.Fatal("CLICKHOUSE_DSN is required (or pass -use-memory)")
		}

		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}

		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse migrations: %v", err)
		}
		defer conn.Close()

		opts.CheckpointStore = pgstore.NewCheckpointStore(pool)
		opts.UnifiedStore = pgstore.NewUnifiedStore(pool)
		opts.RawStore = chstore.NewRawStore(conn)
		opts.Ping = pool.Ping
	}

	// Wire the ETL trigger against the same stores the API reads.
	retryPol := retry.NewPolicy(cfg.MaxRetries, cfg.InitialRetryDelay, cfg.MaxRetryDelay)
	opts.Runner = pipeline.New(pipeline.Options{
		Adapters:        buildAdapters(cfg),
		CheckpointStore: opts.CheckpointStore,
		RawStore:        opts.RawStore,
		UnifiedStore:    opts.UnifiedStore,
		Transformer:     transform.New(),
		Limiter:         ratelimit.New(cfg.RateLimitDelay),
		RetryPolicy:     &retryPol,
		Logger:          logger,
	})

	server := api.New(opts)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	if err := server.Run(addr); err != nil {
		logger.Fatalf("server: %v", err)
	}
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
