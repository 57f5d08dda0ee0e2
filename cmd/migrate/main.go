// Package main applies the embedded schema migrations and exits.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"crypto-market-etl/internal/config"
	"crypto-market-etl/internal/storage/migrations"
	pgstore "crypto-market-etl/internal/storage/postgres"
)

func main() {
	skipClickhouse := flag.Bool("skip-clickhouse", false, "Only migrate Postgres")
	flag.Parse()

	logger := log.New(os.Stdout, "[migrate] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("postgres migrations: %v", err)
	}
	logger.Println("postgres migrations applied")

	if *skipClickhouse {
		return
	}
	if cfg.ClickhouseDSN == "" {
		logger.Fatal("CLICKHOUSE_DSN is required (or pass -skip-clickhouse)")
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		logger.Fatalf("clickhouse migrations: %v", err)
	}
	defer conn.Close()
	logger.Println("clickhouse migrations applied")
}
