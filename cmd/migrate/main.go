package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/navid-fn/ethmetrics/configs"
	"github.com/navid-fn/ethmetrics/internal/logger"
	"github.com/navid-fn/ethmetrics/internal/storage"
	"github.com/navid-fn/ethmetrics/internal/storage/migrations"

	_ "github.com/ClickHouse/clickhouse-go/v2" // ClickHouse driver
)

func main() {
	cfg := configs.AppLoad()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("Migrations completed successfully")
}

func run(cfg *configs.AppConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	store := storage.NewGormStore(db)
	defer store.Close()

	log.Info("Running store migrations...", "provider", cfg.Store.Provider)
	if err := storage.Migrate(ctx, db, cfg.Store.Provider); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if cfg.ArchiveDSN != "" {
		if err := migrateArchive(ctx, cfg.ArchiveDSN); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		log.Info("Archive migrations applied")
	}
	return nil
}

func migrateArchive(ctx context.Context, dsn string) error {
	// Connect using native ClickHouse driver
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	return migrations.Up(ctx, db, "clickhouse")
}
