// Package app wires the pipeline components shared by the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/navid-fn/ethmetrics/configs"
	"github.com/navid-fn/ethmetrics/internal/aggregator"
	"github.com/navid-fn/ethmetrics/internal/cache"
	"github.com/navid-fn/ethmetrics/internal/drivers/coingecko"
	"github.com/navid-fn/ethmetrics/internal/ingester"
	"github.com/navid-fn/ethmetrics/internal/metrics"
	"github.com/navid-fn/ethmetrics/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

const sourceName = "coingecko"

// App holds the wired pipeline. Close releases every connection it opened.
type App struct {
	Store      storage.Store
	Ingester   *ingester.Ingester
	Aggregator *aggregator.Aggregator
	Metrics    *metrics.Metrics

	closers []func() error
	logger  *slog.Logger
}

// New opens and migrates the store, then connects the optional archive and
// cache. An unreachable archive or cache is logged and left disabled.
func New(ctx context.Context, cfg *configs.AppConfig, logger *slog.Logger) (*App, error) {
	a := &App{
		Metrics: metrics.New(prometheus.NewRegistry()),
		logger:  logger,
	}

	db, err := storage.Open(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.Store = storage.NewGormStore(db)
	if err := storage.Migrate(ctx, db, cfg.Store.Provider); err != nil {
		a.Store.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)
	logger.Info("Connected to metrics store", "provider", cfg.Store.Provider)

	var archive storage.CandleArchive
	if cfg.ArchiveDSN != "" {
		archive, err = storage.NewClickHouseArchive(cfg.ArchiveDSN)
		if err != nil {
			logger.Warn("Candle archive disabled", "error", err)
		} else {
			a.closers = append(a.closers, archive.Close)
			logger.Info("Connected to candle archive")
		}
	}

	var monthlyCache aggregator.Cache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			logger.Warn("Monthly cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			monthlyCache = rc
			a.closers = append(a.closers, rc.Close)
			logger.Info("Connected to monthly cache", "addr", cfg.Redis.Addr)
		}
	}

	client := coingecko.NewClient(&cfg.Coingecko, logger, a.Metrics)
	a.Ingester = ingester.NewIngester(client, a.Store, archive, logger, a.Metrics, ingester.Config{
		BatchSize: cfg.Pipeline.BatchSize,
		Source:    sourceName,
		Coin:      cfg.Coingecko.CoinID,
	})
	a.Aggregator = aggregator.NewAggregator(a.Store, monthlyCache, logger, a.Metrics)

	return a, nil
}

// Close closes connections in reverse opening order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", "error", err)
		}
	}
	a.closers = nil
}
