package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/navid-fn/ethmetrics/configs"
	"github.com/navid-fn/ethmetrics/internal/logger"
	"github.com/navid-fn/ethmetrics/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigratesStore(t *testing.T) {
	cfg := &configs.AppConfig{
		Store: configs.StoreConfig{Provider: "sqlite", DSN: filepath.Join(t.TempDir(), "metrics.db")},
	}

	require.NoError(t, run(cfg, logger.Discard()))
	require.NoError(t, run(cfg, logger.Discard()), "migrations are idempotent")

	db, err := storage.Open(cfg.Store)
	require.NoError(t, err)
	store := storage.NewGormStore(db)
	defer store.Close()

	assert.True(t, db.Migrator().HasTable("daily_metrics"))
	assert.True(t, db.Migrator().HasTable("monthly_metrics"))

	recs, err := store.MonthlySince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRunUnknownProvider(t *testing.T) {
	err := run(&configs.AppConfig{Store: configs.StoreConfig{Provider: "mongo"}}, logger.Discard())
	assert.Error(t, err)
}
