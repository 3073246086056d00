package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/navid-fn/ethmetrics/configs"
	"github.com/navid-fn/ethmetrics/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	cfg := configs.StoreConfig{Provider: "sqlite", DSN: filepath.Join(t.TempDir(), "metrics.db")}
	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(context.Background(), db, cfg.Provider))

	store := NewGormStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func day(date string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func dailyRecord(date string, px float64, at time.Time) *models.DailyMetrics {
	ts := day(date)
	return &models.DailyMetrics{
		Date:         date,
		Timestamp:    ts,
		TimestampISO: ts.Format("2006-01-02T15:04:05.000Z"),
		Price:        models.Price{Open: px - 1, High: px + 5, Low: px - 5, Close: px},
		Volume:       1000,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func TestGetDailyNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetDaily(context.Background(), "2024-06-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertDailyKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := time.Date(2024, 6, 2, 0, 5, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	require.NoError(t, store.UpsertDaily(ctx, dailyRecord("2024-06-01", 100, first)))
	require.NoError(t, store.UpsertDaily(ctx, dailyRecord("2024-06-01", 120, second)))

	got, err := store.GetDaily(ctx, "2024-06-01")
	require.NoError(t, err)

	assert.Equal(t, 120.0, got.Price.Close)
	assert.True(t, got.CreatedAt.Equal(first), "created_at %v", got.CreatedAt)
	assert.True(t, got.UpdatedAt.Equal(second), "updated_at %v", got.UpdatedAt)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestUpsertDailyLeavesEnrichmentFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	at := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)

	supply, mcap := 120_000_000.0, 400_000_000_000.0
	enriched := dailyRecord("2024-06-01", 100, at)
	enriched.TotalSupply = &supply
	enriched.MarketCap = &mcap
	require.NoError(t, store.UpsertDaily(ctx, enriched))

	require.NoError(t, store.UpsertDaily(ctx, dailyRecord("2024-06-01", 110, at.Add(time.Minute))))

	got, err := store.GetDaily(ctx, "2024-06-01")
	require.NoError(t, err)
	require.NotNil(t, got.TotalSupply)
	require.NotNil(t, got.MarketCap)
	assert.Equal(t, supply, *got.TotalSupply)
	assert.Equal(t, mcap, *got.MarketCap)
	assert.Equal(t, 110.0, got.Price.Close)
}

func TestCommitDailyAndRange(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	at := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	recs := []*models.DailyMetrics{
		dailyRecord("2024-06-30", 300, at),
		dailyRecord("2024-05-31", 50, at),
		dailyRecord("2024-06-01", 100, at),
		dailyRecord("2024-06-15", 200, at),
		dailyRecord("2024-07-01", 400, at),
	}
	require.NoError(t, store.CommitDaily(ctx, recs))

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC).Add(-time.Millisecond)
	got, err := store.DailyInRange(ctx, from, to)
	require.NoError(t, err)

	var dates []string
	for _, r := range got {
		dates = append(dates, r.Date)
	}
	assert.Equal(t, []string{"2024-06-01", "2024-06-15", "2024-06-30"}, dates)
}

func TestCommitDailyEmpty(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.CommitDaily(context.Background(), nil))
}

func TestSaveMonthlyOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	first := time.Date(2024, 7, 2, 1, 0, 0, 0, time.UTC)

	rec := &models.MonthlyMetrics{
		Month:        "2024-06",
		Timestamp:    day("2024-06-01"),
		TimestampISO: "2024-06",
		AvgPrice:     150,
		DataPoints:   2,
		CreatedAt:    first,
		UpdatedAt:    first,
	}
	require.NoError(t, store.SaveMonthly(ctx, rec))

	updated := *rec
	updated.AvgPrice = 200
	updated.DataPoints = 3
	updated.CreatedAt = first.Add(time.Hour)
	updated.UpdatedAt = first.Add(time.Hour)
	require.NoError(t, store.SaveMonthly(ctx, &updated))

	got, err := store.GetMonthly(ctx, "2024-06")
	require.NoError(t, err)
	assert.Equal(t, 200.0, got.AvgPrice)
	assert.Equal(t, 3, got.DataPoints)
	assert.True(t, got.CreatedAt.Equal(first))
	assert.True(t, got.UpdatedAt.Equal(first.Add(time.Hour)))
}

func TestMonthlySince(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	at := time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)

	for _, m := range []string{"2024-06", "2024-03", "2024-05"} {
		ts, err := time.ParseInLocation("2006-01", m, time.UTC)
		require.NoError(t, err)
		require.NoError(t, store.SaveMonthly(ctx, &models.MonthlyMetrics{
			Month: m, Timestamp: ts, TimestampISO: m, DataPoints: 1, CreatedAt: at, UpdatedAt: at,
		}))
	}

	got, err := store.MonthlySince(ctx, day("2024-04-15"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-05", got[0].Month)
	assert.Equal(t, "2024-06", got[1].Month)
}

func TestOpenUnknownProvider(t *testing.T) {
	_, err := Open(configs.StoreConfig{Provider: "mongo"})
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
