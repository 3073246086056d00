package aggregator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/navid-fn/ethmetrics/configs"
	"github.com/navid-fn/ethmetrics/internal/logger"
	"github.com/navid-fn/ethmetrics/internal/storage"
	"github.com/navid-fn/ethmetrics/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 7, 2, 1, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	cfg := configs.StoreConfig{Provider: "sqlite", DSN: filepath.Join(t.TempDir(), "metrics.db")}
	db, err := storage.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(context.Background(), db, cfg.Provider))

	store := storage.NewGormStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestAggregator(store storage.Store, cache Cache) *Aggregator {
	a := NewAggregator(store, cache, logger.Discard(), nil)
	a.now = func() time.Time { return testNow }
	return a
}

func ptr(v float64) *float64 { return &v }

func daily(ts time.Time, px float64, supply, mcap *float64) models.DailyMetrics {
	return models.DailyMetrics{
		Date:         ts.Format("2006-01-02"),
		Timestamp:    ts,
		TimestampISO: ts.Format("2006-01-02T15:04:05.000Z"),
		Price:        models.Price{Open: px, High: px, Low: px, Close: px},
		TotalSupply:  supply,
		MarketCap:    mcap,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
}

func seed(t *testing.T, store storage.Store, recs ...models.DailyMetrics) {
	t.Helper()
	batch := make([]*models.DailyMetrics, len(recs))
	for i := range recs {
		batch[i] = &recs[i]
	}
	require.NoError(t, store.CommitDaily(context.Background(), batch))
}

func TestSummarize(t *testing.T) {
	recs := []models.DailyMetrics{
		daily(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 100, ptr(10), ptr(1000)),
		daily(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), 200, nil, nil),
		daily(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), 300, ptr(20), ptr(2000)),
	}

	got := Summarize(2024, time.June, recs, testNow)

	require.NotNil(t, got)
	assert.Equal(t, "2024-06", got.Month)
	assert.Equal(t, "2024-06", got.TimestampISO)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), got.Timestamp)
	assert.Equal(t, 200.0, got.AvgPrice)
	assert.Equal(t, 10.0, got.AvgTotalSupply)
	assert.Equal(t, 1000.0, got.AvgMarketCap)
	assert.Equal(t, 20.0, got.EndTotalSupply)
	assert.Equal(t, 2000.0, got.EndMarketCap)
	assert.Equal(t, 3, got.DataPoints)
	assert.Equal(t, testNow, got.CreatedAt)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Nil(t, Summarize(2024, time.June, nil, testNow))
}

func TestSummarizeEndValues(t *testing.T) {
	last := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	t.Run("missing enrichment on last day is zero", func(t *testing.T) {
		got := Summarize(2024, time.June, []models.DailyMetrics{
			daily(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 1, ptr(5), ptr(50)),
			daily(last, 1, nil, nil),
		}, testNow)
		assert.Equal(t, 0.0, got.EndTotalSupply)
		assert.Equal(t, 0.0, got.EndMarketCap)
	})

	t.Run("equal timestamps take the last one seen", func(t *testing.T) {
		got := Summarize(2024, time.June, []models.DailyMetrics{
			daily(last, 1, ptr(5), ptr(50)),
			daily(last, 1, ptr(7), ptr(70)),
		}, testNow)
		assert.Equal(t, 7.0, got.EndTotalSupply)
		assert.Equal(t, 70.0, got.EndMarketCap)
	})

	t.Run("latest timestamp wins regardless of order", func(t *testing.T) {
		got := Summarize(2024, time.June, []models.DailyMetrics{
			daily(last, 1, ptr(9), ptr(90)),
			daily(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 1, ptr(5), ptr(50)),
		}, testNow)
		assert.Equal(t, 9.0, got.EndTotalSupply)
	})
}

func TestAggregateAndSaveAverage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store,
		daily(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 100, nil, nil),
		daily(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), 200, nil, nil),
		daily(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), 300, nil, nil),
		daily(time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), 10_000, nil, nil),
		daily(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), 10_000, nil, nil),
	)
	a := newTestAggregator(store, nil)

	got, err := a.AggregateAndSave(ctx, 2024, time.June)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 200.0, got.AvgPrice)
	assert.Equal(t, 3, got.DataPoints)

	saved, err := store.GetMonthly(ctx, "2024-06")
	require.NoError(t, err)
	assert.Equal(t, 200.0, saved.AvgPrice)
	assert.Equal(t, 3, saved.DataPoints)
}

func TestAggregateAndSaveNoData(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cache := newFakeCache()
	a := newTestAggregator(store, cache)

	got, err := a.AggregateAndSave(ctx, 2024, time.February)

	require.NoError(t, err)
	assert.Nil(t, got)
	_, err = store.GetMonthly(ctx, "2024-02")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, cache.invalidations)
}

func TestAggregateInvalidMonth(t *testing.T) {
	a := newTestAggregator(newTestStore(t), nil)

	_, err := a.Aggregate(context.Background(), 2024, 13)
	assert.ErrorIs(t, err, ErrInvalidMonth)

	_, err = a.AggregateMonth(context.Background(), 2024, 0)
	assert.ErrorIs(t, err, ErrInvalidMonth)
}

func TestAggregatePreviousMonth(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store, daily(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), 3500, nil, nil))
	a := newTestAggregator(store, nil)

	got, err := a.AggregatePreviousMonth(ctx)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2024-06", got.Month)
	assert.Equal(t, 1, got.DataPoints)
}

func TestAggregateMonthReportsNoData(t *testing.T) {
	a := newTestAggregator(newTestStore(t), nil)

	res, err := a.AggregateMonth(context.Background(), 2023, time.March)

	require.NoError(t, err)
	assert.Equal(t, MonthResult{Month: "2023-03", Error: "No data found"}, res)
}

func TestAggregateTrailing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store,
		daily(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), 100, nil, nil),
		daily(time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), 300, nil, nil),
	)
	cache := newFakeCache()
	a := newTestAggregator(store, cache)

	results, err := a.AggregateTrailing(ctx, 3)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "2024-06", results[0].Month)
	assert.NotNil(t, results[0].Data)
	assert.Equal(t, MonthResult{Month: "2024-05", Error: "No data found"}, results[1])
	assert.Equal(t, "2024-04", results[2].Month)
	assert.Equal(t, 300.0, results[2].Data.AvgPrice)
	assert.Equal(t, 2, cache.invalidations)
}

func TestAggregateTrailingOutOfRange(t *testing.T) {
	a := newTestAggregator(newTestStore(t), nil)

	for _, n := range []int{0, 25} {
		_, err := a.AggregateTrailing(context.Background(), n)
		assert.ErrorIs(t, err, ErrMonthsOutOfRange)
	}
}

func TestListUsesCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, m := range []time.Time{
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		key := m.Format("2006-01")
		require.NoError(t, store.SaveMonthly(ctx, &models.MonthlyMetrics{
			Month: key, Timestamp: m, TimestampISO: key, DataPoints: 1, CreatedAt: testNow, UpdatedAt: testNow,
		}))
	}
	cache := newFakeCache()
	a := newTestAggregator(store, cache)

	got, err := a.List(ctx, 12)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-02", got[0].Month)
	assert.Equal(t, "2024-06", got[1].Month)
	assert.Len(t, cache.entries[12], 2)

	cache.entries[12] = []models.MonthlyMetrics{{Month: "cached"}}
	got, err = a.List(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "cached", got[0].Month)
}

func TestListEmptyIsNotNil(t *testing.T) {
	got, err := newTestAggregator(newTestStore(t), nil).List(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPreviousMonth(t *testing.T) {
	y, m := PreviousMonth(time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, 2023, y)
	assert.Equal(t, time.December, m)

	y, m = PreviousMonth(time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.February, m)
}

func TestTrailingMonths(t *testing.T) {
	got := TrailingMonths(time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), 3)

	var keys []string
	for _, m := range got {
		keys = append(keys, m.Format("2006-01"))
	}
	assert.Equal(t, []string{"2024-02", "2024-01", "2023-12"}, keys)
}

type fakeCache struct {
	entries       map[int][]models.MonthlyMetrics
	invalidations int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[int][]models.MonthlyMetrics)}
}

func (c *fakeCache) GetMonthly(_ context.Context, months int) ([]models.MonthlyMetrics, bool, error) {
	recs, ok := c.entries[months]
	return recs, ok, nil
}

func (c *fakeCache) SetMonthly(_ context.Context, months int, recs []models.MonthlyMetrics) error {
	c.entries[months] = recs
	return nil
}

func (c *fakeCache) InvalidateMonthly(context.Context) error {
	c.invalidations++
	c.entries = make(map[int][]models.MonthlyMetrics)
	return nil
}
