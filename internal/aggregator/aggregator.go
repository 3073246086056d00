// Package aggregator derives monthly summaries from stored daily metrics.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/navid-fn/ethmetrics/internal/candle"
	"github.com/navid-fn/ethmetrics/internal/metrics"
	"github.com/navid-fn/ethmetrics/internal/storage"
	"github.com/navid-fn/ethmetrics/internal/storage/models"
)

const (
	MaxMonths     = 24
	DefaultMonths = 12
)

const (
	errNoDataForMonth = "No data found"

	outcomeWritten = "written"
	outcomeNoData  = "no_data"
	outcomeFailed  = "failed"
)

var (
	ErrInvalidMonth     = errors.New("invalid year or month parameter")
	ErrMonthsOutOfRange = errors.New("months parameter must be between 1 and 24")
)

// Cache holds GET /v1/monthly results keyed by the months window.
// A miss is (nil, false, nil).
type Cache interface {
	GetMonthly(ctx context.Context, months int) ([]models.MonthlyMetrics, bool, error)
	SetMonthly(ctx context.Context, months int, recs []models.MonthlyMetrics) error
	InvalidateMonthly(ctx context.Context) error
}

// MonthResult is the outcome for one month of a manual aggregation.
type MonthResult struct {
	Month string                 `json:"month"`
	Data  *models.MonthlyMetrics `json:"data,omitempty"`
	Error string                 `json:"error,omitempty"`
}

// Aggregator reads daily records and writes monthly summaries.
type Aggregator struct {
	store   storage.Store
	cache   Cache
	logger  *slog.Logger
	metrics *metrics.Metrics

	now func() time.Time
}

// NewAggregator creates an Aggregator. cache and m may be nil.
func NewAggregator(store storage.Store, cache Cache, logger *slog.Logger, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		store:   store,
		cache:   cache,
		logger:  logger.With("component", "aggregator"),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Summarize computes the monthly summary of recs, which must be ordered by
// timestamp. It returns nil when recs is empty.
//
// Missing supply and market cap count as 0 in the averages. The end-of-month
// values come from the record with the latest timestamp; on equal timestamps
// the one seen last wins.
func Summarize(year int, month time.Month, recs []models.DailyMetrics, now time.Time) *models.MonthlyMetrics {
	if len(recs) == 0 {
		return nil
	}

	var totalPrice, totalSupply, totalMarketCap float64
	var endSupply, endMarketCap float64
	var last time.Time

	for i, r := range recs {
		totalPrice += r.Price.Close
		totalSupply += deref(r.TotalSupply)
		totalMarketCap += deref(r.MarketCap)

		if i == 0 || !r.Timestamp.Before(last) {
			last = r.Timestamp
			endSupply = deref(r.TotalSupply)
			endMarketCap = deref(r.MarketCap)
		}
	}

	n := float64(len(recs))
	key := candle.MonthKey(year, month)
	return &models.MonthlyMetrics{
		Month:          key,
		Timestamp:      candle.FirstOfMonth(year, month),
		TimestampISO:   key,
		AvgPrice:       totalPrice / n,
		AvgTotalSupply: totalSupply / n,
		AvgMarketCap:   totalMarketCap / n,
		EndTotalSupply: endSupply,
		EndMarketCap:   endMarketCap,
		DataPoints:     len(recs),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Aggregate summarizes the daily records of one month without writing.
// It returns nil, nil when the month has no daily records.
func (a *Aggregator) Aggregate(ctx context.Context, year int, month time.Month) (*models.MonthlyMetrics, error) {
	if month < time.January || month > time.December {
		return nil, ErrInvalidMonth
	}

	recs, err := a.store.DailyInRange(ctx, candle.FirstOfMonth(year, month), candle.LastOfMonth(year, month))
	if err != nil {
		return nil, fmt.Errorf("query daily metrics for %s: %w", candle.MonthKey(year, month), err)
	}

	return Summarize(year, month, recs, a.now()), nil
}

// AggregateAndSave aggregates one month and overwrites its summary.
// A month without daily records is skipped and returns nil, nil.
func (a *Aggregator) AggregateAndSave(ctx context.Context, year int, month time.Month) (*models.MonthlyMetrics, error) {
	key := candle.MonthKey(year, month)

	summary, err := a.Aggregate(ctx, year, month)
	if err != nil {
		a.metrics.Monthly(outcomeFailed)
		return nil, err
	}
	if summary == nil {
		a.metrics.Monthly(outcomeNoData)
		a.logger.Warn("No data to aggregate", "month", key)
		return nil, nil
	}

	if err := a.store.SaveMonthly(ctx, summary); err != nil {
		a.metrics.Monthly(outcomeFailed)
		return nil, fmt.Errorf("save monthly %s: %w", key, err)
	}
	a.metrics.Monthly(outcomeWritten)
	a.invalidate(ctx)

	a.logger.Info("Aggregated monthly data", "month", key, "dataPoints", summary.DataPoints, "avgPrice", summary.AvgPrice)
	return summary, nil
}

// AggregatePreviousMonth aggregates and saves the calendar month before now.
func (a *Aggregator) AggregatePreviousMonth(ctx context.Context) (*models.MonthlyMetrics, error) {
	year, month := PreviousMonth(a.now())
	a.logger.Info("Starting monthly aggregation", "month", candle.MonthKey(year, month))
	return a.AggregateAndSave(ctx, year, month)
}

// AggregateMonth aggregates and saves one month, reporting no data as a
// result entry instead of an error.
func (a *Aggregator) AggregateMonth(ctx context.Context, year int, month time.Month) (MonthResult, error) {
	if month < time.January || month > time.December {
		return MonthResult{}, ErrInvalidMonth
	}

	res := MonthResult{Month: candle.MonthKey(year, month)}
	summary, err := a.AggregateAndSave(ctx, year, month)
	if err != nil {
		return res, err
	}
	if summary == nil {
		res.Error = errNoDataForMonth
		return res, nil
	}
	res.Data = summary
	return res, nil
}

// AggregateTrailing aggregates and saves the n months before the current
// one, most recent first. A failing month is reported in its result and does
// not stop the others.
func (a *Aggregator) AggregateTrailing(ctx context.Context, n int) ([]MonthResult, error) {
	if n < 1 || n > MaxMonths {
		return nil, ErrMonthsOutOfRange
	}

	results := make([]MonthResult, 0, n)
	for _, m := range TrailingMonths(a.now(), n) {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := MonthResult{Month: candle.MonthKey(m.Year(), m.Month())}
		summary, err := a.AggregateAndSave(ctx, m.Year(), m.Month())
		switch {
		case err != nil:
			a.logger.Error("Monthly aggregation failed", "month", res.Month, "error", err)
			res.Error = err.Error()
		case summary == nil:
			res.Error = errNoDataForMonth
		default:
			res.Data = summary
		}
		results = append(results, res)
	}
	return results, nil
}

// List returns the monthly summaries with a timestamp no older than n months
// before now, oldest first.
func (a *Aggregator) List(ctx context.Context, n int) ([]models.MonthlyMetrics, error) {
	if n < 1 || n > MaxMonths {
		return nil, ErrMonthsOutOfRange
	}

	if a.cache != nil {
		recs, ok, err := a.cache.GetMonthly(ctx, n)
		if err != nil {
			a.logger.Warn("Monthly cache read failed", "error", err)
		} else if ok {
			return recs, nil
		}
	}

	recs, err := a.store.MonthlySince(ctx, a.now().AddDate(0, -n, 0))
	if err != nil {
		return nil, fmt.Errorf("query monthly metrics: %w", err)
	}
	if recs == nil {
		recs = []models.MonthlyMetrics{}
	}

	if a.cache != nil {
		if err := a.cache.SetMonthly(ctx, n, recs); err != nil {
			a.logger.Warn("Monthly cache write failed", "error", err)
		}
	}
	return recs, nil
}

func (a *Aggregator) invalidate(ctx context.Context) {
	if a.cache == nil {
		return
	}
	if err := a.cache.InvalidateMonthly(ctx); err != nil {
		a.logger.Warn("Monthly cache invalidation failed", "error", err)
	}
}

// PreviousMonth returns the calendar month before now, in UTC.
func PreviousMonth(now time.Time) (int, time.Month) {
	prev := candle.FirstOfMonth(now.UTC().Year(), now.UTC().Month()).AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}

// TrailingMonths returns the first instant of each of the n months before
// the month of now, most recent first.
func TrailingMonths(now time.Time, n int) []time.Time {
	now = now.UTC()
	start := candle.FirstOfMonth(now.Year(), now.Month())

	out := make([]time.Time, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, start.AddDate(0, -i, 0))
	}
	return out
}
