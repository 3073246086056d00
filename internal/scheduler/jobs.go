package scheduler

import (
	"context"
	"log/slog"

	"github.com/navid-fn/ethmetrics/configs"
	"github.com/navid-fn/ethmetrics/internal/ingester"
	"github.com/navid-fn/ethmetrics/internal/storage/models"
)

const (
	DailyJobName    = "daily-fetch"
	MonthlyJobName  = "monthly-aggregate"
	BackfillJobName = "backfill"
)

// DailyFetcher is the part of the ingester the daily job needs.
type DailyFetcher interface {
	FetchYesterday(ctx context.Context) (ingester.FetchResult, error)
}

// Backfiller is the part of the ingester the backfill job needs.
type Backfiller interface {
	Backfill(ctx context.Context, opts ingester.BackfillOptions) (*ingester.BackfillReport, error)
}

// MonthlyAggregator is the part of the aggregator the monthly job needs.
type MonthlyAggregator interface {
	AggregatePreviousMonth(ctx context.Context) (*models.MonthlyMetrics, error)
}

// DailyJob fetches and stores yesterday. A day the price source has no
// candles for is logged, not retried.
func DailyJob(cfg configs.ScheduleConfig, fetcher DailyFetcher, logger *slog.Logger) Job {
	return Job{
		Name: DailyJobName,
		Next: DailyAt(cfg.DailyHour, cfg.DailyMinute),
		Run: func(ctx context.Context) error {
			res, err := fetcher.FetchYesterday(ctx)
			if err != nil {
				return err
			}
			if !res.Found {
				logger.Warn("No data available for yesterday", "date", res.Date)
				return nil
			}
			logger.Info("Successfully saved ETH data", "date", res.Date, "close", res.Record.Price.Close)
			return nil
		},
	}
}

// MonthlyJob aggregates the previous month. A month without daily data is
// logged and skipped.
func MonthlyJob(cfg configs.ScheduleConfig, agg MonthlyAggregator, logger *slog.Logger) Job {
	return Job{
		Name: MonthlyJobName,
		Next: MonthlyAt(cfg.MonthlyDay, cfg.MonthlyHour),
		Run: func(ctx context.Context) error {
			summary, err := agg.AggregatePreviousMonth(ctx)
			if err != nil {
				return err
			}
			if summary == nil {
				logger.Warn("No data to aggregate for previous month")
				return nil
			}
			logger.Info("Successfully aggregated monthly data", "month", summary.Month, "dataPoints", summary.DataPoints)
			return nil
		},
	}
}

// BackfillJob backfills the past days once. It has no Next and is run
// with RunOnce. The first failed commit aborts the run so the retry policy
// can start it again; batches already committed are rewritten idempotently.
func BackfillJob(days int, backfiller Backfiller, logger *slog.Logger) Job {
	return Job{
		Name: BackfillJobName,
		Run: func(ctx context.Context) error {
			report, err := backfiller.Backfill(ctx, ingester.BackfillOptions{Days: days, StopOnError: true})
			if err != nil {
				return err
			}
			logger.Info("Backfill finished", "days", days, "written", report.Written, "batches", report.Batches)
			return nil
		},
	}
}
