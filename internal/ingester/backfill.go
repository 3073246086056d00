package ingester

import (
	"context"
	"fmt"

	"github.com/navid-fn/ethmetrics/internal/candle"
	"github.com/navid-fn/ethmetrics/internal/storage/models"
)

const (
	StatusWritten = "written"
	StatusFailed  = "failed"
)

// BackfillOptions controls one backfill run.
type BackfillOptions struct {
	// Days is the number of past days to cover, 1..365.
	Days int

	// StopOnError aborts the run at the first failed commit and returns the
	// error. When false a failed commit marks its dates failed and the run
	// continues with the next batch.
	StopOnError bool
}

// DateOutcome is the result for one date of a backfill.
type DateOutcome struct {
	Date   string `json:"date"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// BackfillReport summarizes a backfill run.
type BackfillReport struct {
	Days        int           `json:"days"`
	BucketDays  int           `json:"bucket_days"`
	Granularity string        `json:"granularity"`
	Written     int           `json:"written"`
	Failed      int           `json:"failed"`
	Batches     int           `json:"batches"`
	Outcomes    []DateOutcome `json:"outcomes"`
}

// Backfill fetches candles and volumes once, aggregates them per day and
// writes every day through batched store commits.
//
// Batches already committed stay committed when a later batch fails or the
// context is cancelled.
func (in *Ingester) Backfill(ctx context.Context, opts BackfillOptions) (*BackfillReport, error) {
	if opts.Days < 1 || opts.Days > MaxDaysAgo {
		return nil, fmt.Errorf("%d: %w", opts.Days, ErrDaysOutOfRange)
	}

	bucket := candle.ResolveDays(opts.Days)
	g := candle.GranularityFor(bucket)
	report := &BackfillReport{Days: opts.Days, BucketDays: bucket, Granularity: g.String()}

	in.logger.Info("Starting backfill", "days", opts.Days, "bucket", bucket, "granularity", g)

	candles, err := in.source.OHLC(ctx, bucket)
	if err != nil {
		return report, fmt.Errorf("fetch ohlc: %w", err)
	}
	in.archiveCandles(ctx, candles, bucket, g)

	volumes := candle.VolumeIndex(in.volumes(ctx, opts.Days))
	daily := candle.AggregateDaily(candles, g)

	batch := make([]*models.DailyMetrics, 0, in.cfg.BatchSize)

	// flush commits the current batch and records an outcome for each of its dates
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		err := in.store.CommitDaily(ctx, batch)
		report.Batches++
		if err != nil {
			in.metrics.Commit("error")
			in.logger.Error("Batch commit failed", "count", len(batch), "error", err)
			for _, rec := range batch {
				report.Outcomes = append(report.Outcomes, DateOutcome{Date: rec.Date, Status: StatusFailed, Reason: err.Error()})
			}
			report.Failed += len(batch)
		} else {
			in.metrics.Commit("ok")
			in.metrics.RecordsWritten(len(batch))
			in.logger.Info("Committed batch", "count", len(batch))
			for _, rec := range batch {
				report.Outcomes = append(report.Outcomes, DateOutcome{Date: rec.Date, Status: StatusWritten})
			}
			report.Written += len(batch)
		}

		batch = make([]*models.DailyMetrics, 0, in.cfg.BatchSize)
		if err != nil && opts.StopOnError {
			return fmt.Errorf("commit batch: %w", err)
		}
		return nil
	}

	now := in.now()
	for _, d := range daily {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		rec, err := in.newRecord(d, volumes[d.Date], now)
		if err != nil {
			report.Outcomes = append(report.Outcomes, DateOutcome{Date: d.Date, Status: StatusFailed, Reason: err.Error()})
			report.Failed++
			if opts.StopOnError {
				return report, err
			}
			continue
		}

		batch = append(batch, rec)
		if len(batch) >= in.cfg.BatchSize {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}

	if err := flush(); err != nil {
		return report, err
	}

	in.logger.Info("Backfill completed", "written", report.Written, "failed", report.Failed, "batches", report.Batches)
	return report, nil
}
