// Package ingester turns price source candles into persisted daily metrics.
// It owns the single-day fetch path and the multi-day backfill path.
package ingester

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
	// MaxBatchSize is the most records one store commit may carry.
	MaxBatchSize = 500

	// MaxDaysAgo bounds how far back a single date or a backfill may reach.
	MaxDaysAgo = 365

	DefaultBackfillDays = 30
)

var (
	ErrDateOutOfRange = errors.New("date must be within the last 365 days and not in the future")
	ErrDaysOutOfRange = errors.New("days must be between 1 and 365")
)

// PriceSource provides candles and daily volumes.
type PriceSource interface {
	OHLC(ctx context.Context, days int) ([]candle.Candle, error)
	Volumes(ctx context.Context, days int) ([]candle.VolumePoint, error)
}

// Config holds ingester configuration parameters.
type Config struct {
	// BatchSize is the maximum number of records per backfill commit.
	// Values outside 1..MaxBatchSize are clamped.
	BatchSize int

	// Source and Coin label archived candles.
	Source string
	Coin   string
}

// Ingester fetches from the price source and writes daily records to the store.
// It holds no state between calls.
type Ingester struct {
	source  PriceSource
	store   storage.Store
	archive storage.CandleArchive
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     Config

	now func() time.Time
}

// NewIngester creates a new Ingester. archive and m may be nil.
func NewIngester(
	source PriceSource,
	store storage.Store,
	archive storage.CandleArchive,
	logger *slog.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Ingester {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	return &Ingester{
		source:  source,
		store:   store,
		archive: archive,
		logger:  logger.With("component", "ingester"),
		metrics: m,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// FetchResult is the outcome of a single-date fetch.
// Found is false when the price source had no candle for the date; nothing
// is written in that case.
type FetchResult struct {
	Date   string               `json:"date"`
	Found  bool                 `json:"found"`
	Record *models.DailyMetrics `json:"data,omitempty"`
}

// DaysAgo returns the number of whole UTC days between day and today.
func (in *Ingester) DaysAgo(day time.Time) int {
	return int(candle.StartOfDay(in.now()).Sub(candle.StartOfDay(day)) / candle.Day)
}

// FetchYesterday fetches and stores the previous UTC day.
func (in *Ingester) FetchYesterday(ctx context.Context) (FetchResult, error) {
	return in.FetchDate(ctx, in.now().Add(-candle.Day))
}

// FetchDate fetches and stores one UTC day, 1 to 365 days in the past.
// The candle bucket is the smallest accepted one covering the date, and the
// volume series is requested for exactly as many days.
func (in *Ingester) FetchDate(ctx context.Context, day time.Time) (FetchResult, error) {
	day = candle.StartOfDay(day)
	result := FetchResult{Date: candle.DateKey(day)}

	daysAgo := in.DaysAgo(day)
	if daysAgo < 1 || daysAgo > MaxDaysAgo {
		return result, fmt.Errorf("%s: %w", result.Date, ErrDateOutOfRange)
	}

	bucket := candle.ResolveDays(daysAgo + 1)
	g := candle.GranularityFor(bucket)
	in.logger.Info("Fetching OHLC data", "date", result.Date, "daysAgo", daysAgo, "bucket", bucket, "granularity", g)

	candles, err := in.source.OHLC(ctx, bucket)
	if err != nil {
		return result, fmt.Errorf("fetch ohlc: %w", err)
	}
	in.archiveCandles(ctx, candles, bucket, g)

	ohlc, ok := candle.AggregateDay(candles, day)
	if !ok {
		in.logger.Warn("No candles for date", "date", result.Date, "candles", len(candles))
		return result, nil
	}

	points := in.volumes(ctx, daysAgo+1)
	rec, err := in.WriteDay(ctx, ohlc, candle.VolumeFor(points, day))
	if err != nil {
		return result, err
	}

	result.Found = true
	result.Record = rec
	return result, nil
}

// WriteDay upserts one daily record. created_at and updated_at are both set
// to now; the store keeps the existing created_at when the date exists.
func (in *Ingester) WriteDay(ctx context.Context, ohlc candle.DailyOHLC, volume float64) (*models.DailyMetrics, error) {
	rec, err := in.newRecord(ohlc, volume, in.now())
	if err != nil {
		return nil, err
	}

	if err := in.store.UpsertDaily(ctx, rec); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", rec.Date, err)
	}
	in.metrics.RecordsWritten(1)

	in.logger.Info("Saved daily metrics", "date", rec.Date, "close", rec.Price.Close, "volume", rec.Volume)
	return rec, nil
}

func (in *Ingester) newRecord(ohlc candle.DailyOHLC, volume float64, now time.Time) (*models.DailyMetrics, error) {
	ts, err := candle.ParseDate(ohlc.Date)
	if err != nil {
		return nil, err
	}
	return &models.DailyMetrics{
		Date:         ohlc.Date,
		Timestamp:    ts,
		TimestampISO: ts.Format(candle.ISOLayout),
		Price: models.Price{
			Open:  ohlc.Open,
			High:  ohlc.High,
			Low:   ohlc.Low,
			Close: ohlc.Close,
		},
		Volume:    volume,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// volumes fetches the daily volume series. Volume is secondary data: a
// failed fetch is logged and every day gets volume 0.
func (in *Ingester) volumes(ctx context.Context, days int) []candle.VolumePoint {
	points, err := in.source.Volumes(ctx, days)
	if err != nil {
		in.logger.Warn("Volume fetch failed, using 0", "days", days, "error", err)
		return nil
	}
	return points
}

func (in *Ingester) archiveCandles(ctx context.Context, candles []candle.Candle, bucket int, g candle.Granularity) {
	if in.archive == nil || len(candles) == 0 {
		return
	}

	rows := make([]*models.ArchivedCandle, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, &models.ArchivedCandle{
			Source:      in.cfg.Source,
			Coin:        in.cfg.Coin,
			BucketDays:  bucket,
			Granularity: g.String(),
			Open:        c.Open,
			High:        c.High,
			Low:         c.Low,
			Close:       c.Close,
			CloseTime:   time.UnixMilli(c.CloseTime).UTC(),
		})
	}

	if err := in.archive.ArchiveCandles(ctx, rows); err != nil {
		in.logger.Warn("Candle archive failed", "count", len(rows), "error", err)
	}
}
