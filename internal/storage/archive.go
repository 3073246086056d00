package storage

import (
	"context"
	"time"

	"github.com/navid-fn/ethmetrics/internal/storage/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// CandleArchive keeps every raw candle set fetched from the price source.
// Implementations must be safe for concurrent use.
type CandleArchive interface {
	// ArchiveCandles inserts a batch of raw candles.
	ArchiveCandles(ctx context.Context, candles []*models.ArchivedCandle) error

	// Close releases database connection resources.
	Close() error
}

// clickhouseArchive implements CandleArchive using native ClickHouse driver.
type clickhouseArchive struct {
	conn driver.Conn
}

// NewClickHouseArchive parses the DSN, opens a connection, and verifies
// connectivity with a ping. Returns an error if connection cannot be
// established within 5 seconds.
func NewClickHouseArchive(dsn string) (CandleArchive, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return &clickhouseArchive{conn: conn}, nil
}

// ArchiveCandles inserts candles using ClickHouse batch insert.
// All candles in the batch share the same inserted_at timestamp.
func (a *clickhouseArchive) ArchiveCandles(ctx context.Context, candles []*models.ArchivedCandle) error {
	if len(candles) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO eth_candle (
			source, coin, bucket_days, granularity,
			open, high, low, close,
			close_time, inserted_at
		)
	`)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, c := range candles {
		err := batch.Append(
			c.Source,
			c.Coin,
			uint16(c.BucketDays),
			c.Granularity,
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.CloseTime,
			now,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

// Close closes the ClickHouse connection.
func (a *clickhouseArchive) Close() error {
	return a.conn.Close()
}
