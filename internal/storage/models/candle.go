package models

import "time"

// ArchivedCandle is one raw price source candle kept in the ClickHouse archive.
type ArchivedCandle struct {
	// Source is the price source name (e.g., "coingecko").
	Source string `json:"source"`

	// Coin is the source's coin id (e.g., "ethereum").
	Coin string `json:"coin"`

	// BucketDays is the days bucket the candle was fetched with.
	BucketDays int `json:"bucket_days"`

	// Granularity is the candle period: "30-minute", "4-hour" or "4-day".
	Granularity string `json:"granularity"`

	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`

	// CloseTime is when the candle period ended.
	CloseTime time.Time `json:"close_time"`

	// InsertedAt is when the record was inserted into the archive.
	InsertedAt time.Time `json:"inserted_at"`
}
