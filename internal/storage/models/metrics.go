// Package models defines the persisted records of the metrics store.
package models

import "time"

// Price is the OHLC block of a daily record.
type Price struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// DailyMetrics is one UTC calendar day of ETH market data.
// Date is the natural key; there is at most one record per date.
type DailyMetrics struct {
	// Date is the UTC calendar date, YYYY-MM-DD.
	Date string `gorm:"column:date;primaryKey" json:"date"`

	// Timestamp is UTC midnight of Date.
	Timestamp time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`

	// TimestampISO is Timestamp rendered as 2006-01-02T15:04:05.000Z.
	TimestampISO string `gorm:"column:timestamp_iso;not null" json:"timestamp_iso"`

	Price Price `gorm:"embedded;embeddedPrefix:price_" json:"price"`

	// Volume is the USD trading volume of the day, 0 when unknown.
	Volume float64 `gorm:"column:volume;not null" json:"volume"`

	// TotalSupply and MarketCap are filled by enrichment jobs, never by price writes.
	TotalSupply *float64 `gorm:"column:total_supply" json:"total_supply,omitempty"`
	MarketCap   *float64 `gorm:"column:market_cap" json:"market_cap,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (DailyMetrics) TableName() string { return "daily_metrics" }

// MonthlyMetrics summarizes the daily records of one calendar month.
// It is derived data and is recomputed and overwritten as a whole.
type MonthlyMetrics struct {
	// Month is YYYY-MM.
	Month string `gorm:"column:month;primaryKey" json:"month"`

	// Timestamp is the first instant of the month, UTC.
	Timestamp time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`

	// TimestampISO equals Month.
	TimestampISO string `gorm:"column:timestamp_iso;not null" json:"timestamp_iso"`

	AvgPrice       float64 `gorm:"column:avg_price" json:"avg_price"`
	AvgTotalSupply float64 `gorm:"column:avg_total_supply" json:"avg_total_supply"`
	AvgMarketCap   float64 `gorm:"column:avg_market_cap" json:"avg_market_cap"`
	EndTotalSupply float64 `gorm:"column:end_total_supply" json:"end_total_supply"`
	EndMarketCap   float64 `gorm:"column:end_market_cap" json:"end_market_cap"`

	// DataPoints is the number of daily records the month was computed from.
	DataPoints int `gorm:"column:data_points" json:"data_points"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (MonthlyMetrics) TableName() string { return "monthly_metrics" }
