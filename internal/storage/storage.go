// Package storage persists daily and monthly ETH metrics.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/navid-fn/ethmetrics/configs"
	"github.com/navid-fn/ethmetrics/internal/storage/migrations"
	"github.com/navid-fn/ethmetrics/internal/storage/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when no record exists for the requested key.
var ErrNotFound = errors.New("record not found")

// Store is the document store of the pipeline. Implementations must be safe
// for concurrent use.
type Store interface {
	// GetDaily returns the record for a YYYY-MM-DD date or ErrNotFound.
	GetDaily(ctx context.Context, date string) (*models.DailyMetrics, error)

	// UpsertDaily inserts the record or, when its date exists, updates the
	// price, volume, timestamp and updated_at fields in one atomic statement.
	// created_at and the enrichment fields of an existing record are kept.
	UpsertDaily(ctx context.Context, rec *models.DailyMetrics) error

	// CommitDaily upserts all records in one transaction.
	CommitDaily(ctx context.Context, recs []*models.DailyMetrics) error

	// DailyInRange returns records with from <= timestamp <= to, ascending.
	DailyInRange(ctx context.Context, from, to time.Time) ([]models.DailyMetrics, error)

	// GetMonthly returns the record for a YYYY-MM month or ErrNotFound.
	GetMonthly(ctx context.Context, month string) (*models.MonthlyMetrics, error)

	// SaveMonthly overwrites the month's summary, keeping created_at.
	SaveMonthly(ctx context.Context, rec *models.MonthlyMetrics) error

	// MonthlySince returns monthly records with timestamp >= since, ascending.
	MonthlySince(ctx context.Context, since time.Time) ([]models.MonthlyMetrics, error)

	Ping(ctx context.Context) error
	Close() error
}

var dailyUpdateColumns = []string{
	"timestamp",
	"timestamp_iso",
	"price_open",
	"price_high",
	"price_low",
	"price_close",
	"volume",
	"updated_at",
}

var monthlyUpdateColumns = []string{
	"timestamp",
	"timestamp_iso",
	"avg_price",
	"avg_total_supply",
	"avg_market_cap",
	"end_total_supply",
	"end_market_cap",
	"data_points",
	"updated_at",
}

// Open connects to the configured provider and verifies the connection.
func Open(cfg configs.StoreConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Provider {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Provider)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Provider, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Provider, err)
	}

	return db, nil
}

// Migrate applies the embedded migrations of provider to db.
func Migrate(ctx context.Context, db *gorm.DB, provider string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return migrations.Up(ctx, sqlDB, provider)
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection. Close closes it.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) GetDaily(ctx context.Context, date string) (*models.DailyMetrics, error) {
	var rec models.DailyMetrics
	err := s.db.WithContext(ctx).Where("date = ?", date).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *gormStore) UpsertDaily(ctx context.Context, rec *models.DailyMetrics) error {
	return upsertDaily(s.db.WithContext(ctx), []*models.DailyMetrics{rec})
}

func (s *gormStore) CommitDaily(ctx context.Context, recs []*models.DailyMetrics) error {
	if len(recs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertDaily(tx, recs)
	})
}

func upsertDaily(db *gorm.DB, recs []*models.DailyMetrics) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns(dailyUpdateColumns),
	}).Create(recs).Error
}

func (s *gormStore) DailyInRange(ctx context.Context, from, to time.Time) ([]models.DailyMetrics, error) {
	var recs []models.DailyMetrics
	err := s.db.WithContext(ctx).
		Where(`"timestamp" BETWEEN ? AND ?`, from.UTC(), to.UTC()).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).
		Find(&recs).Error
	return recs, err
}

func (s *gormStore) GetMonthly(ctx context.Context, month string) (*models.MonthlyMetrics, error) {
	var rec models.MonthlyMetrics
	err := s.db.WithContext(ctx).Where("month = ?", month).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *gormStore) SaveMonthly(ctx context.Context, rec *models.MonthlyMetrics) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "month"}},
		DoUpdates: clause.AssignmentColumns(monthlyUpdateColumns),
	}).Create(rec).Error
}

func (s *gormStore) MonthlySince(ctx context.Context, since time.Time) ([]models.MonthlyMetrics, error) {
	var recs []models.MonthlyMetrics
	err := s.db.WithContext(ctx).
		Where(`"timestamp" >= ?`, since.UTC()).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).
		Find(&recs).Error
	return recs, err
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
