// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// ServerPort is the port the HTTP trigger API listens on.
	ServerPort string

	// MetricsPort is the port the scheduler serves /metrics on.
	MetricsPort string

	// Store contains the daily/monthly metrics database settings.
	Store StoreConfig

	// Coingecko contains settings for the CoinGecko price source.
	Coingecko CoingeckoConfigs

	// Pipeline contains batching settings for backfills.
	Pipeline PipelineConfig

	// Schedule contains the time-based trigger settings.
	Schedule ScheduleConfig

	// Redis contains the optional monthly query cache settings.
	Redis RedisConfig

	// ArchiveDSN is the ClickHouse DSN for the raw candle archive.
	// Empty disables archiving.
	ArchiveDSN string
}

// StoreConfig selects and connects the metrics database.
type StoreConfig struct {
	// Provider is "postgres" or "sqlite".
	Provider string

	// DSN is the provider-specific connection string.
	DSN string
}

// CoingeckoConfigs holds CoinGecko API client settings.
type CoingeckoConfigs struct {
	// BaseURL is the API root, e.g. "https://api.coingecko.com/api/v3".
	BaseURL string

	// APIKey is sent as x-cg-demo-api-key when set.
	APIKey string

	// CoinID is the CoinGecko coin id (e.g., "ethereum").
	CoinID string

	// VsCurrency is the quote currency (e.g., "usd").
	VsCurrency string

	// RequestTimeout bounds every request to the API.
	RequestTimeout time.Duration

	// RequestsPerSecond paces calls to stay under the free-tier rate limit.
	RequestsPerSecond float64
}

// PipelineConfig holds backfill batching settings.
type PipelineConfig struct {
	// BatchSize is the maximum number of records per store commit.
	BatchSize int
}

// ScheduleConfig holds the daily and monthly trigger times (UTC) and the
// retry policy applied to failed scheduled runs.
type ScheduleConfig struct {
	DailyHour   int
	DailyMinute int

	MonthlyDay  int
	MonthlyHour int

	// RetryCount is the number of retries after a failed run.
	RetryCount int

	// MaxRetryDuration caps the total time spent retrying one run.
	MaxRetryDuration time.Duration
}

// RedisConfig holds the monthly query cache settings.
type RedisConfig struct {
	// Addr is host:port. Empty disables the cache.
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// getStoreConfig builds the store DSN from environment variables.
func getStoreConfig() StoreConfig {
	provider := getEnv("STORE_PROVIDER", "postgres")
	if provider == "sqlite" {
		return StoreConfig{
			Provider: provider,
			DSN:      getEnv("SQLITE_PATH", "data/ethmetrics.db"),
		}
	}

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_USER", "postgres"),
		getEnv("POSTGRES_PASSWORD", "postgres"),
		getEnv("POSTGRES_DB", "ethmetrics"),
		getEnv("POSTGRES_SSLMODE", "disable"),
	)
	return StoreConfig{Provider: provider, DSN: dsn}
}

// getArchiveDSN returns the ClickHouse DSN, or "" when no host is configured.
func getArchiveDSN() string {
	host := getEnv("CLICKHOUSE_HOST", "")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&read_timeout=20s",
		getEnv("CLICKHOUSE_USER", "default"),
		getEnv("CLICKHOUSE_PASSWORD", ""),
		host,
		getEnv("CLICKHOUSE_TCP_PORT", "9000"),
		getEnv("CLICKHOUSE_DB", "default"),
	)
}

// getCoingeckoConfigs loads CoinGecko settings from environment.
func getCoingeckoConfigs() CoingeckoConfigs {
	rps, err := strconv.ParseFloat(getEnv("COINGECKO_RPS", "0.5"), 64)
	if err != nil || rps <= 0 {
		rps = 0.5
	}

	return CoingeckoConfigs{
		BaseURL:           getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
		APIKey:            getEnv("COINGECKO_API_KEY", ""),
		CoinID:            getEnv("COINGECKO_COIN_ID", "ethereum"),
		VsCurrency:        getEnv("COINGECKO_VS_CURRENCY", "usd"),
		RequestTimeout:    time.Duration(getEnvInt("COINGECKO_TIMEOUT_SECONDS", 10)) * time.Second,
		RequestsPerSecond: rps,
	}
}

// getScheduleConfig loads the trigger times, clamping them to valid ranges.
func getScheduleConfig() ScheduleConfig {
	cfg := ScheduleConfig{
		DailyHour:        clamp(getEnvInt("DAILY_SCHEDULE_HOUR", 0), 0, 23),
		DailyMinute:      clamp(getEnvInt("DAILY_SCHEDULE_MINUTE", 5), 0, 59),
		MonthlyDay:       clamp(getEnvInt("MONTHLY_SCHEDULE_DAY", 2), 1, 28),
		MonthlyHour:      clamp(getEnvInt("MONTHLY_SCHEDULE_HOUR", 1), 0, 23),
		RetryCount:       max(getEnvInt("SCHEDULE_RETRY_COUNT", 3), 0),
		MaxRetryDuration: time.Duration(getEnvInt("SCHEDULE_MAX_RETRY_SECONDS", 600)) * time.Second,
	}
	return cfg
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),
		Store:       getStoreConfig(),
		Coingecko:   getCoingeckoConfigs(),
		Pipeline: PipelineConfig{
			BatchSize: getEnvInt("BATCH_SIZE", 500),
		},
		Schedule: getScheduleConfig(),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 600)) * time.Second,
		},
		ArchiveDSN: getArchiveDSN(),
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
