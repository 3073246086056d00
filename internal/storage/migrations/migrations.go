// Package migrations embeds the goose SQL migrations of the metrics store
// and the candle archive.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql clickhouse/*.sql
var FS embed.FS

// dialects maps a store provider to its goose dialect.
var dialects = map[string]string{
	"postgres":   "postgres",
	"sqlite":     "sqlite3",
	"clickhouse": "clickhouse",
}

// Up applies all pending migrations for provider ("postgres", "sqlite" or
// "clickhouse"). goose keeps package-level state, so Up must not run
// concurrently with itself.
func Up(ctx context.Context, db *sql.DB, provider string) error {
	dialect, ok := dialects[provider]
	if !ok {
		return fmt.Errorf("unknown migration provider %q", provider)
	}

	goose.SetBaseFS(FS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose: set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, provider); err != nil {
		return fmt.Errorf("goose: up %s: %w", provider, err)
	}
	return nil
}
