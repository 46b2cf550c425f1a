package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/isc-maritime/stockroom/migrations"
)

// Dialects understood by Migrate.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// Migrate applies the embedded goose migrations for dialect.
func Migrate(ctx context.Context, sqlDB *sql.DB, dialect string) error {
	dir := "postgres"
	if dialect == DialectSQLite {
		dir = "sqlite"
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("platform/db: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return fmt.Errorf("platform/db: migrate %s: %w", dir, err)
	}
	return nil
}

// MigratePostgres opens a short-lived database/sql handle over the pgx driver
// and applies the postgres migrations.
func MigratePostgres(ctx context.Context, dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("platform/db: open migrate handle: %w", err)
	}
	defer func() {
		_ = sqlDB.Close()
	}()
	return Migrate(ctx, sqlDB, DialectPostgres)
}
