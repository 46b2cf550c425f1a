package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/isc-maritime/stockroom/internal/docstore"
	"github.com/isc-maritime/stockroom/internal/platform/db"
)

// Store is the configured document store plus the handles backing it.
type Store struct {
	docstore.Store
	Driver string
	close  func()
}

// Close releases the underlying connections.
func (s *Store) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// OpenStore connects the backend selected by STORE_DRIVER, applying
// migrations first when MIGRATE_ON_START is set.
func OpenStore(ctx context.Context, cfg *Config, notifier docstore.Notifier, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.MigrateOnStart {
			if err := db.MigratePostgres(ctx, cfg.PGDSN); err != nil {
				return nil, err
			}
		}
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		return &Store{Store: docstore.NewPostgres(pool, notifier), Driver: cfg.StoreDriver, close: pool.Close}, nil
	case StoreDriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx, sqlDB, db.DialectSQLite); err != nil {
				_ = sqlDB.Close()
				return nil, err
			}
		}
		closer := func() {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("sqlite close", slog.Any("error", err))
			}
		}
		return &Store{Store: docstore.NewSQLite(sqlDB, notifier), Driver: cfg.StoreDriver, close: closer}, nil
	case StoreDriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return &Store{Store: docstore.NewMemory(notifier), Driver: cfg.StoreDriver}, nil
	default:
		return nil, fmt.Errorf("app: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
