package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/okian/pokerank/internal/config"
)

// Open builds the store selected by cfg.StorageDriver and migrates relational
// schemas before returning.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var dialector gorm.Dialector
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return NewMemStore(ctx, opts...), nil
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseURL)
	case config.DriverSQLite:
		dialector = sqlite.Open(SQLiteDSN(cfg.SQLitePath))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.StorageDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(o.logger),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.StorageDriver, err)
	}
	if cfg.StorageDriver == config.DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// One writer connection; sqlite locks the whole file anyway.
		sqlDB.SetMaxOpenConns(1)
	}

	store := NewGormStore(db, opts...)
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// SQLiteDSN turns a file path into a DSN with foreign keys and a busy timeout.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}
