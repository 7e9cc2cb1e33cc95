// Package database opens and prepares the ledger database
package database

import (
	"fmt"

	"github.com/GhasemiTaheri/aban-exchange/internal/config"
	"github.com/GhasemiTaheri/aban-exchange/pkg/models"
	"gorm.io/gorm"
)

// Open connects to the driver selected in cfg
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgresDB(cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime, cfg.LogSQL)
	case "sqlite":
		return NewSQLiteDB(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates or updates the accounts, orders and archive_orders tables.
// Production schema changes are owned by the migration pipeline; this is for
// local runs and tests.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
