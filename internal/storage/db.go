// Package storage persists reports through gorm.
package storage

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/fmuoria/assessment-report-agent/internal/config"
)

// Open connects to the configured database
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	if logger != nil {
		logger.Info("database connected", zap.String("driver", cfg.Driver))
	}
	return db, nil
}

// Migrate creates or updates the given tables
func Migrate(db *gorm.DB, tables ...any) error {
	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}
