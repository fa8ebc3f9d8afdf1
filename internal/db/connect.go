// Package db opens and migrates the run-history database.
package db

import (
	"fmt"

	"github.com/YpS-YpS/katana/internal/config"
	"github.com/YpS-YpS/katana/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN from history settings.
func DSN(h config.HistoryConfig) string {
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", h.User, h.Host, h.Port, h.Name)
}

// Connect opens a GORM connection for the configured history backend.
func Connect(h config.HistoryConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	switch h.Driver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(h.Path), gcfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite %s: %w", h.Path, err)
		}
		return db, nil
	case "mysql":
		db, err := gorm.Open(mysql.Open(DSN(h)), gcfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", h.Host, h.Port, h.Name, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", h.Driver)
	}
}

// Migrate creates or updates the history tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.RunRecord{},
		&models.LaunchRecord{},
		&models.RunLog{},
	); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
