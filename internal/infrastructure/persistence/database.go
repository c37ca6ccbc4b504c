// Package persistence stores finished print jobs in a local SQLite database.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cravings/printagent/internal/infrastructure/logger"
	"github.com/cravings/printagent/internal/infrastructure/persistence/models"
	"github.com/cravings/printagent/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DatabaseConfig configures the history database
type DatabaseConfig struct {
	DSN      string // file path or ":memory:"
	LogLevel string // silent, error, warn, info
	Tracing  telemetry.DBTracingConfig
}

// Database holds the database connection
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the SQLite database, installs tracing and migrates the schema
func NewDatabase(cfg DatabaseConfig, zapLogger *zap.Logger) (*Database, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	if err := ensureDir(cfg.DSN); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger:                 logger.NewGormLogger(zapLogger, logger.MapGormLogLevel(cfg.LogLevel)),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite allows one writer; an in-memory database exists per connection.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if err := telemetry.RegisterDBTracing(db, cfg.Tracing, zapLogger); err != nil {
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	if err := db.AutoMigrate(&models.JobRecordModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	return &Database{DB: db}, nil
}

func ensureDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}
