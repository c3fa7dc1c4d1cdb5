package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sqliteScheme = "sqlite://"

// PoolOptions bounds the connection pool shared by the API and the render worker.
type PoolOptions struct {
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// Connect opens the report datastore. PostgreSQL DSNs are the default;
// a sqlite:// DSN opens a local file for single-node development.
func Connect(dsn string, pool PoolOptions) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn must not be empty")
	}

	dialector := postgres.Open(dsn)
	if strings.HasPrefix(dsn, sqliteScheme) {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, sqliteScheme))
		// sqlite allows a single writer.
		pool.MaxOpenConns = 1
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnLifetime)
	}

	return db, nil
}
