package infra

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewGormDB exposes the shared pgx pool through gorm so CRUD-style repositories
// and the ledger store use the same connections.
func NewGormDB(pool *pgxpool.Pool, verbose bool) (*gorm.DB, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres pool is required")
	}

	level := logger.Silent
	if verbose {
		level = logger.Warn
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return db, nil
}
