package storage

import (
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage on PostgreSQL
type PostgresStorage struct {
	*BaseStorage
}

// NewPostgresStorage creates a PostgreSQL storage instance
func NewPostgresStorage(dsn string, opts Options, logger *zap.Logger) (*PostgresStorage, error) {
	base, err := NewBaseStorage("postgres", dsn, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres storage: %w", err)
	}

	if err := runMigrations(base.db, "postgres"); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStorage{BaseStorage: base}, nil
}
