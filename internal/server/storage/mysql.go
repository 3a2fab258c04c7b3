package storage

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLStorage implements Storage on MySQL
type MySQLStorage struct {
	*BaseStorage
}

// NewMySQLStorage creates a MySQL storage instance
func NewMySQLStorage(dsn string, opts Options, logger *zap.Logger) (*MySQLStorage, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	// time.Time scanning and multi-statement migrations
	cfg.ParseTime = true
	cfg.MultiStatements = true

	base, err := NewBaseStorage("mysql", cfg.FormatDSN(), opts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql storage: %w", err)
	}

	if err := runMigrations(base.db, "mysql"); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &MySQLStorage{BaseStorage: base}, nil
}
