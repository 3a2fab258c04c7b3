package storage

import (
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStorage implements Storage on SQLite
type SQLiteStorage struct {
	*BaseStorage
}

// NewSQLiteStorage creates a SQLite storage instance
func NewSQLiteStorage(dsn string, opts Options, logger *zap.Logger) (*SQLiteStorage, error) {
	// SQLite serializes writers; keep a single connection to avoid
	// SQLITE_BUSY under concurrent report traffic.
	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1

	base, err := NewBaseStorage("sqlite3", sqliteDSN(dsn), opts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite storage: %w", err)
	}

	if err := runMigrations(base.db, "sqlite"); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStorage{BaseStorage: base}, nil
}

// sqliteDSN appends the pragmas the server relies on
func sqliteDSN(dsn string) string {
	params := url.Values{}
	params.Add("_journal_mode", "WAL")
	params.Add("_busy_timeout", "5000")
	params.Add("_foreign_keys", "on")

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + params.Encode()
}
