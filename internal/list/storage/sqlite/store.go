// Package sqlite provides a SQLite-backed list storage implementation.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fedilist/fedilist/internal/list/storage"
	sqlitemigrate "github.com/fedilist/fedilist/internal/platform/storage/sqlitemigrate"
	"github.com/fedilist/fedilist/internal/list/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists list state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite list store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func isUniqueViolation(err error, indexHint string) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			if indexHint == "" {
				return true
			}
		}
	}
	message := strings.ToLower(err.Error())
	if !strings.Contains(message, "unique constraint failed") {
		return false
	}
	return indexHint == "" || strings.Contains(message, indexHint)
}

// positionConflict reports whether a write tripped the (list_id, position)
// uniqueness index.
func positionConflict(err error) bool {
	return isUniqueViolation(err, "list_items.position") ||
		(err != nil && strings.Contains(strings.ToLower(err.Error()), "idx_list_items_position"))
}

var _ storage.ListStore = (*Store)(nil)
var _ storage.ItemStore = (*Store)(nil)
var _ storage.OutboxStore = (*Store)(nil)
