// Package db owns the on-disk SQLite store for lifedeck.
//
// The database runs embedded (ncruces/go-sqlite3, no cgo) with WAL
// journaling. All access goes through a single connection: SQLite permits
// one writer at a time, and pinning the pool to one connection serializes
// repository calls made from different goroutines.
//
// Architecture:
//   - Database file: ~/.local/share/lifedeck/lifedeck.db (configurable)
//   - Schema: one table per entity family, created by InitSchema
//   - Structured sub-fields (lists, nested objects) are JSON in TEXT columns
package db

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// DriverName is the database/sql driver registered by ncruces/go-sqlite3.
const DriverName = "sqlite3"

// MemoryPath opens a private in-memory database. Useful for tests.
const MemoryPath = ":memory:"

// DB wraps the SQLite connection.
type DB struct {
	conn *sqlx.DB
	path string
}

// Open creates or opens the database at path and applies pragmas.
//
// Open does not create tables; call InitSchema before the first query.
// The caller MUST call Close() when done.
//
// Example:
//
//	database, err := db.Open("lifedeck.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
func Open(path string) (*DB, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path
	}

	conn, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Single writer. Also keeps an in-memory database alive for the
	// lifetime of the handle, since each new connection would get its own.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn, path: path}
	if err := db.applyPragmas(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Wrap adopts an existing connection. The connection is expected to be
// configured already; used by tests that inject a mocked driver.
func Wrap(conn *sqlx.DB) *DB {
	return &DB{conn: conn}
}

// X returns the sqlx handle used by repositories.
func (db *DB) X() *sqlx.DB {
	return db.conn
}

// Path returns the filesystem path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if db.path != "" && db.path != MemoryPath {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			slog.Warn("failed to checkpoint WAL", "path", db.path, "error", err)
		}
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

func (db *DB) applyPragmas() error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = OFF",
	}
	if db.path != MemoryPath {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		)
	}

	for _, pragma := range pragmas {
		if _, err := db.conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// InitSchema creates every table and index if missing.
//
// This is idempotent - safe to call on every startup. A failure here
// means the application has no usable local store and should exit.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// SchemaVersion reports PRAGMA user_version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// Tables lists the user tables present in the database, sorted by name.
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	var names []string
	err := db.conn.SelectContext(ctx, &names,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}
