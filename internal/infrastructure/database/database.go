package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/nerrad567/posebridge/internal/infrastructure/config"
)

// MemoryPath opens a private in-memory database instead of a file.
const MemoryPath = ":memory:"

const (
	dirPermissions  = 0750
	filePermissions = 0600

	pingTimeout     = 5 * time.Second
	connMaxIdleTime = 30 * time.Minute
)

// ErrEmptyPath is returned by Open when database.path is not set.
var ErrEmptyPath = errors.New("database: path is empty")

// DB is the journal's SQLite handle.
type DB struct {
	*sql.DB
	path string
}

// Open connects to the SQLite file named by cfg.Path, creating its directory
// and the file itself when missing. MemoryPath skips the filesystem.
//
// Parameters:
//   - ctx: Bounds the connection check
//   - cfg: The database section of config.yaml
//
// Returns:
//   - *DB: Connected handle, limited to a single connection
//   - error: ErrEmptyPath, or the directory, open or ping failure
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	if cfg.Path == "" {
		return nil, ErrEmptyPath
	}
	onDisk := cfg.Path != MemoryPath
	if onDisk {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One writer at a time, and one connection keeps :memory: a single database.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if onDisk {
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Created lazily by the driver
	}
	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// dsn builds the go-sqlite3 connection string for cfg.
// See: https://github.com/mattn/go-sqlite3#connection-string
func dsn(cfg config.DatabaseConfig) string {
	params := []string{
		fmt.Sprintf("_busy_timeout=%d", cfg.BusyTimeout*int(time.Second/time.Millisecond)),
		"_foreign_keys=on",
	}
	// WAL needs a real file.
	if cfg.WALMode && cfg.Path != MemoryPath {
		params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL")
	}
	return "file:" + cfg.Path + "?" + strings.Join(params, "&")
}

// Close closes the connection.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the configured path, or MemoryPath.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs SQLite's quick_check, which fails on a closed handle and
// reports page-level corruption of the journal file.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database health check failed: %s", result)
	}
	return nil
}

// inTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
