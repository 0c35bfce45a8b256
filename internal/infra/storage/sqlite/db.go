// Package sqlite implements the storage repositories on an embedded SQLite
// file, one file per network. Every write commits before returning, so a
// killed process never loses previously committed batches.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its dialect and filesystem in package state.
var migrateMu sync.Mutex

// DB wraps the SQLite connection.
type DB struct {
	*sqlx.DB
	path string
	now  func() time.Time
}

// Option customises a DB.
type Option func(*DB)

// WithClock overrides the clock used for timestamps and TTL checks.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// Path returns the database file for a network under dataDir.
func Path(dataDir, network string) string {
	return filepath.Join(dataDir, network+".db")
}

// Open opens (creating if needed) the database file and applies migrations.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("failed to open database: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	conn, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxIdleTime(0)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{DB: conn, path: path, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

func migrate(ctx context.Context, conn *sqlx.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, conn.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// FilePath returns the backing file of the database.
func (db *DB) FilePath() string {
	return db.path
}
