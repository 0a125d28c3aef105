package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const sqliteTimeLayout = time.RFC3339Nano

const (
	// DriverCGO is mattn/go-sqlite3.
	DriverCGO = "sqlite3"
	// DriverPure is modernc.org/sqlite, usable without cgo.
	DriverPure = "sqlite"
)

var ErrNilDB = errors.New("storage: nil db")

type SQLiteSubstrate struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteSubstrate wraps an already migrated database.
func NewSQLiteSubstrate(db *sql.DB) (*SQLiteSubstrate, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	return &SQLiteSubstrate{db: db, now: time.Now}, nil
}

// OpenSQLite opens path with the given driver and applies migrations.
func OpenSQLite(ctx context.Context, driver, path string) (*SQLiteSubstrate, error) {
	switch driver {
	case "":
		driver = DriverCGO
	case DriverCGO, DriverPure:
	default:
		return nil, fmt.Errorf("storage: unsupported sqlite driver %q", driver)
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps writes ordered and avoids SQLITE_BUSY between pooled conns.
	db.SetMaxOpenConns(1)
	if err := MigrateUp(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	sub, err := NewSQLiteSubstrate(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return sub, nil
}

func (s *SQLiteSubstrate) Close() error {
	return s.db.Close()
}

func (s *SQLiteSubstrate) Read(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM collections WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(value), nil
}

func (s *SQLiteSubstrate) Write(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), mustTime(s.now()),
	)
	return err
}

// UpdatedAt reports when key was last written.
func (s *SQLiteSubstrate) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM collections WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	return parseRequiredTime(raw)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}
