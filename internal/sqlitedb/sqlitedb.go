// Package sqlitedb opens the racefeed SQLite databases with the pragmas both
// stores rely on, checks their schema version, and retries statements that
// lose the write lock to another process.
//
// Pragmas are passed through the DSN so every pooled connection gets them:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 10000
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteBusyCode = 5

type options struct {
	busyTimeout int
	immediate   bool
}

// Option customises Open.
type Option func(*options)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(o *options) { o.busyTimeout = ms } }

// WithImmediateTx makes BEGIN take the write lock, so concurrent writers queue
// on busy_timeout instead of failing when a read transaction upgrades.
func WithImmediateTx() Option { return func(o *options) { o.immediate = true } }

// Open opens the database at path, creating its directory when needed.
func Open(path string, opts ...Option) (*sql.DB, error) {
	o := options{busyTimeout: 10_000}
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", o.busyTimeout))
	params.Add("_pragma", "journal_mode(WAL)")
	if o.immediate {
		params.Set("_txlock", "immediate")
	}
	db, err := sql.Open("sqlite", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	return db, nil
}

// ErrSchemaMismatch reports a database created by a different racefeed release.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Schema describes the tables one store owns.
type Schema struct {
	// Name labels the database in errors ("queue", "results").
	Name    string
	DDL     string
	Version int
	// Remedy tells the operator how to get past a version mismatch.
	Remedy string
}

// EnsureSchema creates the schema in an empty database or verifies the
// recorded version of an existing one. There are no migrations.
func EnsureSchema(ctx context.Context, db *sql.DB, schema Schema) error {
	version, ok, err := RecordedVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("%s schema: %w", schema.Name, err)
	}
	if ok {
		if version != schema.Version {
			return fmt.Errorf("%w: %s database has version %d, expected %d (%s)",
				ErrSchemaMismatch, schema.Name, version, schema.Version, schema.Remedy)
		}
		return nil
	}
	return Retry(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schema.DDL); err != nil {
			return fmt.Errorf("create %s schema: %w", schema.Name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schema.Version); err != nil {
			return fmt.Errorf("record %s schema version: %w", schema.Name, err)
		}
		return tx.Commit()
	})
}

// RecordedVersion returns the schema version stored in db. ok is false for a
// database that was never initialised.
func RecordedVersion(ctx context.Context, db *sql.DB) (version int, ok bool, err error) {
	var tables int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tables); err != nil {
		return 0, false, fmt.Errorf("check schema_version table: %w", err)
	}
	if tables == 0 {
		return 0, false, nil
	}
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, true, nil
}

// IsBusy reports whether err is SQLite refusing the lock.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLITE_CONSTRAINT_UNIQUE")
}

const (
	retryAttempts       = 5
	retryInitialBackoff = 10 * time.Millisecond
	retryMaxBackoff     = 200 * time.Millisecond
)

// Retry runs op until it succeeds, fails with something other than busy, or
// five attempts are spent. Backoff doubles from 10ms up to 200ms.
func Retry(ctx context.Context, op func() error) error {
	delay := retryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !IsBusy(lastErr) || attempt == retryAttempts-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		if next := delay * 2; next <= retryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
