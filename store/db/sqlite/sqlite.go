// Package sqlite implements the identity key-value driver on a local
// sqlite file, the runtime's stand-in for browser-local storage.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/revahq/reva-widget/store"
)

type DB struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_ts BIGINT NOT NULL
)`

// NewDB opens (and initializes if needed) the key-value database at dsn.
//
// Connection settings:
// - Journal mode WAL: prevents locking issues for a local single-user file.
// - busy_timeout: tolerates a second widget process on the same profile.
// - Single connection: optimal for SQLite with WAL, matches local usage.
//
// Note: with the `modernc.org/sqlite` driver each pragma must be prefixed
// with `_pragma=`.
func NewDB(dsn string) (store.Driver, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}

	sqliteDB, err := sql.Open("sqlite", dsn+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}

	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := sqliteDB.ExecContext(ctx, schema); err != nil {
		_ = sqliteDB.Close()
		return nil, errors.Wrap(err, "failed to initialize kv schema")
	}

	return &DB{db: sqliteDB}, nil
}

func (d *DB) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(store.ErrUnavailable, "get %s: %v", key, err)
	}
	return value, nil
}

func (d *DB) Set(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_ts) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_ts = excluded.updated_ts`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return errors.Wrapf(store.ErrUnavailable, "set %s: %v", key, err)
	}
	return nil
}

func (d *DB) Delete(ctx context.Context, key string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return errors.Wrapf(store.ErrUnavailable, "delete %s: %v", key, err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
