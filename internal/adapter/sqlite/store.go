// Package sqlite persists nodes, commune lookups, weather stations, museum
// counts and monthly weather averages in a single SQLite file.
//
// Every write is an upsert on the table's natural key, so re-running an
// ingestion converges to the same state and row ids stay stable.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/couchcryptid/transit-weather-etl/internal/observability"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// ErrDatabaseNotFound is returned by OpenExisting when the file is missing.
var ErrDatabaseNotFound = errors.New("database file does not exist")

// Store is the SQLite-backed persistence layer.
type Store struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, metrics *observability.Metrics) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer; SQLite serialises anyway and this keeps
	// transactions and plain statements on the same connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, metrics: metrics}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenExisting is Open for commands that read data produced by an earlier
// step: a missing file is a configuration error, not an empty database.
func OpenExisting(ctx context.Context, path string, metrics *observability.Metrics) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrDatabaseNotFound)
		}
		return nil, fmt.Errorf("stat database: %w", err)
	}
	return Open(ctx, path, metrics)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used as the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Count returns the number of rows in one of the known tables.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if !knownTable(table) {
		return 0, fmt.Errorf("count rows: unknown table %q", table)
	}
	var n int
	// Table name is checked against the schema allowlist above.
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	return n, nil
}

// inTx runs fn in a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// upsertEach prepares query once and executes it for every element of items
// inside one transaction.
func upsertEach[T any](ctx context.Context, s *Store, table, query string, items []T, args func(T) []any) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	n := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare %s upsert: %w", table, err)
		}
		defer stmt.Close()

		for _, it := range items {
			if _, err := stmt.ExecContext(ctx, args(it)...); err != nil {
				return fmt.Errorf("upsert into %s: %w", table, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.RowsUpserted.WithLabelValues(table).Add(float64(n))
	return n, nil
}
