// Package store implements the Durable Local Store: an embedded,
// transactional, table-oriented sqlite database holding the four domain
// collections (products, inventory, orders, settings) plus a persistent
// key-value area for state that must survive restarts (queue, backups,
// startup cache, device identity).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/smoocho/pos-terminal/internal/errors"
)

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, so every
// collection method works both inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// queries carries all per-collection operations over a dbtx.
type queries struct {
	q dbtx
}

// Store is the durable local store. It is the single shared mutable resource
// of the terminal; multi-collection writes must go through WithTx.
type Store struct {
	db *sql.DB
	queries
}

// Tx scopes a set of collection calls to one transaction.
type Tx struct {
	queries
}

// Open opens (creating if needed) the sqlite database under dataDir.
// WAL mode for concurrent reads, foreign keys on, single writer connection.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to create data directory", err)
	}

	dbPath := filepath.Join(dataDir, "pos.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to open database", err)
	}

	// SQLite has a single writer; keep one connection so the driver never
	// hands writes to a second one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrDatabase, "failed to enable WAL mode", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrDatabase, "failed to enable foreign keys", err)
	}

	return &Store{db: db, queries: queries{q: db}}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a single transaction. Any error (or panic) rolls the
// transaction back; readers never observe a torn multi-collection write.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			sqlTx.Rollback()
			return
		}
		if commitErr := sqlTx.Commit(); commitErr != nil {
			err = errors.Wrap(errors.ErrDatabase, "failed to commit transaction", commitErr)
		}
	}()

	return fn(&Tx{queries: queries{q: sqlTx}})
}

func rowsErr(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.ErrDatabase, "row iteration failed", err)
	}
	return nil
}

func notFound(kind, id string) error {
	return errors.New(errors.ErrNotFound, fmt.Sprintf("%s %s not found", kind, id))
}
