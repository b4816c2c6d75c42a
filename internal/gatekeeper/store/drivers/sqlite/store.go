// Package sqlite implements the gateway's store interfaces over a
// SQLite database. Suitable for single-instance deployments; the
// algorithmic core only sees the store interfaces, so swapping in a
// shared database driver does not touch it.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/openagri/gatekeeper/internal/gatekeeper/store"
	_ "modernc.org/sqlite"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx,
// letting the repos serve both plain and transactional stores.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at dsn. The caller
// should pass WAL and busy-timeout options in the DSN; foreign keys
// are always enforced.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// An in-memory database exists per connection; cap the pool so
	// every query sees the same one.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Tx starts a read/write transaction scoped to the same repositories.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &storeTx{tx: tx}, nil
}

// WithTx runs fn inside a transaction, handling commit and rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Rollback is a no-op after a successful commit.
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Identities() store.Identities   { return &identitiesRepo{q: s.db} }
func (s *Store) Families() store.Families       { return &familiesRepo{q: s.db} }
func (s *Store) Revocations() store.Revocations { return &revocationsRepo{q: s.db} }

// storeTx adapts *sql.Tx to the store.Tx interface.
type storeTx struct {
	tx *sql.Tx
}

func (t *storeTx) Identities() store.Identities   { return &identitiesRepo{q: t.tx} }
func (t *storeTx) Families() store.Families       { return &familiesRepo{q: t.tx} }
func (t *storeTx) Revocations() store.Revocations { return &revocationsRepo{q: t.tx} }

func (t *storeTx) Commit() error   { return t.tx.Commit() }
func (t *storeTx) Rollback() error { return t.tx.Rollback() }

func (t *storeTx) ApplyMigrations() error { return errors.New("sqlite: migrations inside tx") }
func (t *storeTx) Close() error           { return errors.New("sqlite: close inside tx") }

func (t *storeTx) Ping(context.Context) error { return nil }

func (t *storeTx) Tx(context.Context) (store.Tx, error) {
	return nil, errors.New("sqlite: nested transactions not supported")
}

func (t *storeTx) WithTx(context.Context, func(tx store.Tx) error) error {
	return errors.New("sqlite: nested transactions not supported")
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// Timestamps are stored as unix milliseconds; SQLite has no native
// time type and integer columns index and compare cleanly.

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := fromMillis(ns.Int64)
	return &t
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
