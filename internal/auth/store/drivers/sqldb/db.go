// Package sqldb holds the database/sql repositories shared by the sqlite and
// postgres drivers. Queries are written with "?" placeholders and rebound by
// the driver's Dialect.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/store"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect captures the few places the drivers differ.
type Dialect struct {
	Name string

	// Rebind rewrites "?" placeholders into the driver's native form.
	Rebind func(query string) string

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool
}

// Question leaves "?" placeholders untouched.
func Question(q string) string { return q }

// Dollar rewrites "?" placeholders into "$1", "$2", ... The queries in this
// package never contain a literal "?".
func Dollar(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// DB implements everything in store.Store except ApplyMigrations, which each
// driver provides.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open pool.
func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect}
}

// Conn exposes the pool to the owning driver for migrations.
func (s *DB) Conn() *sql.DB { return s.db }

func (s *DB) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *DB) Users() store.Users { return &usersRepo{q: s.db, d: s.dialect} }
func (s *DB) OTPs() store.OTPs   { return &otpsRepo{q: s.db, d: s.dialect} }

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *DB) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &txStore{tx: tx, dialect: s.dialect}, nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *DB) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// no-op after a successful commit
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type txStore struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *txStore) Users() store.Users { return &usersRepo{q: t.tx, d: t.dialect} }
func (t *txStore) OTPs() store.OTPs   { return &otpsRepo{q: t.tx, d: t.dialect} }

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op, the caller commits or rolls back and the pool stays open.
func (t *txStore) Close() error { return nil }

// Ping is a no-op, the transaction already holds a live connection.
func (t *txStore) Ping(context.Context) error { return nil }

// Nested transactions are not supported.
func (t *txStore) Tx(context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }
func (t *txStore) WithTx(context.Context, func(store.Tx) error) error {
	return sql.ErrTxDone
}

// ApplyMigrations is a no-op, migrations run before any transaction.
func (t *txStore) ApplyMigrations() error { return nil }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// utc normalises bound timestamps so sqlite's text comparison orders them
// correctly.
func utc(t time.Time) time.Time { return t.UTC() }
