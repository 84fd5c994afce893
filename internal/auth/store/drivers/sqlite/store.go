package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/aussiebroadwan/otpgate/internal/auth/store/drivers/sqldb"
)

// Store is the sqlite backed store.Store.
type Store struct {
	*sqldb.DB
}

// Dialect is the sqlite flavour of the shared repositories.
var Dialect = sqldb.Dialect{
	Name:              "sqlite",
	Rebind:            sqldb.Question,
	IsUniqueViolation: isUniqueViolation,
}

// defaultPragmas are applied to every connection the pool opens.
var defaultPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"journal_mode(WAL)",
}

// NewStore opens (creating if needed) the sqlite database at path. The pool is
// limited to a single connection since sqlite serialises writers anyway and
// this keeps transactions from tripping SQLITE_BUSY.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return &Store{DB: sqldb.New(db, Dialect)}, nil
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	params := make([]string, 0, len(defaultPragmas))
	for _, p := range defaultPragmas {
		params = append(params, "_pragma="+p)
	}
	return path + "?" + strings.Join(params, "&")
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
