package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/aussiebroadwan/otpgate/internal/auth/store/drivers/sqldb"
)

const uniqueViolation = "23505"

// Store is the postgres backed store.Store.
type Store struct {
	*sqldb.DB
}

// Dialect is the postgres flavour of the shared repositories.
var Dialect = sqldb.Dialect{
	Name:              "postgres",
	Rebind:            sqldb.Dollar,
	IsUniqueViolation: isUniqueViolation,
}

// NewStore connects to dsn through the pgx stdlib driver.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Store{DB: sqldb.New(db, Dialect)}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
