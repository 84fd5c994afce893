package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/aussiebroadwan/otpgate/internal/auth/store/drivers/postgres/migrations"
)

// ApplyMigrations runs the embedded goose migrations.
func (s *Store) ApplyMigrations() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("postgres: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.Conn(), "."); err != nil {
		return fmt.Errorf("postgres: migrate up: %w", err)
	}
	return nil
}
