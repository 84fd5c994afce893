package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/internal/auth/store"
)

type usersRepo struct {
	q dbtx
	d Dialect
}

const userColumns = `id, email, name, image_url, password_hash, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u              domain.User
		name, imageURL sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &name, &imageURL, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, err
	}
	u.Name = name.String
	u.ImageURL = imageURL.String
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, r.d.Rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, r.d.Rebind(
		`SELECT `+userColumns+` FROM users WHERE email = ?`), email))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx, r.d.Rebind(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Email, nullString(u.Name), nullString(u.ImageURL), u.PasswordHash,
		utc(u.CreatedAt), utc(u.UpdatedAt),
	)
	if err != nil {
		if r.d.IsUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *usersRepo) UpdateProfile(
	ctx context.Context,
	userID string,
	p domain.ProfileUpdate,
	now time.Time,
) (domain.User, error) {
	sets := []string{"updated_at = ?"}
	args := []any{utc(now)}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, nullString(*p.Name))
	}
	if p.ImageURL != nil {
		sets = append(sets, "image_url = ?")
		args = append(args, nullString(*p.ImageURL))
	}
	args = append(args, userID)

	res, err := r.q.ExecContext(ctx, r.d.Rebind(
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}
	if err := requireRow(res); err != nil {
		return domain.User{}, err
	}
	return r.GetUserByID(ctx, userID)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string, now time.Time) error {
	res, err := r.q.ExecContext(ctx, r.d.Rebind(
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`),
		newHash, utc(now), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(res)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	res, err := r.q.ExecContext(ctx, r.d.Rebind(`DELETE FROM users WHERE id = ?`), userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(res)
}

func (r *usersRepo) ListUsers(ctx context.Context, limit int) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *usersRepo) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
