package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/internal/auth/store"
)

type otpsRepo struct {
	q dbtx
	d Dialect
}

const otpColumns = `id, user_id, code_hash, purpose, expires_at, used_at, created_at`

func scanOTP(row interface{ Scan(...any) error }) (domain.OTP, error) {
	var (
		o       domain.OTP
		purpose string
		usedAt  sql.NullTime
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.CodeHash, &purpose, &o.ExpiresAt, &usedAt, &o.CreatedAt); err != nil {
		return domain.OTP{}, err
	}
	o.Purpose = domain.Purpose(purpose)
	o.ExpiresAt = o.ExpiresAt.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	o.UsedAt = nullTimePtr(usedAt)
	return o, nil
}

func (r *otpsRepo) CreateOTP(ctx context.Context, o domain.OTP) error {
	_, err := r.q.ExecContext(ctx, r.d.Rebind(
		`INSERT INTO otps (id, user_id, code_hash, purpose, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		o.ID, o.UserID, o.CodeHash, string(o.Purpose), utc(o.ExpiresAt), utc(o.CreatedAt),
	)
	if err != nil {
		if r.d.IsUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert otp: %w", err)
	}
	return nil
}

func (r *otpsRepo) GetOTPByID(ctx context.Context, id string) (domain.OTP, error) {
	o, err := scanOTP(r.q.QueryRowContext(ctx, r.d.Rebind(
		`SELECT `+otpColumns+` FROM otps WHERE id = ?`), id))
	if err != nil {
		return domain.OTP{}, mapNotFound(err)
	}
	return o, nil
}

func (r *otpsRepo) GetUserOTP(ctx context.Context, id, userID string, purpose domain.Purpose) (domain.OTP, error) {
	o, err := scanOTP(r.q.QueryRowContext(ctx, r.d.Rebind(
		`SELECT `+otpColumns+` FROM otps WHERE id = ? AND user_id = ? AND purpose = ?`),
		id, userID, string(purpose)))
	if err != nil {
		return domain.OTP{}, mapNotFound(err)
	}
	return o, nil
}

func (r *otpsRepo) LatestOTP(ctx context.Context, userID string, purpose domain.Purpose) (domain.OTP, error) {
	o, err := scanOTP(r.q.QueryRowContext(ctx, r.d.Rebind(
		`SELECT `+otpColumns+` FROM otps
		 WHERE user_id = ? AND purpose = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`),
		userID, string(purpose)))
	if err != nil {
		return domain.OTP{}, mapNotFound(err)
	}
	return o, nil
}

func (r *otpsRepo) MarkOTPUsed(ctx context.Context, id string, usedAt time.Time) error {
	// Conditional update so concurrent verifications cannot both win.
	res, err := r.q.ExecContext(ctx, r.d.Rebind(
		`UPDATE otps SET used_at = ? WHERE id = ? AND used_at IS NULL`), utc(usedAt), id)
	if err != nil {
		return fmt.Errorf("mark otp used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	if _, err := r.GetOTPByID(ctx, id); err != nil {
		return err
	}
	return store.ErrConflict
}

func (r *otpsRepo) DeleteOTP(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, r.d.Rebind(`DELETE FROM otps WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return requireRow(res)
}

func (r *otpsRepo) ListOTPs(ctx context.Context, limit int) ([]domain.OTPListing, error) {
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(
		`SELECT o.id, o.user_id, o.purpose, o.expires_at, o.used_at, o.created_at, u.email, u.name
		 FROM otps o JOIN users u ON u.id = o.user_id
		 ORDER BY o.created_at DESC, o.id DESC
		 LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list otps: %w", err)
	}
	defer rows.Close()

	out := make([]domain.OTPListing, 0, limit)
	for rows.Next() {
		var (
			o       domain.OTP
			u       domain.User
			purpose string
			usedAt  sql.NullTime
			name    sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.UserID, &purpose, &o.ExpiresAt, &usedAt, &o.CreatedAt, &u.Email, &name); err != nil {
			return nil, fmt.Errorf("scan otp: %w", err)
		}
		o.Purpose = domain.Purpose(purpose)
		o.ExpiresAt = o.ExpiresAt.UTC()
		o.CreatedAt = o.CreatedAt.UTC()
		o.UsedAt = nullTimePtr(usedAt)
		u.Name = name.String
		out = append(out, domain.NewOTPListing(o, u))
	}
	return out, rows.Err()
}

func (r *otpsRepo) CountOTPs(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM otps`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count otps: %w", err)
	}
	return n, nil
}

func (r *otpsRepo) CountActiveOTPs(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, r.d.Rebind(
		`SELECT COUNT(*) FROM otps WHERE used_at IS NULL AND expires_at > ?`), utc(now)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active otps: %w", err)
	}
	return n, nil
}

func (r *otpsRepo) DeleteExpiredOTPs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, r.d.Rebind(`DELETE FROM otps WHERE expires_at < ?`), utc(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	return res.RowsAffected()
}
