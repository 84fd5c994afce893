package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict reports a conditional write that lost to an earlier one,
	// such as marking an already used OTP.
	ErrConflict = errors.New("store: conflict")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories hang off it so the transactional variant can
// expose exactly the same surface.
type Store interface {
	Users() Users
	OTPs() OTPs

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn inside a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying connection pool.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks up by normalized email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. A duplicate email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateProfile sets the non-nil fields of p and bumps updated_at.
	UpdateProfile(ctx context.Context, userID string, p domain.ProfileUpdate, now time.Time) (domain.User, error)

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string, now time.Time) error

	// DeleteUser cascades to the user's OTPs (per schema).
	DeleteUser(ctx context.Context, userID string) error

	// ListUsers returns the newest users first.
	ListUsers(ctx context.Context, limit int) ([]domain.User, error)

	// CountUsers returns the total number of users.
	CountUsers(ctx context.Context) (int, error)
}

type OTPs interface {
	// CreateOTP stores a new OTP record.
	CreateOTP(ctx context.Context, o domain.OTP) error

	// GetOTPByID returns an OTP regardless of owner.
	GetOTPByID(ctx context.Context, id string) (domain.OTP, error)

	// GetUserOTP returns an OTP only if it belongs to userID and purpose.
	GetUserOTP(ctx context.Context, id, userID string, purpose domain.Purpose) (domain.OTP, error)

	// LatestOTP returns the most recently created OTP for (userID, purpose),
	// used or expired included.
	LatestOTP(ctx context.Context, userID string, purpose domain.Purpose) (domain.OTP, error)

	// MarkOTPUsed sets used_at only if it is still NULL. It returns
	// ErrConflict when the OTP was already used and ErrNotFound when it does
	// not exist.
	MarkOTPUsed(ctx context.Context, id string, usedAt time.Time) error

	// DeleteOTP removes an OTP. Only used to roll back a failed delivery.
	DeleteOTP(ctx context.Context, id string) error

	// ListOTPs returns the newest OTPs first with their owners.
	ListOTPs(ctx context.Context, limit int) ([]domain.OTPListing, error)

	// CountOTPs returns the total number of OTP records.
	CountOTPs(ctx context.Context) (int, error)

	// CountActiveOTPs counts unused OTPs that expire after now.
	CountActiveOTPs(ctx context.Context, now time.Time) (int, error)

	// DeleteExpiredOTPs removes OTPs that expired before cutoff, used or
	// not, and returns how many were deleted.
	DeleteExpiredOTPs(ctx context.Context, cutoff time.Time) (int64, error)
}
