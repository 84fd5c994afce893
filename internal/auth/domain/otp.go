package domain

import "time"

// Purpose separates OTPs issued for login from those issued for password
// reset so one can never be spent as the other.
type Purpose string

const (
	PurposeLogin Purpose = "login"
	PurposeReset Purpose = "reset"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeLogin || p == PurposeReset
}

// OTP is a one-time passcode record. Only the bcrypt digest of the code is
// ever stored.
type OTP struct {
	ID        string
	UserID    string
	CodeHash  string
	Purpose   Purpose
	ExpiresAt time.Time
	UsedAt    *time.Time // nil while active
	CreatedAt time.Time
}

// Used reports whether the OTP has been consumed or revoked.
func (o OTP) Used() bool { return o.UsedAt != nil }

// Expired reports whether now is at or past the expiry.
func (o OTP) Expired(now time.Time) bool { return !now.Before(o.ExpiresAt) }

// Active reports whether the OTP could still authenticate at now.
func (o OTP) Active(now time.Time) bool { return !o.Used() && !o.Expired(now) }

// OTPListing is an OTP joined with its owner for the admin views. The code
// hash is deliberately absent.
type OTPListing struct {
	ID        string
	UserID    string
	UserEmail string
	UserName  *string
	Purpose   Purpose
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// NewOTPListing builds the admin view of o owned by u.
func NewOTPListing(o OTP, u User) OTPListing {
	return OTPListing{
		ID:        o.ID,
		UserID:    o.UserID,
		UserEmail: u.Email,
		UserName:  optional(u.Name),
		Purpose:   o.Purpose,
		ExpiresAt: o.ExpiresAt,
		UsedAt:    o.UsedAt,
		CreatedAt: o.CreatedAt,
	}
}
