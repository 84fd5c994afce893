package domain

import "time"

// User is an account. Email is stored normalized (trimmed, lowercased) and is
// immutable once created.
type User struct {
	ID           string
	Email        string
	Name         string // optional display name, "" when unset
	ImageURL     string // optional avatar reference, "" when unset
	PasswordHash string // argon2id PHC string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the user shape returned to clients. It never carries the
// password hash.
type PublicUser struct {
	ID        string
	Email     string
	Name      *string
	ImageURL  *string
	CreatedAt time.Time
}

// Public strips the secret fields off u.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      optional(u.Name),
		ImageURL:  optional(u.ImageURL),
		CreatedAt: u.CreatedAt,
	}
}

// ProfileUpdate carries the mutable profile fields. Nil leaves a field as is,
// a pointer to "" clears it.
type ProfileUpdate struct {
	Name     *string
	ImageURL *string
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.ImageURL == nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
