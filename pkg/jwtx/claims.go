package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type discriminators carried in the "token_type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Default lifetimes. Services override both from configuration.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims is the payload shared by access and refresh tokens. Refresh tokens
// only populate the registered claims and TokenType.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the subject at issue time. Access tokens only.
	Email string `json:"email,omitempty"`

	// Scope is the fixed capability set granted to access tokens.
	Scope []string `json:"scope,omitempty"`

	// TokenType is "access" or "refresh".
	TokenType string `json:"token_type"`
}

// NewAccessClaims builds the claims for a short lived access token.
func NewAccessClaims(
	subject, email string,
	scope []string,
	issuer, audience string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, audience, ttl, now),
		Email:            email,
		Scope:            scope,
		TokenType:        TokenTypeAccess,
	}
}

// NewRefreshClaims builds the claims for a refresh token. No identity beyond
// the subject is embedded.
func NewRefreshClaims(subject, issuer, audience string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, audience, ttl, now),
		TokenType:        TokenTypeRefresh,
	}
}

func registered(subject, issuer, audience string, ttl time.Duration, now time.Time) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
	if audience != "" {
		rc.Audience = jwt.ClaimStrings{audience}
	}
	return rc
}

// NewJTI returns a random UUIDv4 for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// HasScope reports whether the claims grant scope s.
func (c Claims) HasScope(s string) bool {
	return slices.Contains(c.Scope, s)
}

// ExpiresIn returns the whole seconds between now and the exp claim,
// floored at zero.
func (c Claims) ExpiresIn(now time.Time) int64 {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(int64(c.ExpiresAt.Sub(now)/time.Second), 0)
}
