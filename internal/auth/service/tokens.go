package service

import (
	"errors"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/pkg/jwtx"
)

// ScopeReadProtected is the fixed capability granted to every access token.
const ScopeReadProtected = "read:protected"

// AccessScope is the scope set stamped on access tokens.
var AccessScope = []string{ScopeReadProtected}

// TokenService mints and validates stateless access and refresh tokens.
type TokenService struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier

	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// IssueAccessToken signs {sub, email, scope} for u.
func (s *TokenService) IssueAccessToken(u domain.User) (string, error) {
	claims := jwtx.NewAccessClaims(u.ID, u.Email, AccessScope, s.Issuer, s.Audience, s.accessTTL(), s.now())
	return s.Signer.Sign(claims)
}

// IssueRefreshToken signs {sub, token_type=refresh} for u.
func (s *TokenService) IssueRefreshToken(u domain.User) (string, error) {
	claims := jwtx.NewRefreshClaims(u.ID, s.Issuer, s.Audience, s.refreshTTL(), s.now())
	return s.Signer.Sign(claims)
}

// IssuePair mints a fresh access and refresh token for u.
func (s *TokenService) IssuePair(u domain.User) (domain.TokenPair, error) {
	access, err := s.IssueAccessToken(u)
	if err != nil {
		return domain.TokenPair{}, internal(err)
	}
	refresh, err := s.IssueRefreshToken(u)
	if err != nil {
		return domain.TokenPair{}, internal(err)
	}
	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresIn:  s.accessTTL(),
		RefreshToken:     refresh,
		RefreshExpiresIn: s.refreshTTL(),
	}, nil
}

// VerifyAccessToken validates signature, issuer, audience, expiry and the
// access discriminator.
func (s *TokenService) VerifyAccessToken(token string) (jwtx.Claims, error) {
	return s.verify(token, jwtx.TokenTypeAccess)
}

// VerifyRefreshToken is VerifyAccessToken for refresh tokens. An access
// token is rejected here and vice versa.
func (s *TokenService) VerifyRefreshToken(token string) (jwtx.Claims, error) {
	return s.verify(token, jwtx.TokenTypeRefresh)
}

func (s *TokenService) verify(token, typ string) (jwtx.Claims, error) {
	if token == "" {
		return jwtx.Claims{}, newError(CodeUnauthorized, "Missing token")
	}
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		return jwtx.Claims{}, tokenError(err)
	}
	if err := jwtx.RequireType(claims, typ); err != nil {
		return jwtx.Claims{}, tokenError(err)
	}
	if claims.Subject == "" {
		return jwtx.Claims{}, newError(CodeTokenInvalid, "Token invalid")
	}
	return claims, nil
}

func tokenError(err error) *Error {
	if errors.Is(err, jwtx.ErrExpired) {
		return wrapError(CodeTokenExpired, "Token expired", err)
	}
	return wrapError(CodeTokenInvalid, "Token invalid", err)
}

// AccessTokenTTL exposes the effective access token lifetime.
func (s *TokenService) AccessTokenTTL() time.Duration { return s.accessTTL() }

// RefreshTokenTTL exposes the effective refresh token lifetime.
func (s *TokenService) RefreshTokenTTL() time.Duration { return s.refreshTTL() }
