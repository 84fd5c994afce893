package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/pkg/jwtx"
)

func TestTokenRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	u := domain.User{ID: "user-1", Email: "a@x.com"}

	access, err := env.tokens.IssueAccessToken(u)
	require.NoError(t, err)

	claims, err := env.tokens.VerifyAccessToken(access)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.Subject)
	require.Equal(t, u.Email, claims.Email)
	require.Equal(t, AccessScope, claims.Scope)
	require.Equal(t, jwtx.TokenTypeAccess, claims.TokenType)

	refresh, err := env.tokens.IssueRefreshToken(u)
	require.NoError(t, err)
	rc, err := env.tokens.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	require.Equal(t, u.ID, rc.Subject)
	require.Empty(t, rc.Email)
}

func TestTokenTypeConfusion(t *testing.T) {
	env := newTestEnv(t)
	u := domain.User{ID: "user-1", Email: "a@x.com"}

	pair, err := env.tokens.IssuePair(u)
	require.NoError(t, err)

	_, err = env.tokens.VerifyRefreshToken(pair.AccessToken)
	requireCode(t, err, CodeTokenInvalid)
	_, err = env.tokens.VerifyAccessToken(pair.RefreshToken)
	requireCode(t, err, CodeTokenInvalid)
}

func TestTokenRejectsForeignTokens(t *testing.T) {
	env := newTestEnv(t)
	u := domain.User{ID: "user-1", Email: "a@x.com"}

	otherSigner, err := jwtx.NewSignerHS256([]byte(strings.Repeat("z", 32)))
	require.NoError(t, err)

	tests := []struct {
		name   string
		tokens *TokenService
	}{
		{"other secret", &TokenService{Signer: otherSigner, Issuer: testIssuer, Audience: testAudience, Now: env.clock.Now}},
		{"other audience", &TokenService{Signer: env.tokens.Signer, Issuer: testIssuer, Audience: "someone-else", Now: env.clock.Now}},
		{"other issuer", &TokenService{Signer: env.tokens.Signer, Issuer: "someone-else", Audience: testAudience, Now: env.clock.Now}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := tt.tokens.IssueAccessToken(u)
			require.NoError(t, err)
			_, err = env.tokens.VerifyAccessToken(token)
			requireCode(t, err, CodeTokenInvalid)
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	env := newTestEnv(t)
	u := domain.User{ID: "user-1", Email: "a@x.com"}

	access, err := env.tokens.IssueAccessToken(u)
	require.NoError(t, err)

	env.clock.Advance(15*time.Minute + time.Second)
	_, err = env.tokens.VerifyAccessToken(access)
	requireCode(t, err, CodeTokenExpired)

	_, err = env.tokens.VerifyAccessToken("not.a.jwt")
	requireCode(t, err, CodeTokenInvalid)
	_, err = env.tokens.VerifyAccessToken("")
	requireCode(t, err, CodeUnauthorized)
}

func TestTokenDefaults(t *testing.T) {
	s := &TokenService{}
	require.Equal(t, jwtx.DefaultAccessTokenTTL, s.AccessTokenTTL())
	require.Equal(t, jwtx.DefaultRefreshTokenTTL, s.RefreshTokenTTL())
}
