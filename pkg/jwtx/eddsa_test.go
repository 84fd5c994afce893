package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/otpgate/pkg/cryptox"
	"github.com/aussiebroadwan/otpgate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newEdDSASigner(t *testing.T, kid string) *jwtx.EdDSASigner {
	t.Helper()
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	require.NoError(t, err)
	return signer
}

func TestEdDSASignAndVerify(t *testing.T) {
	signer := newEdDSASigner(t, "test-key-eddsa")
	require.NoError(t, signer.Validate())
	require.Equal(t, "EdDSA", signer.Alg())
	require.Equal(t, "test-key-eddsa", signer.KID())

	now := time.Now().UTC()
	claims := jwtx.NewRefreshClaims("user-456", exampleIssuer, exampleAudience, time.Hour, now)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	keyset := jwtx.NewKeySet()
	require.False(t, keyset.IsReady())
	require.NoError(t, keyset.AddSigner(signer))
	require.True(t, keyset.IsReady())

	jwks := keyset.PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
	require.Equal(t, "Ed25519", jwks.Keys[0].Crv)
	require.NotEmpty(t, jwks.Keys[0].X)

	verifier := jwtx.NewVerifierEdDSA(keyset, jwtx.VerifyOptions{Issuer: exampleIssuer, Audience: exampleAudience})
	got, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-456", got.Subject)
	require.Equal(t, jwtx.TokenTypeRefresh, got.TokenType)
}

func TestEdDSAVerifyFailsForUnknownKey(t *testing.T) {
	signer := newEdDSASigner(t, "published")
	rogue := newEdDSASigner(t, "rogue")

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	token, err := rogue.Sign(jwtx.NewRefreshClaims("u", exampleIssuer, exampleAudience, time.Hour, time.Now().UTC()))
	require.NoError(t, err)

	_, err = jwtx.NewVerifierEdDSA(keyset, jwtx.VerifyOptions{}).Verify(token)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
}

func TestEdDSAKeySetReplacesSameKID(t *testing.T) {
	first := newEdDSASigner(t, "kid")
	second := newEdDSASigner(t, "kid")

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(first))
	require.NoError(t, keyset.AddSigner(second))
	require.Len(t, keyset.PublicJWKS().Keys, 1)

	token, err := first.Sign(jwtx.NewRefreshClaims("u", exampleIssuer, exampleAudience, time.Hour, time.Now().UTC()))
	require.NoError(t, err)

	_, err = jwtx.NewVerifierEdDSA(keyset, jwtx.VerifyOptions{}).Verify(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestKeySetRejectsBadJWK(t *testing.T) {
	keyset := jwtx.NewKeySet()
	require.Error(t, keyset.AddJWK(jwtx.JWK{Kty: "RSA", Kid: "x"}))
	require.Error(t, keyset.AddJWK(jwtx.JWK{Kty: "OKP", Crv: "Ed25519", Kid: "x", X: "AAAA"}))
}
