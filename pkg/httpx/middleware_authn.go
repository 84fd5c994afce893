package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/otpgate/pkg/jwtx"
	"github.com/aussiebroadwan/otpgate/pkg/slogx"
)

// Codes written by the bearer middlewares.
const (
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeTokenInvalid      = "TOKEN_INVALID"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeInsufficientScope = "INSUFFICIENT_SCOPE"
)

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthnMiddleware requires a valid access token. Refresh tokens are rejected
// even when correctly signed.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, CodeUnauthorized, "Missing access token")
				return
			}

			claims, err := v.Verify(raw)
			if err == nil {
				err = jwtx.RequireType(claims, jwtx.TokenTypeAccess)
			}
			if err != nil {
				log.Debug("access token rejected", "err", err)
				if errors.Is(err, jwtx.ErrExpired) {
					writeBearerError(w, CodeTokenExpired, "Access token expired")
					return
				}
				writeBearerError(w, CodeTokenInvalid, "Invalid access token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(ctx, claims)))
		})
	}
}

// RFC 6750 challenge plus our JSON error body.
func writeBearerError(w http.ResponseWriter, code, desc string) {
	challenge := `Bearer`
	if code != CodeUnauthorized {
		challenge += ` error="invalid_token", error_description="` + desc + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	WriteError(w, http.StatusUnauthorized, code, desc)
}
