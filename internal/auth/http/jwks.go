package http

import (
	"net/http"

	"github.com/aussiebroadwan/otpgate/pkg/authsdk"
	"github.com/aussiebroadwan/otpgate/pkg/httpx"
	"github.com/aussiebroadwan/otpgate/pkg/jwtx"
)

// JWKSHandler exposes the Ed25519 verification keys. Only mounted when
// tokens are EdDSA signed.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify EdDSA access tokens.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(keys.PublicJWKS()))
	}
}
