package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/otpgate/pkg/cryptox"
	"github.com/aussiebroadwan/otpgate/pkg/jwtx"
)

// SigningKeys bundles what token issuance and verification need. Keys is nil
// for HS256 since a shared secret is never published.
type SigningKeys struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Keys     *jwtx.KeySet
}

// InitSigningKeys builds the signer and verifier for the configured algorithm.
//
// Supported algorithms:
//   - "HS256": shared secret from JWT_SECRET. Outside prod a fixed development
//     secret is used when it is unset.
//   - "EdDSA": an Ed25519 key generated on startup and kept only in memory.
//     Its public half is served at /.well-known/jwks.json. All existing tokens
//     become invalid when the service restarts.
func InitSigningKeys(cfg Config, logger *slog.Logger) (SigningKeys, error) {
	opts := jwtx.VerifyOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
	}

	switch cfg.Algorithm {
	case AlgEdDSA:
		pemKey, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return SigningKeys{}, fmt.Errorf("generate signing key: %w", err)
		}
		signer, err := jwtx.NewSignerEdDSA(cfg.KeyID, pemKey)
		if err != nil {
			return SigningKeys{}, fmt.Errorf("load signing key: %w", err)
		}

		keys := jwtx.NewKeySet()
		if err := keys.AddSigner(signer); err != nil {
			return SigningKeys{}, fmt.Errorf("publish signing key: %w", err)
		}

		logger.Info("generated ephemeral signing key", "algorithm", signer.Alg(), "kid", signer.KID())
		logger.Warn("all existing tokens are now invalid due to key generation on startup")

		return SigningKeys{
			Signer:   signer,
			Verifier: jwtx.NewVerifierEdDSA(keys, opts),
			Keys:     keys,
		}, nil

	case AlgHS256:
		secret, fallback := cfg.Secret()
		if fallback {
			logger.Warn("JWT_SECRET not set, using the development secret")
		}
		signer, err := jwtx.NewSignerHS256(secret)
		if err != nil {
			return SigningKeys{}, fmt.Errorf("load signing secret: %w", err)
		}
		return SigningKeys{
			Signer:   signer,
			Verifier: jwtx.NewVerifierHS256(secret, opts),
		}, nil

	default:
		return SigningKeys{}, fmt.Errorf("unsupported algorithm %q", cfg.Algorithm)
	}
}
