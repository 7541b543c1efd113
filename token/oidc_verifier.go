package token

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier checks access token signatures against a JWKS key set.
// Expiry is not enforced here: an expired token still names its user, and
// the API server decides when it stops being accepted.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

var _ Verifier = (*OIDCVerifier)(nil)

// NewOIDCVerifier verifies with the given key set. An empty issuer skips the
// iss check.
func NewOIDCVerifier(issuer string, keySet oidc.KeySet, signingAlgs ...string) *OIDCVerifier {
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{
			SkipClientIDCheck:    true,
			SkipExpiryCheck:      true,
			SkipIssuerCheck:      issuer == "",
			SupportedSigningAlgs: signingAlgs,
		}),
	}
}

// NewRemoteOIDCVerifier fetches and caches keys from jwksURL
func NewRemoteOIDCVerifier(ctx context.Context, issuer, jwksURL string) *OIDCVerifier {
	return NewOIDCVerifier(issuer, oidc.NewRemoteKeySet(ctx, jwksURL))
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) error {
	_, err := v.verifier.Verify(ctx, rawToken)
	return err
}
