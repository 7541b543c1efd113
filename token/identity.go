package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-session/internal/utils"
)

var (
	ErrEmptyToken     = errors.New("empty access token")
	ErrMalformedToken = errors.New("malformed access token")
)

// Identity is the decoded view of an access token. It is derived on demand
// and never stored.
type Identity struct {
	Subject   string    // sub, falls back to the username
	Username  string    // UserInfo.username or username
	Roles     []string  // opaque role labels
	ExpiresAt time.Time // zero when the token carries no exp
	IssuedAt  time.Time
}

// Expired reports whether the token is past its exp at now
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Verifier checks a token's signature. Decoding works without one.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) error
}

// Decoder turns opaque access tokens into identities
type Decoder struct {
	verifier Verifier
}

type DecoderOption func(*Decoder)

// WithVerifier makes Decode reject tokens whose signature does not verify
func WithVerifier(v Verifier) DecoderOption {
	return func(d *Decoder) {
		d.verifier = v
	}
}

func NewDecoder(options ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Decode extracts subject, roles and expiry. Without a verifier the signature
// is not checked: the token came from our own auth server over the session
// transport and the server re-validates it on every API call.
func (d *Decoder) Decode(ctx context.Context, rawToken string) (*Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrEmptyToken
	}

	if d.verifier != nil {
		if err := d.verifier.Verify(ctx, rawToken); err != nil {
			return nil, fmt.Errorf("verify access token: %w", err)
		}
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: error extracting claims", ErrMalformedToken)
	}

	identity := &Identity{}
	identity.Subject, _ = claims["sub"].(string)
	identity.Username, _ = claims["username"].(string)
	if roles, ok := claims["roles"].([]any); ok {
		identity.Roles = utils.ToStringSlice(roles)
	}

	// The dashboard API nests identity under UserInfo
	if info, ok := claims["UserInfo"].(map[string]any); ok {
		if username, ok := info["username"].(string); ok {
			identity.Username = username
		}
		if roles, ok := info["roles"].([]any); ok {
			identity.Roles = utils.ToStringSlice(roles)
		}
	}

	if identity.Subject == "" {
		identity.Subject = identity.Username
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		identity.IssuedAt = iat.Time
	}

	return identity, nil
}
