package authfake

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidAccessToken = errors.New("invalid access token")

// TokenCreator signs HS256 access tokens in the shape the dashboard API uses:
// identity nested under "UserInfo".
type TokenCreator struct {
	secret  []byte
	expiry  time.Duration
	nowFunc func() time.Time
}

func NewTokenCreator(secret []byte, expiry time.Duration, nowFunc func() time.Time) *TokenCreator {
	return &TokenCreator{secret: secret, expiry: expiry, nowFunc: nowFunc}
}

// CreateAccessToken returns the signed token and its jti
func (c *TokenCreator) CreateAccessToken(user *User) (string, string, error) {
	jti := uuid.New().String()
	claims := jwtlib.MapClaims{
		"sub": user.ID,
		"UserInfo": map[string]any{
			"username": user.Username,
			"roles":    user.RoleLabels(),
		},
		"iat": c.nowFunc().Unix(),
		"exp": c.nowFunc().Add(c.expiry).Unix(),
		"jti": jti, // unique token ID for revocation
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, jti, nil
}

// AccessClaims are the verified parts of an access token
type AccessClaims struct {
	Subject  string
	Username string
	JTI      string
	Exp      time.Time
}

// Verify checks signature and expiry against the creator's clock
func (c *TokenCreator) Verify(rawToken string) (*AccessClaims, error) {
	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(c.nowFunc),
		jwtlib.WithExpirationRequired(),
	)
	token, err := parser.ParseWithClaims(rawToken, jwtlib.MapClaims{}, func(*jwtlib.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: error extracting claims", ErrInvalidAccessToken)
	}

	out := &AccessClaims{}
	out.Subject, _ = claims["sub"].(string)
	out.JTI, _ = claims["jti"].(string)
	if info, ok := claims["UserInfo"].(map[string]any); ok {
		out.Username, _ = info["username"].(string)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Exp = exp.Time
	}
	return out, nil
}
