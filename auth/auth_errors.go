package auth

import (
	"errors"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
)

// Error taxonomy, re-exported for callers outside this module
var (
	ErrInvalidCredentials = autherrors.ErrInvalidCredentials
	ErrMalformedRequest   = autherrors.ErrMalformedRequest
	ErrUnreachable        = autherrors.ErrUnreachable
	ErrServerError        = autherrors.ErrServerError
	ErrUnauthorized       = autherrors.ErrUnauthorized
	ErrSuperseded         = autherrors.ErrSuperseded
)

var ErrNoSession = errors.New("no session")

// GatewayError is the detailed form of a failed auth API call
type GatewayError = autherrors.GatewayError
