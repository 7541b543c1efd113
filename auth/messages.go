package auth

import (
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
)

// User-facing texts shown by the sign-in screen
const (
	MsgMissingCredentials = "Missing Username or Password"
	MsgUnauthorized       = "Unauthorized"
	MsgNoServerResponse   = "No Server Response"
	MsgLoginExpired       = "Your login has expired"
	MsgLoginFailed        = "Login Failed"
)

// ErrorMessage turns an error from Login, Refresh or an authorized API call
// into text for the user. Transport and server internals are not exposed.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case autherrors.Is(err, ErrUnauthorized):
		return MsgLoginExpired
	case autherrors.Is(err, ErrMalformedRequest):
		return MsgMissingCredentials
	case autherrors.Is(err, ErrInvalidCredentials):
		return MsgUnauthorized
	case autherrors.Is(err, ErrUnreachable):
		return MsgNoServerResponse
	}

	var gwErr *GatewayError
	if autherrors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return MsgLoginFailed
}
