package auth_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"missing fields", &auth.GatewayError{Op: "login", Kind: auth.ErrMalformedRequest, Status: 400, Message: "All fields are required"}, auth.MsgMissingCredentials},
		{"bad password", &auth.GatewayError{Op: "login", Kind: auth.ErrInvalidCredentials, Status: 401}, auth.MsgUnauthorized},
		{"no response", &auth.GatewayError{Op: "login", Kind: auth.ErrUnreachable, Err: errors.New("dial tcp: refused")}, auth.MsgNoServerResponse},
		{"server message", &auth.GatewayError{Op: "login", Kind: auth.ErrServerError, Status: 503, Message: "Down for maintenance"}, "Down for maintenance"},
		{"server error without message", &auth.GatewayError{Op: "login", Kind: auth.ErrServerError, Status: 500}, auth.MsgLoginFailed},
		{"forced logout", fmt.Errorf("%w: %w", auth.ErrUnauthorized, auth.ErrInvalidCredentials), auth.MsgLoginExpired},
		{"unknown", errors.New("boom"), auth.MsgLoginFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, auth.ErrorMessage(tt.err))
		})
	}
}

func TestDemoCredentials(t *testing.T) {
	accounts := config.DemoAccounts{
		"admin":    {Username: "testAdmin", Password: "1234test"},
		"employee": {Username: "testEmployee", Password: "1234test"},
	}

	req, err := auth.DemoCredentials(accounts, "employee")
	require.NoError(t, err)
	require.Equal(t, "testEmployee", req.Username)
	require.Equal(t, "1234test", req.Password)
	require.False(t, req.TrustDevice)

	_, err = auth.DemoCredentials(accounts, "manager")
	require.ErrorContains(t, err, "admin")
}

func TestStateString(t *testing.T) {
	require.Equal(t, "Anonymous", auth.Anonymous.String())
	require.Equal(t, "RefreshingSilently", auth.RefreshingSilently.String())
	require.Equal(t, "Unknown", auth.State(42).String())
}
