package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/authfake"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestServerOptions_DemoAccountsCanLogIn(t *testing.T) {
	c := config.New(config.WithFile(&config.File{
		AccessTokenExpiry: time.Minute,
		DemoAccounts: config.DemoAccounts{
			"boss": {Username: "boss", Password: "s3cret", Roles: []string{"Admin"}},
		},
	}))

	srv, err := authfake.NewServer(serverOptions(c, zerolog.Nop())...)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	login := func(username, password string) int {
		body, _ := json.Marshal(map[string]string{"username": username, "password": password})
		resp, err := http.Post(ts.URL+authfake.RouteLogin, "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, login("boss", "s3cret"))
	require.Equal(t, http.StatusUnauthorized, login(authfake.DemoAdmin, authfake.DemoPassword), "configured accounts replace the defaults")
}

func TestServerOptions_ReauthStatusFromConfig(t *testing.T) {
	c := config.New(config.WithFile(&config.File{ReauthStatusCodes: []int{http.StatusForbidden}}))

	srv, err := authfake.NewServer(serverOptions(c, zerolog.Nop())...)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	req, err := http.NewRequest(http.MethodGet, ts.URL+authfake.RouteNotes, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
