package authfake_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/authfake"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	srv     *authfake.Server
	baseURL string
	client  *http.Client
}

func setupTestFixture(t *testing.T, options ...authfake.ServerOption) *testFixture {
	srv, ts := authfake.Start(t, options...)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testFixture{srv: srv, baseURL: ts.URL, client: &http.Client{Jar: jar}}
}

func (f *testFixture) login(t *testing.T, username, password string) (int, string) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := f.client.Post(f.baseURL+authfake.RouteLogin, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		AccessToken string `json:"accessToken"`
		Message     string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	if out.AccessToken != "" {
		return resp.StatusCode, out.AccessToken
	}
	return resp.StatusCode, out.Message
}

func (f *testFixture) get(t *testing.T, path, accessToken string) int {
	req, err := http.NewRequest(http.MethodGet, f.baseURL+path, nil)
	require.NoError(t, err)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t)

	status, msg := f.login(t, authfake.DemoAdmin, "wrong")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Unauthorized", msg)

	status, msg = f.login(t, "", authfake.DemoPassword)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "All fields are required", msg)

	status, token := f.login(t, authfake.DemoAdmin, authfake.DemoPassword)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, token)
	require.Equal(t, http.StatusOK, f.get(t, authfake.RouteNotes, token))
	require.Equal(t, 3, f.srv.Calls(authfake.RouteLogin))
}

func TestRefreshUsesCookie(t *testing.T) {
	f := setupTestFixture(t)

	require.Equal(t, http.StatusUnauthorized, f.get(t, authfake.RouteRefresh, ""))

	status, _ := f.login(t, authfake.DemoEmployee, authfake.DemoPassword)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, http.StatusOK, f.get(t, authfake.RouteRefresh, ""))

	f.srv.ExpireRefreshTokens()
	require.Equal(t, http.StatusUnauthorized, f.get(t, authfake.RouteRefresh, ""))
}

func TestRefreshTokenExpiry(t *testing.T) {
	var offset atomic.Int64
	now := func() time.Time { return time.Now().Add(time.Duration(offset.Load())) }
	f := setupTestFixture(t, authfake.WithNowTime(now), authfake.WithRefreshTokenExpiry(time.Hour))

	status, _ := f.login(t, authfake.DemoAdmin, authfake.DemoPassword)
	require.Equal(t, http.StatusOK, status)

	offset.Store(int64(2 * time.Hour))
	require.Equal(t, http.StatusUnauthorized, f.get(t, authfake.RouteRefresh, ""))
}

func TestRevokedAccessTokenUsesReauthStatus(t *testing.T) {
	f := setupTestFixture(t, authfake.WithReauthStatus(http.StatusForbidden))

	_, token := f.login(t, authfake.DemoAdmin, authfake.DemoPassword)
	require.Equal(t, http.StatusOK, f.get(t, authfake.RouteUsers, token))

	f.srv.RevokeAllAccessTokens()
	require.Equal(t, http.StatusForbidden, f.get(t, authfake.RouteUsers, token))
	require.Equal(t, http.StatusUnauthorized, f.get(t, authfake.RouteUsers, ""))
}

func TestLogoutClearsCookie(t *testing.T) {
	f := setupTestFixture(t)

	resp, err := f.client.Post(f.baseURL+authfake.RouteLogout, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	f.login(t, authfake.DemoAdmin, authfake.DemoPassword)
	resp, err = f.client.Post(f.baseURL+authfake.RouteLogout, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, http.StatusUnauthorized, f.get(t, authfake.RouteRefresh, ""))
}

func TestFailNext(t *testing.T) {
	f := setupTestFixture(t)
	f.srv.FailNext(authfake.RouteLogin, http.StatusServiceUnavailable)

	status, _ := f.login(t, authfake.DemoAdmin, authfake.DemoPassword)
	require.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = f.login(t, authfake.DemoAdmin, authfake.DemoPassword)
	require.Equal(t, http.StatusOK, status)
}

func TestBlockRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, authfake.DemoAdmin, authfake.DemoPassword)

	release := f.srv.BlockRefresh()
	done := make(chan int, 1)
	go func() { done <- f.get(t, authfake.RouteRefresh, "") }()

	select {
	case <-f.srv.RefreshStarted():
	case <-time.After(5 * time.Second):
		t.Fatal("refresh never reached the server")
	}
	select {
	case <-done:
		t.Fatal("refresh completed while blocked")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	require.Equal(t, http.StatusOK, <-done)
}

func TestDisableUser(t *testing.T) {
	f := setupTestFixture(t, authfake.WithUser("alice", "pw", authfake.RoleManager))
	f.login(t, "alice", "pw")

	require.NoError(t, f.srv.DisableUser("alice"))
	require.Equal(t, http.StatusUnauthorized, f.get(t, authfake.RouteRefresh, ""))
	require.ErrorIs(t, f.srv.DisableUser("bob"), authfake.ErrUserNotFound)

	status, _ := f.login(t, "alice", "pw")
	require.Equal(t, http.StatusUnauthorized, status)
}
