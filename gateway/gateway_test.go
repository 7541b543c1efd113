package gateway_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jrsteele09/go-auth-session/authfake"
	"github.com/jrsteele09/go-auth-session/gateway"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	srv     *authfake.Server
	baseURL string
	gw      *gateway.Gateway
}

func setupTestFixture(t *testing.T, options ...gateway.Option) *testFixture {
	srv, ts := authfake.Start(t)
	gw, err := gateway.New(ts.URL, options...)
	require.NoError(t, err)
	return &testFixture{srv: srv, baseURL: ts.URL, gw: gw}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := gateway.New(" ")
	require.ErrorIs(t, err, autherrors.ErrInvalidConfig)
}

func TestLogin_Success(t *testing.T) {
	f := setupTestFixture(t)

	resp, err := f.gw.Login(context.Background(), authfake.DemoAdmin, authfake.DemoPassword)
	require.NoError(t, err)
	require.NotNil(t, resp.AccessToken)
	require.NotEmpty(t, *resp.AccessToken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.gw.Login(context.Background(), authfake.DemoAdmin, "nope")
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)

	var gwErr *autherrors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, http.StatusUnauthorized, gwErr.Status)
	require.Equal(t, "Unauthorized", gwErr.Message)
	require.Equal(t, "login", gwErr.Op)
}

func TestLogin_MissingFieldsCheckedLocally(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.gw.Login(context.Background(), "", "pw")
	require.ErrorIs(t, err, autherrors.ErrMalformedRequest)
	_, err = f.gw.Login(context.Background(), "user", "")
	require.ErrorIs(t, err, autherrors.ErrMalformedRequest)
	require.Zero(t, f.srv.Calls(authfake.RouteLogin))
}

func TestClassifyServerStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, autherrors.ErrMalformedRequest},
		{http.StatusUnauthorized, autherrors.ErrInvalidCredentials},
		{http.StatusForbidden, autherrors.ErrServerError},
		{http.StatusInternalServerError, autherrors.ErrServerError},
		{http.StatusBadGateway, autherrors.ErrServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			f := setupTestFixture(t)
			f.srv.FailNext(authfake.RouteLogin, tt.status)

			_, err := f.gw.Login(context.Background(), authfake.DemoAdmin, authfake.DemoPassword)
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, 1, f.srv.Calls(authfake.RouteLogin), "no retry inside the gateway")
		})
	}
}

func TestRefreshRejectedStatuses(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.gw.Login(context.Background(), authfake.DemoAdmin, authfake.DemoPassword)
		require.NoError(t, err)
		f.srv.FailNext(authfake.RouteRefresh, http.StatusForbidden)

		_, err = f.gw.Refresh(context.Background())
		require.ErrorIs(t, err, autherrors.ErrServerError)
	})

	t.Run("forbidden means the credential is gone", func(t *testing.T) {
		f := setupTestFixture(t, gateway.WithRefreshRejectedStatuses(http.StatusUnauthorized, http.StatusForbidden))
		_, err := f.gw.Login(context.Background(), authfake.DemoAdmin, authfake.DemoPassword)
		require.NoError(t, err)
		f.srv.FailNext(authfake.RouteRefresh, http.StatusForbidden)

		_, err = f.gw.Refresh(context.Background())
		require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)

		var gwErr *autherrors.GatewayError
		require.ErrorAs(t, err, &gwErr)
		require.Equal(t, http.StatusForbidden, gwErr.Status)
	})

	t.Run("login is unaffected", func(t *testing.T) {
		f := setupTestFixture(t, gateway.WithRefreshRejectedStatuses(http.StatusUnauthorized, http.StatusForbidden))
		f.srv.FailNext(authfake.RouteLogin, http.StatusForbidden)

		_, err := f.gw.Login(context.Background(), authfake.DemoAdmin, authfake.DemoPassword)
		require.ErrorIs(t, err, autherrors.ErrServerError)
	})
}

func TestUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	gw, err := gateway.New(url)
	require.NoError(t, err)

	_, err = gw.Refresh(context.Background())
	require.ErrorIs(t, err, autherrors.ErrUnreachable)

	var gwErr *autherrors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Zero(t, gwErr.Status)
}

func TestMissingAccessTokenIsServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(ts.Close)

	gw, err := gateway.New(ts.URL)
	require.NoError(t, err)

	_, err = gw.Refresh(context.Background())
	require.ErrorIs(t, err, autherrors.ErrServerError)
}

func TestRequestIDHeader(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get(gateway.RequestIDHeader))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ts.Close)

	gw, err := gateway.New(ts.URL)
	require.NoError(t, err)
	require.NoError(t, gw.Logout(context.Background()))
	require.NoError(t, gw.Logout(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	require.NotEmpty(t, seen[0])
	require.NotEqual(t, seen[0], seen[1])
}

func TestRefreshRidesOnCookie(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.gw.Refresh(ctx)
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)

	_, err = f.gw.Login(ctx, authfake.DemoEmployee, authfake.DemoPassword)
	require.NoError(t, err)

	resp, err := f.gw.Refresh(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, *resp.AccessToken)

	require.NoError(t, f.gw.Logout(ctx))
	_, err = f.gw.Refresh(ctx)
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
}

func TestFileJar_SurvivesRestart(t *testing.T) {
	srv, ts := authfake.Start(t)
	jarPath := filepath.Join(t.TempDir(), "cookies.json")
	ctx := context.Background()

	jar, err := gateway.NewFileJar(jarPath, ts.URL)
	require.NoError(t, err)
	gw, err := gateway.New(ts.URL, gateway.WithCookieJar(jar))
	require.NoError(t, err)
	_, err = gw.Login(ctx, authfake.DemoAdmin, authfake.DemoPassword)
	require.NoError(t, err)

	// a new process: fresh jar loaded from disk
	jar2, err := gateway.NewFileJar(jarPath, ts.URL)
	require.NoError(t, err)
	gw2, err := gateway.New(ts.URL, gateway.WithCookieJar(jar2))
	require.NoError(t, err)

	_, err = gw2.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, srv.Calls(authfake.RouteRefresh))

	require.NoError(t, gw2.Logout(ctx))

	jar3, err := gateway.NewFileJar(jarPath, ts.URL)
	require.NoError(t, err)
	gw3, err := gateway.New(ts.URL, gateway.WithCookieJar(jar3))
	require.NoError(t, err)
	_, err = gw3.Refresh(ctx)
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
}

func TestNewFileJar_InvalidOrigin(t *testing.T) {
	_, err := gateway.NewFileJar(filepath.Join(t.TempDir(), "c.json"), "not a url")
	require.Error(t, err)
}

func TestFileJar_Clear(t *testing.T) {
	_, ts := authfake.Start(t)
	jarPath := filepath.Join(t.TempDir(), "cookies.json")
	ctx := context.Background()

	jar, err := gateway.NewFileJar(jarPath, ts.URL)
	require.NoError(t, err)
	gw, err := gateway.New(ts.URL, gateway.WithCookieJar(jar))
	require.NoError(t, err)
	_, err = gw.Login(ctx, authfake.DemoAdmin, authfake.DemoPassword)
	require.NoError(t, err)

	require.NoError(t, jar.Clear())
	_, err = gw.Refresh(ctx)
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)

	reloaded, err := gateway.NewFileJar(jarPath, ts.URL)
	require.NoError(t, err)
	u, _ := url.Parse(ts.URL)
	require.Empty(t, reloaded.Cookies(u))
}

func TestFileJar_SaveFailureIsLogged(t *testing.T) {
	jarPath := filepath.Join(t.TempDir(), "cookies.json")
	var logs bytes.Buffer
	jar, err := gateway.NewFileJar(jarPath, "http://127.0.0.1:3500", gateway.WithJarLogger(zerolog.New(&logs)))
	require.NoError(t, err)

	// a directory in the way makes the final rename fail
	require.NoError(t, os.Mkdir(jarPath, 0o700))

	u, _ := url.Parse("http://127.0.0.1:3500/auth")
	jar.SetCookies(u, []*http.Cookie{{Name: authfake.RefreshCookieName, Value: "opaque", Path: "/", MaxAge: 3600}})

	require.Contains(t, logs.String(), "could not save cookie jar")
	require.Contains(t, logs.String(), `"level":"warn"`)
	require.Len(t, jar.Cookies(u), 1, "the in-memory jar still holds the cookie")
}
