package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("FOLDER", "")
	t.Setenv("PERSIST_FILE", "")
	t.Setenv("REAUTH_STATUS_CODES", "")
	t.Setenv("CACHE_RESET_DELAY", "")
	t.Setenv("PORT", "")

	c := config.New()

	require.Equal(t, "http://localhost:3500", c.GetAPIBaseURL())
	require.Equal(t, filepath.Join("./data", "persist.json"), c.GetPersistFile())
	require.Equal(t, []int{401}, c.GetReauthStatusCodes())
	require.Zero(t, c.GetCacheResetDelay())
	require.Equal(t, ":3500", c.GetPort())
	require.Equal(t, "testAdmin", c.GetDemoAccounts()["admin"].Username)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/")
	t.Setenv("REAUTH_STATUS_CODES", "401, 403")
	t.Setenv("CACHE_RESET_DELAY", "1s")
	t.Setenv("ENV", "prod")

	c := config.New()

	require.Equal(t, "https://api.example.com", c.GetAPIBaseURL())
	require.Equal(t, []int{401, 403}, c.GetReauthStatusCodes())
	require.Equal(t, time.Second, c.GetCacheResetDelay())
	require.Equal(t, "PROD", c.GetEnv())
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("REAUTH_STATUS_CODES", "401,abc")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	c := config.New()

	require.Equal(t, []int{401}, c.GetReauthStatusCodes())
	require.Equal(t, 30*time.Second, c.GetRequestTimeout())
}

func TestLoad_FileWinsOverEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://env.example.com")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_base_url: https://file.example.com
cache_reset_delay: 1s
reauth_status_codes: [401, 403]
demo_accounts:
  admin:
    username: boss
    password: secret
`), 0o600))

	c, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://file.example.com", c.GetAPIBaseURL())
	require.Equal(t, time.Second, c.GetCacheResetDelay())
	require.Equal(t, []int{401, 403}, c.GetReauthStatusCodes())
	require.Equal(t, "boss", c.GetDemoAccounts()["admin"].Username)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TOKEN_ISSUER=dotenv-issuer\n"), 0o600))
	t.Setenv("TOKEN_ISSUER", "")
	os.Unsetenv("TOKEN_ISSUER")

	require.NoError(t, config.LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	require.Equal(t, "dotenv-issuer", config.New().GetIssuer())
}
