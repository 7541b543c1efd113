package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File is the optional YAML config file. Zero values fall through to the
// environment.
type File struct {
	APIBaseURL        string        `yaml:"api_base_url"`
	AppName           string        `yaml:"app_name"`
	Env               string        `yaml:"env"`
	LogLevel          string        `yaml:"log_level"`
	DataFolder        string        `yaml:"data_folder"`
	PersistFile       string        `yaml:"persist_file"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	CacheResetDelay   time.Duration `yaml:"cache_reset_delay"`
	ReauthStatusCodes []int         `yaml:"reauth_status_codes"`
	JWKSURL           string        `yaml:"jwks_url"`
	Issuer            string        `yaml:"issuer"`

	Port               string        `yaml:"port"`
	AccessTokenSecret  string        `yaml:"access_token_secret"`
	AccessTokenExpiry  time.Duration `yaml:"access_token_expiry"`
	RefreshTokenExpiry time.Duration `yaml:"refresh_token_expiry"`
	DemoAccounts       DemoAccounts  `yaml:"demo_accounts"`
}

// Load builds a Config from an optional YAML file. An empty path uses the
// environment only.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return New(WithFile(&f)), nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
