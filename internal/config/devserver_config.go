package config

import (
	"strings"
	"time"
)

// DevServerConfig configures the fake remote auth API used for local development
type DevServerConfig interface {
	GetPort() string
	GetAccessTokenSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetDemoAccounts() DemoAccounts
}

// DemoAccount is a well-known login offered by the dashboard's sign-in screen
type DemoAccount struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

// DemoAccounts keyed by a short name, e.g. "admin"
type DemoAccounts map[string]DemoAccount

var defaultDemoAccounts = DemoAccounts{
	"admin":    {Username: "testAdmin", Password: "1234test", Roles: []string{"Employee", "Manager", "Admin"}},
	"employee": {Username: "testEmployee", Password: "1234test", Roles: []string{"Employee"}},
}

type DevServer struct {
	file *File
}

var _ DevServerConfig = DevServer{}

func (d DevServer) GetPort() string {
	port := pick(d.file.Port, GetEnv("PORT", "3500"))
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (d DevServer) GetAccessTokenSecret() string {
	return pick(d.file.AccessTokenSecret, GetEnv("ACCESS_TOKEN_SECRET", "dev-access-secret"))
}

func (d DevServer) GetAccessTokenExpiry() time.Duration {
	if d.file.AccessTokenExpiry > 0 {
		return d.file.AccessTokenExpiry
	}
	return GetEnvDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (d DevServer) GetRefreshTokenExpiry() time.Duration {
	if d.file.RefreshTokenExpiry > 0 {
		return d.file.RefreshTokenExpiry
	}
	return GetEnvDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour)
}

func (d DevServer) GetDemoAccounts() DemoAccounts {
	if len(d.file.DemoAccounts) > 0 {
		return d.file.DemoAccounts
	}
	return defaultDemoAccounts
}
