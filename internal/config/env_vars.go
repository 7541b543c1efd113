package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	apiBaseURLVar  = "API_BASE_URL"
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	logLevelVar    = "LOG_LEVEL"
	folderEnvVar   = "FOLDER"
	persistFileVar = "PERSIST_FILE"

	persistFileName = "persist.json"
)

type EnvVars struct {
	file *File
}

var _ EnvConfig = EnvVars{}

// GetAPIBaseURL returns the base URL of the remote API (e.g., "https://api.example.com")
// The auth endpoints (/auth, /auth/refresh, /auth/logout) are resolved against it
func (e EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(pick(e.file.APIBaseURL, GetEnv(apiBaseURLVar, "http://localhost:3500")), "/")
}

func (e EnvVars) GetAppName() string {
	return pick(e.file.AppName, GetEnv(appNameVar, "Tech Notes"))
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(pick(e.file.Env, GetEnv(envVar, "DEV")))
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(pick(e.file.LogLevel, GetEnv(logLevelVar, "info")))
}

func (e EnvVars) GetDataFolder() string {
	return pick(e.file.DataFolder, GetEnv(folderEnvVar, "./data"))
}

// GetPersistFile is where the "trust this device" flag lives
func (e EnvVars) GetPersistFile() string {
	return pick(e.file.PersistFile, GetEnv(persistFileVar, filepath.Join(e.GetDataFolder(), persistFileName)))
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvDuration reads a Go duration string, falling back to the default on
// absence or parse failure.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}

// GetEnvInts reads a comma separated list of integers
func GetEnvInts(envVar string, defaultValue []int) []int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}

func pick(fileValue, fallback string) string {
	if fileValue != "" {
		return fileValue
	}
	return fallback
}
