package config

import "time"

type Config interface {
	EnvConfig
	SessionConfig
	VerifierConfig
	DevServerConfig
}

type EnvConfig interface {
	GetAPIBaseURL() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDataFolder() string
	GetPersistFile() string
}

type SessionConfig interface {
	GetRequestTimeout() time.Duration
	GetCacheResetDelay() time.Duration
	GetReauthStatusCodes() []int
}

type VerifierConfig interface {
	GetJWKSURL() string
	GetIssuer() string
}

type mainConfig struct {
	EnvVars
	Session
	Verifier
	DevServer
}

type Option func(*File)

// WithFile overlays values read from a config file on top of the environment.
func WithFile(f *File) Option {
	return func(dst *File) {
		if f != nil {
			*dst = *f
		}
	}
}

// New returns a Config backed by environment variables, optionally overlaid
// by file values. File values win over the environment, the environment wins
// over defaults.
func New(options ...Option) Config {
	f := &File{}
	for _, opt := range options {
		opt(f)
	}
	return mainConfig{
		EnvVars:   EnvVars{file: f},
		Session:   Session{file: f},
		Verifier:  Verifier{file: f},
		DevServer: DevServer{file: f},
	}
}
