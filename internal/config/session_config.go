package config

import (
	"net/http"
	"time"
)

const (
	requestTimeoutVar    = "REQUEST_TIMEOUT"
	cacheResetDelayVar   = "CACHE_RESET_DELAY"
	reauthStatusCodesVar = "REAUTH_STATUS_CODES"
)

type Session struct {
	file *File
}

var _ SessionConfig = Session{}

func (s Session) GetRequestTimeout() time.Duration {
	if s.file.RequestTimeout > 0 {
		return s.file.RequestTimeout
	}
	return GetEnvDuration(requestTimeoutVar, 30*time.Second)
}

// GetCacheResetDelay is the grace period between logout and resetting cached
// API data. Zero resets synchronously.
func (s Session) GetCacheResetDelay() time.Duration {
	if s.file.CacheResetDelay > 0 {
		return s.file.CacheResetDelay
	}
	return GetEnvDuration(cacheResetDelayVar, 0)
}

// GetReauthStatusCodes lists the API response statuses that mean "access token
// expired or invalid" and trigger a refresh-and-retry
func (s Session) GetReauthStatusCodes() []int {
	if len(s.file.ReauthStatusCodes) > 0 {
		return s.file.ReauthStatusCodes
	}
	return GetEnvInts(reauthStatusCodesVar, []int{http.StatusUnauthorized})
}

type Verifier struct {
	file *File
}

var _ VerifierConfig = Verifier{}

// GetJWKSURL enables signature checks of decoded access tokens when set
func (v Verifier) GetJWKSURL() string {
	return pick(v.file.JWKSURL, GetEnv("JWKS_URL", ""))
}

func (v Verifier) GetIssuer() string {
	return pick(v.file.Issuer, GetEnv("TOKEN_ISSUER", ""))
}
