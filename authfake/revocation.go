package authfake

import (
	"sync"
	"time"
)

// RevokedTokenCache tracks access tokens that must be rejected before
// their exp, keyed by jti
type RevokedTokenCache struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

func NewRevokedTokenCache() *RevokedTokenCache {
	return &RevokedTokenCache{
		revoked: make(map[string]time.Time),
	}
}

func (c *RevokedTokenCache) Add(jti string, exp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
}

func (c *RevokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

// Cleanup removes entries whose token would have expired anyway
func (c *RevokedTokenCache) Cleanup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}
