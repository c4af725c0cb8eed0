package efi

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Tokens are refreshed this long before their reported expiry.
const refreshMargin = 60 * time.Second

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// tokenCache holds one OAuth bearer token per company. Concurrent refreshes
// for the same company collapse into a single provider call via singleflight.
type tokenCache struct {
	mu     sync.RWMutex
	tokens map[string]cachedToken
	group  singleflight.Group
}

func newTokenCache() *tokenCache {
	return &tokenCache{tokens: make(map[string]cachedToken)}
}

func (c *tokenCache) get(companyID string, now time.Time) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tokens[companyID]
	if !ok || now.After(t.expiresAt.Add(-refreshMargin)) {
		return "", false
	}
	return t.value, true
}

func (c *tokenCache) put(companyID, value string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[companyID] = cachedToken{value: value, expiresAt: expiresAt}
}

func (c *tokenCache) invalidate(companyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, companyID)
}

// fetch returns a valid cached token or runs refresh, deduplicated per
// company.
func (c *tokenCache) fetch(companyID string, now time.Time, refresh func() (string, time.Time, error)) (string, error) {
	if v, ok := c.get(companyID, now); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(companyID, func() (any, error) {
		if v, ok := c.get(companyID, now); ok {
			return v, nil
		}
		value, expiresAt, err := refresh()
		if err != nil {
			return "", err
		}
		c.put(companyID, value, expiresAt)
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
