package token

import (
	"context"
	"sync"
	"time"

	"github.com/lukaszraczylo/ecrsync/pkg/metrics"
)

// Provider supplies fresh authorization tokens.
// This interface allows for testing with mocks.
type Provider interface {
	FetchToken(ctx context.Context) (string, error)
}

// Cache wraps a Provider with a time-bounded cache. A stored token is
// served only while its age is below the freshness window; once stale it is
// refreshed on next use, never returned.
//
// Concurrent refreshes are not serialized: each caller may reach the
// provider and each result is stored, last writer wins. The lock guards
// only the stored pair and is never held across a provider call, so the
// cache cannot delay a reconciliation.
type Cache struct {
	provider  Provider
	freshness time.Duration

	mu        sync.RWMutex
	token     string
	fetchedAt time.Time
}

// NewCache creates a Cache serving tokens no older than the freshness window.
func NewCache(provider Provider, freshness time.Duration) *Cache {
	return &Cache{
		provider:  provider,
		freshness: freshness,
	}
}

// GetToken returns an authorization token. With useCache true, a stored
// token still inside the freshness window is returned without contacting
// the provider. In every other case the provider is called and its result
// stored with the current timestamp; on provider failure the stored value
// is left untouched.
func (c *Cache) GetToken(ctx context.Context, useCache bool) (string, error) {
	if useCache {
		if tok, ok := c.cached(); ok {
			metrics.TokenRequests.WithLabelValues("cache").Inc()
			return tok, nil
		}
	}

	tok, err := c.provider.FetchToken(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = tok
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	metrics.TokenRequests.WithLabelValues("provider").Inc()
	return tok, nil
}

// cached returns the stored token and whether it is still fresh. The zero
// fetchedAt marks an empty cache; an empty token string is a legal cached
// value.
func (c *Cache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.fetchedAt.IsZero() || time.Since(c.fetchedAt) >= c.freshness {
		return "", false
	}

	return c.token, true
}
