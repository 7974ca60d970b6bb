package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Store persists geocoding results between runs.
type Store interface {
	// GetGeocode returns found=false on a miss.
	GetGeocode(ctx context.Context, key string) (result *Result, found bool, err error)
	PutGeocode(ctx context.Context, key string, result *Result) error
}

// CacheKey returns the SHA-256 hex of the normalized query.
func CacheKey(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// CachedClient memoizes lookups for the lifetime of the value, so rows that
// share a city cost one request. With a Store, matches are also persisted
// and reused by later runs. Failed lookups are never cached.
type CachedClient struct {
	next  Client
	store Store

	mu     sync.Mutex
	mem    map[string]*Result
	hits   int
	misses int
}

// NewCachedClient wraps next. store may be nil.
func NewCachedClient(next Client, store Store) *CachedClient {
	return &CachedClient{
		next:  next,
		store: store,
		mem:   make(map[string]*Result),
	}
}

// Geocode implements Client.
func (c *CachedClient) Geocode(ctx context.Context, query string) (*Result, error) {
	key := CacheKey(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.mem[key]; ok {
		c.hits++
		return copyResult(r), nil
	}

	if c.store != nil {
		r, found, err := c.store.GetGeocode(ctx, key)
		switch {
		case err != nil:
			zap.L().Warn("geocode cache: read failed", zap.String("query", query), zap.Error(err))
		case found:
			c.hits++
			c.mem[key] = r
			return copyResult(r), nil
		}
	}

	c.misses++
	r, err := c.next.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}
	c.mem[key] = r

	if c.store != nil && r.Matched {
		if err := c.store.PutGeocode(ctx, key, r); err != nil {
			zap.L().Warn("geocode cache: write failed", zap.String("query", query), zap.Error(err))
		}
	}
	return copyResult(r), nil
}

// Stats returns cache hits and misses so far.
func (c *CachedClient) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func copyResult(r *Result) *Result {
	cp := *r
	return &cp
}
