package deviceinterp

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TemplateCache memoizes ParseTemplate by device-type key, so a busy
// generic-device sensor polling at 1 Hz does not re-parse its register
// map JSON on every tick.
type TemplateCache struct {
	c *gocache.Cache
}

// NewTemplateCache builds a cache with the given expiration and cleanup
// interval, following the teacher's go-cache usage pattern elsewhere.
func NewTemplateCache(expiration, cleanupInterval time.Duration) *TemplateCache {
	return &TemplateCache{c: gocache.New(expiration, cleanupInterval)}
}

// Get parses raw under key, reusing a cached Template when raw's key was
// already seen and has not expired.
func (tc *TemplateCache) Get(key string, raw []byte) (*Template, error) {
	if cached, ok := tc.c.Get(key); ok {
		return cached.(*Template), nil
	}
	t, err := ParseTemplate(raw)
	if err != nil {
		return nil, err
	}
	tc.c.Set(key, t, gocache.DefaultExpiration)
	return t, nil
}
