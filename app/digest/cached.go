package digest

import (
	"context"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v2"
)

// Cached keeps the last assembled digest for a while, so that on-demand
// requests don't burn upstream quotas.
type Cached struct {
	assembler interface {
		Assemble(ctx context.Context) string
	}
	cache cache.Cache[string, string]
}

const cachedKey = "digest"

// NewCached wraps the assembler with a cache of the given ttl.
func NewCached(a *Assembler, ttl time.Duration) *Cached {
	return &Cached{
		assembler: a,
		cache:     cache.NewCache[string, string]().WithTTL(ttl).WithMaxKeys(1),
	}
}

// Assemble returns the cached digest or assembles a fresh one.
func (c *Cached) Assemble(ctx context.Context) string {
	if msg, ok := c.cache.Get(cachedKey); ok {
		return msg
	}

	msg := c.assembler.Assemble(ctx)
	c.cache.Set(cachedKey, msg, 0)
	return msg
}

// Stat returns cache stats.
func (c *Cached) Stat() cache.Stats { return c.cache.Stat() }
