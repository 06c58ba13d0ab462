package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Cached wraps an Embedder with an in-process content-hash cache so repeated
// embeds of the same topic name or question within a process lifetime skip
// inference. Grounded on the teacher's CachedEmbedder, adapted from a
// store-backed cache to a simple in-memory map since this server has no
// separate embedding-cache table.
type Cached struct {
	inner Embedder
	mu    sync.RWMutex
	cache map[string][]float32
}

// NewCached wraps inner with a content-hash cache.
func NewCached(inner Embedder) *Cached {
	return &Cached{inner: inner, cache: make(map[string][]float32)}
}

// ContentHash returns the cache key for text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := ContentHash(text)

	c.mu.RLock()
	if v, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = v
	c.mu.Unlock()

	return v, nil
}

func (c *Cached) Close() error {
	return c.inner.Close()
}
