package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
)

// Cache wraps a Provider with an LRU cache keyed on exact input text,
// avoiding repeat network calls when the same content is re-embedded
// (common for recall queries that recur within a session).
type Cache struct {
	inner Provider
	cache *lru.Cache
}

// NewCache wraps inner with an LRU cache of the given size. A non-positive
// size disables caching entirely and calls straight through to inner.
func NewCache(inner Provider, size int) *Cache {
	if size <= 0 {
		size = 1
	}
	c, _ := lru.New(size) // New only errors for size <= 0, already guarded above
	return &Cache{inner: inner, cache: c}
}

// Dim implements Provider.
func (c *Cache) Dim() int { return c.inner.Dim() }

// ModelLabel implements Provider.
func (c *Cache) ModelLabel() string { return c.inner.ModelLabel() }

// Embed returns the cached vector for text if present, otherwise embeds via
// inner and caches the result.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache, preserving the
// caller's requested order in the result.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v.([]float32)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		out[idx] = vecs[j]
		c.cache.Add(missTexts[j], vecs[j])
	}
	return out, nil
}
