package retrieval

import (
	"context"
	"fmt"

	"mediguide/internal/logger"

	"github.com/cloudwego/eino/components/embedding"
)

// VectorCache is satisfied by redis.EmbeddingCache.
type VectorCache interface {
	Lookup(ctx context.Context, model string, texts []string) ([][]float64, error)
	Store(ctx context.Context, model, text string, vector []float64) error
}

// CachedEmbedder answers repeated texts from the cache. Cache failures are
// logged and the request falls through to the wrapped embedder.
type CachedEmbedder struct {
	inner embedding.Embedder
	cache VectorCache
	log   *logger.Logger
}

func NewCachedEmbedder(inner embedding.Embedder, cache VectorCache, log *logger.Logger) *CachedEmbedder {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedEmbedder{inner: inner, cache: cache, log: log}
}

func (c *CachedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	// vectors from a per-call model override must not land under the default model's keys
	var model string
	if o := embedding.GetCommonOptions(&embedding.Options{}, opts...); o.Model != nil {
		model = *o.Model
	}

	hits, err := c.cache.Lookup(ctx, model, texts)
	if err != nil || len(hits) != len(texts) {
		c.log.Warn("embedding cache lookup failed", "error", err)
		hits = make([][]float64, len(texts))
	}

	var (
		missing []string
		slots   []int
	)
	for i, vec := range hits {
		if vec == nil {
			missing = append(missing, texts[i])
			slots = append(slots, i)
		}
	}
	if len(missing) == 0 {
		return hits, nil
	}

	fresh, err := c.inner.EmbedStrings(ctx, missing, opts...)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(missing), len(fresh))
	}
	for i, vec := range fresh {
		hits[slots[i]] = vec
		if err := c.cache.Store(ctx, model, missing[i], vec); err != nil {
			c.log.Warn("embedding cache store failed", "error", err)
		}
	}
	return hits, nil
}
