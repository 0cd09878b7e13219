package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// EmbeddingCache stores question vectors keyed by model and text hash. An
// empty model argument means the configured embedding model.
type EmbeddingCache struct {
	client *Client
	model  string
	ttl    time.Duration
}

func NewEmbeddingCache(client *Client, model string, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{client: client, model: model, ttl: ttl}
}

func (c *EmbeddingCache) key(model, text string) string {
	if model == "" {
		model = c.model
	}
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embed:%s:%s", model, hex.EncodeToString(sum[:]))
}

// Lookup returns one slot per text; a nil slot is a miss.
func (c *EmbeddingCache) Lookup(ctx context.Context, model string, texts []string) ([][]float64, error) {
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.key(model, text)
	}
	values, err := c.client.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("embedding cache lookup: %w", err)
	}
	out := make([][]float64, len(texts))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var vec []float64
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			continue
		}
		out[i] = vec
	}
	return out, nil
}

func (c *EmbeddingCache) Store(ctx context.Context, model, text string, vector []float64) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	if err := c.client.Set(ctx, c.key(model, text), data, c.ttl); err != nil {
		return fmt.Errorf("embedding cache store: %w", err)
	}
	return nil
}
