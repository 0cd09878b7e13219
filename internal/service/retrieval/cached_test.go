package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
)

type mapCache struct {
	data      map[string][]float64
	lookupErr error
	storeErr  error
	stored    int
}

// mapCache keys entries as model + "|" + text; the empty model is the default.
func (m *mapCache) Lookup(ctx context.Context, model string, texts []string) ([][]float64, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = m.data[model+"|"+text]
	}
	return out, nil
}

func (m *mapCache) Store(ctx context.Context, model, text string, vector []float64) error {
	m.stored++
	if m.storeErr != nil {
		return m.storeErr
	}
	m.data[model+"|"+text] = vector
	return nil
}

func TestCachedEmbedderOnlyEmbedsMisses(t *testing.T) {
	inner := &fakeEmbedder{vectors: map[string][]float64{"b": {2}}}
	cache := &mapCache{data: map[string][]float64{"|a": {1}}}
	emb := NewCachedEmbedder(inner, cache, nil)

	out, err := emb.EmbedStrings(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if out[0][0] != 1 || out[1][0] != 2 {
		t.Fatalf("unexpected vectors %v", out)
	}
	if len(inner.texts) != 1 || inner.texts[0] != "b" {
		t.Fatalf("expected only the miss to be embedded, got %v", inner.texts)
	}

	if _, err := emb.EmbedStrings(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected second call served from cache, inner calls=%d", inner.calls)
	}
}

func TestCachedEmbedderFallsThroughOnCacheErrors(t *testing.T) {
	inner := &fakeEmbedder{vectors: map[string][]float64{"a": {1}}}
	cache := &mapCache{data: map[string][]float64{}, lookupErr: errors.New("redis down"), storeErr: errors.New("redis down")}
	emb := NewCachedEmbedder(inner, cache, nil)

	out, err := emb.EmbedStrings(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(out) != 1 || out[0][0] != 1 {
		t.Fatalf("unexpected vectors %v", out)
	}
	if cache.stored != 1 {
		t.Fatalf("expected a store attempt, got %d", cache.stored)
	}
}

func TestCachedEmbedderKeysByOverriddenModel(t *testing.T) {
	inner := &fakeEmbedder{vectors: map[string][]float64{"a": {7}}}
	cache := &mapCache{data: map[string][]float64{"|a": {1}}}
	emb := NewCachedEmbedder(inner, cache, nil)

	out, err := emb.EmbedStrings(context.Background(), []string{"a"}, embedding.WithModel("models/text-embedding-004"))
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if out[0][0] != 7 || inner.calls != 1 {
		t.Fatalf("override must not be served the default model's vector: %v (calls=%d)", out, inner.calls)
	}
	if got := cache.data["models/text-embedding-004|a"]; len(got) != 1 || got[0] != 7 {
		t.Fatalf("vector not stored under the overriding model: %v", cache.data)
	}
	if got := cache.data["|a"]; got[0] != 1 {
		t.Fatalf("default model entry overwritten: %v", got)
	}
}
