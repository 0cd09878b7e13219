package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client, err := Dial(context.Background(), &goredis.Options{Addr: addr})
	if err != nil {
		t.Fatalf("dial redis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestEmbeddingCacheKeyIsStable(t *testing.T) {
	cache := NewEmbeddingCache(nil, "models/gemini-embedding-001", time.Minute)
	a := cache.key("", "頭痛")
	if a != cache.key("", "頭痛") {
		t.Fatalf("key not deterministic")
	}
	if a == cache.key("", "頭暈") {
		t.Fatalf("distinct texts share a key")
	}
	other := NewEmbeddingCache(nil, "other-model", time.Minute)
	if a == other.key("", "頭痛") {
		t.Fatalf("model not part of key")
	}
	if a != cache.key("models/gemini-embedding-001", "頭痛") {
		t.Fatalf("explicit default model should match the implicit one")
	}
	if a == cache.key("models/text-embedding-004", "頭痛") {
		t.Fatalf("overridden model shares the default key")
	}
}

func TestEmbeddingCacheStoreAndLookup(t *testing.T) {
	client := newTestClient(t)
	cache := NewEmbeddingCache(client, "test-"+time.Now().Format("150405.000000"), time.Minute)
	ctx := context.Background()

	if err := cache.Store(ctx, "", "頭痛", []float64{0.5, 0.25}); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, err := cache.Lookup(ctx, "", []string{"頭痛", "沒存過"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got) != 2 || got[1] != nil {
		t.Fatalf("expected a hit and a miss, got %v", got)
	}
	if len(got[0]) != 2 || got[0][0] != 0.5 || got[0][1] != 0.25 {
		t.Fatalf("unexpected vector %v", got[0])
	}
	t.Cleanup(func() { client.Del(ctx, cache.key("", "頭痛")) })
}
