package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestValueBuildsOnce(t *testing.T) {
	var calls int32
	v := New(func(ctx context.Context) (*int, error) {
		atomic.AddInt32(&calls, 1)
		n := 42
		return &n, nil
	})

	var wg sync.WaitGroup
	results := make([]*int, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := v.Get(context.Background())
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			results[i] = got
		}(i)
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected single build, got %d", calls)
	}
	for _, r := range results {
		if r != results[0] {
			t.Fatalf("expected the same handle for every caller")
		}
	}
}

func TestValueRetriesAfterFailure(t *testing.T) {
	attempts := 0
	v := New(func(ctx context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	if _, err := v.Get(context.Background()); err == nil {
		t.Fatalf("expected first build to fail")
	}
	if _, ok := v.Peek(); ok {
		t.Fatalf("failed build must not be cached")
	}
	got, err := v.Get(context.Background())
	if err != nil || got != "ok" {
		t.Fatalf("second get = %q, %v", got, err)
	}
}
