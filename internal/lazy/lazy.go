// Package lazy builds process-wide handles on first use and hands out the same
// value afterwards. A failed build is not cached; the next Get tries again.
package lazy

import (
	"context"
	"sync"
)

type Value[T any] struct {
	mu    sync.Mutex
	build func(ctx context.Context) (T, error)
	val   T
	done  bool
}

func New[T any](build func(ctx context.Context) (T, error)) *Value[T] {
	return &Value[T]{build: build}
}

// Get returns the cached value, building it under the lock if needed.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done {
		return v.val, nil
	}
	val, err := v.build(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v.val = val
	v.done = true
	return val, nil
}

// Peek reports the value without building it.
func (v *Value[T]) Peek() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.val, v.done
}
