package retrieval

import (
	"context"
	"sync"
	"sync/atomic"

	"mediguide/internal/lazy"
)

// StoreProvider builds the vector store on first use and hands out scoped
// references to it. Every Acquire must be paired with its release.
type StoreProvider struct {
	store  *lazy.Value[*VectorStore]
	active atomic.Int64
}

func NewStoreProvider(build func(ctx context.Context) (*VectorStore, error)) *StoreProvider {
	return &StoreProvider{store: lazy.New(build)}
}

func (p *StoreProvider) Acquire(ctx context.Context) (*VectorStore, func(), error) {
	store, err := p.store.Get(ctx)
	if err != nil {
		return nil, func() {}, err
	}
	p.active.Add(1)
	var once sync.Once
	release := func() {
		once.Do(func() { p.active.Add(-1) })
	}
	return store, release, nil
}

// Active reports how many acquired handles have not been released.
func (p *StoreProvider) Active() int64 {
	return p.active.Load()
}

// Close shuts the store down if it was ever built.
func (p *StoreProvider) Close(ctx context.Context) error {
	store, ok := p.store.Peek()
	if !ok || store == nil {
		return nil
	}
	return store.Close(ctx)
}
