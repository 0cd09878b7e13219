// Package app assembles the consultation graph shared by the server, the
// terminal client and the ingest tool.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"mediguide/internal/config"
	"mediguide/internal/docindex"
	"mediguide/internal/lazy"
	"mediguide/internal/logger"
	"mediguide/internal/memory"
	"mediguide/internal/redis"
	"mediguide/internal/service/ai"
	"mediguide/internal/service/assistant"
	"mediguide/internal/service/retrieval"
	"mediguide/internal/service/suggestion"
	"mediguide/internal/worker"
)

// App holds the long-lived handles of one process.
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Stores  *retrieval.StoreProvider
	Turns   *worker.Manager
	Session *assistant.Service

	redis *lazy.Value[*redis.Client]
}

// NewStores wires the lazily built embedder and index into a store provider.
// Nothing touches the network until the first Acquire.
func NewStores(cfg *config.Config, log *logger.Logger) (*retrieval.StoreProvider, *lazy.Value[*redis.Client]) {
	rdb := lazy.New(func(ctx context.Context) (*redis.Client, error) {
		return redis.NewRedisClient(ctx, cfg.Redis)
	})
	embedder := lazy.New(func(ctx context.Context) (embedding.Embedder, error) {
		gemini, err := retrieval.NewGeminiEmbedder(ctx, cfg.Embedding)
		if err != nil {
			return nil, err
		}
		if !cfg.Redis.Enabled {
			return gemini, nil
		}
		client, err := rdb.Get(ctx)
		if err != nil {
			log.Warn("embedding cache disabled", "error", err)
			return gemini, nil
		}
		ttl := time.Duration(cfg.Redis.TTLMinutes) * time.Minute
		cache := redis.NewEmbeddingCache(client, cfg.Embedding.Model, ttl)
		return retrieval.NewCachedEmbedder(gemini, cache, log), nil
	})
	stores := retrieval.NewStoreProvider(func(ctx context.Context) (*retrieval.VectorStore, error) {
		emb, err := embedder.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		idx, err := docindex.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open document index: %w", err)
		}
		log.Info("vector store ready", "index", cfg.Index.Type, "collection", cfg.Index.Collection)
		return retrieval.NewVectorStore(emb, idx, cfg.Index.TopK), nil
	})
	return stores, rdb
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	stores, rdb := NewStores(cfg, log)

	chatModel := ai.NewLazyChatModel(cfg)
	rewriter, err := ai.NewRewriter(ctx, chatModel)
	if err != nil {
		return nil, err
	}
	generator, err := ai.NewGenerator(ctx, chatModel, cfg.Persona)
	if err != nil {
		return nil, err
	}

	orchestrator := suggestion.New(suggestion.Options{
		Store:       suggestion.ProviderSource(stores),
		Memory:      memory.NewBuffer(),
		Rewriter:    rewriter,
		Generator:   generator,
		Logger:      log.With("component", "suggestion"),
		TopK:        cfg.Index.TopK,
		StepTimeout: time.Duration(cfg.BasicConfig.ProviderTimeoutSecs) * time.Second,
		Fallback:    cfg.Persona.FallbackAnswer,
	})
	turns := worker.NewManager(orchestrator, cfg.BasicConfig.QueueSize, log.With("component", "turns"))
	session := assistant.NewService(turns, cfg.Persona.FallbackAnswer, log.With("component", "session"))

	return &App{
		Config:  cfg,
		Log:     log,
		Stores:  stores,
		Turns:   turns,
		Session: session,
		redis:   rdb,
	}, nil
}

// Close stops the turn queue, then releases the store and cache connections.
func (a *App) Close(ctx context.Context) error {
	a.Turns.Stop()
	var errs []error
	if err := a.Stores.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close vector store: %w", err))
	}
	if client, ok := a.redis.Peek(); ok && client != nil {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
