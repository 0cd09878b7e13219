package docindex

import (
	"context"
	"fmt"

	"mediguide/internal/config"
	"mediguide/internal/storage"
)

// Open builds the index backend selected by cfg.Index.Type.
func Open(ctx context.Context, cfg *config.Config) (Index, error) {
	switch cfg.Index.Type {
	case "mongo":
		return NewMongoIndex(ctx, MongoConfig{
			URI:          cfg.MongoURI,
			Database:     cfg.Index.Database,
			Collection:   cfg.Index.Collection,
			IndexName:    cfg.Index.IndexName,
			EmbeddingKey: cfg.Index.EmbeddingKey,
			TextKey:      cfg.Index.TextKey,
		})
	case "sqlite", "sqlite3", "mysql":
		db, err := storage.Open(cfg.Index.Type, cfg)
		if err != nil {
			return nil, err
		}
		if err := storage.Migrate(db, cfg.Index.Type); err != nil {
			db.Close()
			return nil, err
		}
		return NewSQLIndex(db, cfg.Index.Type), nil
	default:
		return nil, fmt.Errorf("unsupported index type: %s", cfg.Index.Type)
	}
}
