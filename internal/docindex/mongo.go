package docindex

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig names the Atlas collection and its vector search layout.
type MongoConfig struct {
	URI          string
	Database     string
	Collection   string
	IndexName    string
	EmbeddingKey string
	TextKey      string
}

// MongoIndex queries an Atlas collection through the $vectorSearch stage.
type MongoIndex struct {
	client *mongo.Client
	coll   *mongo.Collection
	cfg    MongoConfig
}

func NewMongoIndex(ctx context.Context, cfg MongoConfig) (*MongoIndex, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoIndex{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		cfg:    cfg,
	}, nil
}

const scoreField = "score"

func (m *MongoIndex) pipeline(vector []float64, k int) mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: m.cfg.IndexName},
			{Key: "path", Value: m.cfg.EmbeddingKey},
			{Key: "queryVector", Value: vector},
			{Key: "numCandidates", Value: k * 10},
			{Key: "limit", Value: k},
		}}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: scoreField, Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
		bson.D{{Key: "$project", Value: bson.D{{Key: m.cfg.EmbeddingKey, Value: 0}}}},
	}
}

func (m *MongoIndex) Search(ctx context.Context, vector []float64, k int) ([]*schema.Document, error) {
	if k <= 0 {
		return []*schema.Document{}, nil
	}
	cursor, err := m.coll.Aggregate(ctx, m.pipeline(vector, k))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	docs := make([]*schema.Document, 0, len(raw))
	for _, item := range raw {
		docs = append(docs, m.toDocument(item))
	}
	return docs, nil
}

// toDocument keeps every non-text field as metadata so the caller sees the
// same bag of fields the collection stores.
func (m *MongoIndex) toDocument(item bson.M) *schema.Document {
	text, _ := item[m.cfg.TextKey].(string)
	score := toFloat(item[scoreField])
	id := idString(item["_id"])

	meta := make(map[string]any, len(item))
	for key, value := range item {
		if key == m.cfg.TextKey || key == scoreField || key == "_id" {
			continue
		}
		meta[key] = value
	}
	return newDocument(id, text, meta, score)
}

func (m *MongoIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		doc := bson.D{
			{Key: MetaDepartment, Value: rec.Department},
			{Key: MetaSymptom, Value: rec.Symptom},
			{Key: m.cfg.TextKey, Value: rec.Question},
			{Key: MetaAnswer, Value: rec.Answer},
			{Key: m.cfg.EmbeddingKey, Value: rec.Embedding},
		}
		if rec.ID == "" {
			writes = append(writes, mongo.NewInsertOneModel().SetDocument(doc))
			continue
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: rec.ID}}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	if _, err := m.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("bulk upsert: %w", err)
	}
	return nil
}

func (m *MongoIndex) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
