package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mediguide/internal/docindex"
	"mediguide/internal/models"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

// DefaultTopK is the number of reference records fed to the generator.
const DefaultTopK = 3

// VectorStore pairs the embedding client with a document index and serves
// similarity search as an eino retriever.
type VectorStore struct {
	embedder embedding.Embedder
	index    docindex.Index
	topK     int
}

var _ retriever.Retriever = (*VectorStore)(nil)

func NewVectorStore(embedder embedding.Embedder, index docindex.Index, topK int) *VectorStore {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &VectorStore{embedder: embedder, index: index, topK: topK}
}

// Retrieve returns at most topK documents by descending similarity. An empty
// index yields an empty slice.
func (s *VectorStore) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := s.topK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if options.TopK != nil {
		topK = *options.TopK
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query cannot be empty")
	}

	vecs, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vecs))
	}
	docs, err := s.index.Search(ctx, vecs[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if options.ScoreThreshold != nil {
		kept := docs[:0]
		for _, doc := range docs {
			if doc.Score() >= *options.ScoreThreshold {
				kept = append(kept, doc)
			}
		}
		docs = kept
	}
	return docs, nil
}

// Upsert embeds the record questions and writes them to the index.
func (s *VectorStore) Upsert(ctx context.Context, records []docindex.Record) error {
	if len(records) == 0 {
		return nil
	}
	questions := make([]string, len(records))
	for i, rec := range records {
		questions[i] = rec.Question
	}
	vecs, err := s.embedder.EmbedStrings(ctx, questions)
	if err != nil {
		return fmt.Errorf("embed records: %w", err)
	}
	if len(vecs) != len(records) {
		return fmt.Errorf("embed records: expected %d vectors, got %d", len(records), len(vecs))
	}
	for i := range records {
		records[i].Embedding = vecs[i]
	}
	return s.index.Upsert(ctx, records)
}

func (s *VectorStore) Close(ctx context.Context) error {
	return s.index.Close(ctx)
}

// SourceRefs projects retrieved documents into citations.
func SourceRefs(docs []*schema.Document) []models.SourceRef {
	refs := make([]models.SourceRef, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		refs = append(refs, models.SourceRef{
			ID:           doc.ID,
			Department:   metaString(doc, docindex.MetaDepartment),
			Symptom:      metaString(doc, docindex.MetaSymptom),
			Answer:       metaString(doc, docindex.MetaAnswer),
			QuestionText: doc.Content,
		})
	}
	return refs
}

func metaString(doc *schema.Document, key string) string {
	if doc.MetaData == nil {
		return ""
	}
	if s, ok := doc.MetaData[key].(string); ok {
		return s
	}
	if v, ok := doc.MetaData[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
