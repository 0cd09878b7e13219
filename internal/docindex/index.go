// Package docindex holds the vector-searchable symptom Q&A collection.
// Matches come back as eino documents: Content is the stored question text,
// MetaData carries the record fields and the similarity score.
package docindex

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/schema"
)

// Metadata keys set on every returned document.
const (
	MetaID         = "_id"
	MetaDepartment = "department"
	MetaSymptom    = "symptom"
	MetaAnswer     = "answer"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Record is one symptom Q&A entry with its precomputed question embedding.
type Record struct {
	ID         string    `json:"id"`
	Department string    `json:"department"`
	Symptom    string    `json:"symptom"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Embedding  []float64 `json:"-"`
}

// Index is the document store boundary used by the retriever and the ingest tool.
type Index interface {
	// Search returns up to k documents ordered by descending similarity.
	Search(ctx context.Context, vector []float64, k int) ([]*schema.Document, error)
	Upsert(ctx context.Context, records []Record) error
	Close(ctx context.Context) error
}

func newDocument(id, question string, meta map[string]any, score float64) *schema.Document {
	if meta == nil {
		meta = make(map[string]any)
	}
	meta[MetaID] = id
	doc := &schema.Document{ID: id, Content: question, MetaData: meta}
	return doc.WithScore(score)
}
