package docindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// SQLIndex ranks every stored row by cosine similarity in process.
// Suitable for local corpora; ties keep insertion order.
type SQLIndex struct {
	db     *sql.DB
	driver string
}

func NewSQLIndex(db *sql.DB, driver string) *SQLIndex {
	return &SQLIndex{db: db, driver: strings.ToLower(driver)}
}

type scoredRow struct {
	rec   Record
	score float64
}

func (s *SQLIndex) Search(ctx context.Context, vector []float64, k int) ([]*schema.Document, error) {
	if k <= 0 {
		return []*schema.Document{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, department, symptom, question, answer, embedding FROM symptom_documents ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var scored []scoredRow
	for rows.Next() {
		var (
			rec Record
			raw string
		)
		if err := rows.Scan(&rec.ID, &rec.Department, &rec.Symptom, &rec.Question, &rec.Answer, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &rec.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding %s: %w", rec.ID, err)
		}
		if len(rec.Embedding) != len(vector) {
			return nil, fmt.Errorf("%w: document %s has %d, query has %d", ErrDimensionMismatch, rec.ID, len(rec.Embedding), len(vector))
		}
		scored = append(scored, scoredRow{rec: rec, score: cosine(rec.Embedding, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if k > len(scored) {
		k = len(scored)
	}
	docs := make([]*schema.Document, 0, k)
	for _, row := range scored[:k] {
		docs = append(docs, newDocument(row.rec.ID, row.rec.Question, map[string]any{
			MetaDepartment: row.rec.Department,
			MetaSymptom:    row.rec.Symptom,
			MetaAnswer:     row.rec.Answer,
		}, row.score))
	}
	return docs, nil
}

func (s *SQLIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	var stmt string
	switch s.driver {
	case "mysql":
		stmt = `INSERT INTO symptom_documents (doc_id, department, symptom, question, answer, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE department = VALUES(department), symptom = VALUES(symptom),
				question = VALUES(question), answer = VALUES(answer), embedding = VALUES(embedding)`
	default:
		stmt = `INSERT INTO symptom_documents (doc_id, department, symptom, question, answer, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(doc_id) DO UPDATE SET department = excluded.department, symptom = excluded.symptom,
				question = excluded.question, answer = excluded.answer, embedding = excluded.embedding`
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		vec, err := json.Marshal(rec.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, stmt, rec.ID, rec.Department, rec.Symptom, rec.Question, rec.Answer, string(vec), now); err != nil {
			return fmt.Errorf("upsert document %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *SQLIndex) Close(ctx context.Context) error {
	return s.db.Close()
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
