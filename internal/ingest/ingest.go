// Package ingest loads symptom Q&A records from disk and writes them, with
// their question embeddings, into the document index.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"

	"mediguide/internal/docindex"
	"mediguide/internal/logger"
)

const defaultBatchSize = 32

var ErrInvalidRecord = errors.New("invalid record")

// Upserter is satisfied by *retrieval.VectorStore, which embeds before writing.
type Upserter interface {
	Upsert(ctx context.Context, records []docindex.Record) error
}

type Ingester struct {
	loader    *file.FileLoader
	store     Upserter
	batchSize int
	log       *logger.Logger
}

func New(ctx context.Context, store Upserter, batchSize int, log *logger.Logger) (*Ingester, error) {
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Ingester{loader: loader, store: store, batchSize: batchSize, log: log}, nil
}

// Ingest reads a JSON-lines (or JSON array) file of records and upserts them
// in batches. It returns how many records were written.
func (in *Ingester) Ingest(ctx context.Context, path string) (int, error) {
	docs, err := in.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", path, err)
	}

	var records []docindex.Record
	for _, doc := range docs {
		recs, err := decodeRecords(doc.Content)
		if err != nil {
			return 0, fmt.Errorf("decode %s: %w", path, err)
		}
		records = append(records, recs...)
	}

	written := 0
	for start := 0; start < len(records); start += in.batchSize {
		end := min(start+in.batchSize, len(records))
		if err := in.store.Upsert(ctx, records[start:end]); err != nil {
			return written, fmt.Errorf("upsert records %d-%d: %w", start, end-1, err)
		}
		written += end - start
		in.log.Debug("ingest batch written", "from", start, "to", end-1)
	}
	in.log.Info("ingest finished", "path", path, "records", written)
	return written, nil
}

func decodeRecords(content string) ([]docindex.Record, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var recs []docindex.Record
		if err := json.Unmarshal([]byte(trimmed), &recs); err != nil {
			return nil, err
		}
		for i := range recs {
			if err := validate(&recs[i]); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
		}
		return recs, nil
	}

	var recs []docindex.Record
	scanner := bufio.NewScanner(strings.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec docindex.Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := validate(&rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func validate(rec *docindex.Record) error {
	rec.Question = strings.TrimSpace(rec.Question)
	rec.Answer = strings.TrimSpace(rec.Answer)
	if rec.Question == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidRecord)
	}
	if rec.Answer == "" {
		return fmt.Errorf("%w: answer is required", ErrInvalidRecord)
	}
	return nil
}
