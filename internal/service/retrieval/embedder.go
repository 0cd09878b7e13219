package retrieval

import (
	"context"
	"errors"
	"fmt"

	"mediguide/internal/config"

	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"
)

// GeminiEmbedder turns text into vectors with the Gemini embedding API.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	taskType  string
	dims      int
	batchSize int
}

func NewGeminiEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("new genai client: %w", err)
	}
	return &GeminiEmbedder{
		client:    client,
		model:     cfg.Model,
		taskType:  cfg.TaskType,
		dims:      cfg.Dimensions,
		batchSize: cfg.BatchSize,
	}, nil
}

func (e *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	modelName := e.model
	options := embedding.GetCommonOptions(&embedding.Options{Model: &modelName}, opts...)
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}

	embedCfg := &genai.EmbedContentConfig{TaskType: e.taskType}
	if e.dims > 0 {
		dims := int32(e.dims)
		embedCfg.OutputDimensionality = &dims
	}

	return embedBatches(ctx, texts, e.batchSize, func(ctx context.Context, batch []string) ([][]float64, error) {
		contents := make([]*genai.Content, 0, len(batch))
		for _, text := range batch {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}
		resp, err := e.client.Models.EmbedContent(ctx, modelName, contents, embedCfg)
		if err != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		out := make([][]float64, 0, len(resp.Embeddings))
		for _, emb := range resp.Embeddings {
			vec := make([]float64, len(emb.Values))
			for i, v := range emb.Values {
				vec[i] = float64(v)
			}
			out = append(out, vec)
		}
		return out, nil
	})
}

// embedBatches splits texts into chunks of at most size and keeps output order.
func embedBatches(ctx context.Context, texts []string, size int, embed func(context.Context, []string) ([][]float64, error)) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	if size <= 0 {
		size = len(texts)
	}
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", end-start, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
