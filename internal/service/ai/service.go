package ai

import (
	"context"
	"fmt"
	"time"

	"mediguide/internal/config"
	"mediguide/internal/lazy"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// NewChatModel builds the chat model for the configured provider.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.BaseChatModel, error) {
	provider := cfg.BasicConfig.ChatProvider
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}
	timeout := time.Duration(cfg.BasicConfig.ProviderTimeoutSecs) * time.Second

	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
			Timeout: timeout,
		})
	case "gemini":
		client, cerr := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  provCfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if cerr != nil {
			return nil, fmt.Errorf("new genai client: %w", cerr)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
			ThinkingConfig: &genai.ThinkingConfig{
				IncludeThoughts: false,
			},
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return chatModel, nil
}

// lazyChatModel defers provider construction to the first call so that a
// transient failure at startup does not take the server down.
type lazyChatModel struct {
	model *lazy.Value[model.BaseChatModel]
}

// NewLazyChatModel wraps NewChatModel in a build-once holder.
func NewLazyChatModel(cfg *config.Config) model.BaseChatModel {
	return &lazyChatModel{model: lazy.New(func(ctx context.Context) (model.BaseChatModel, error) {
		return NewChatModel(ctx, cfg)
	})}
}

func (l *lazyChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m, err := l.model.Get(ctx)
	if err != nil {
		return nil, err
	}
	return m.Generate(ctx, input, opts...)
}

func (l *lazyChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m, err := l.model.Get(ctx)
	if err != nil {
		return nil, err
	}
	return m.Stream(ctx, input, opts...)
}
