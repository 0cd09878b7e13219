package ai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mediguide/internal/config"
	"mediguide/internal/models"
	"mediguide/internal/service/retrieval"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ErrEmptyAnswer marks a model response with no usable text.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

// Answer is the generated reply plus the documents it was grounded on.
type Answer struct {
	Text    string
	Context []*schema.Document
}

// Generator writes the doctor-persona reply from profile, history and references.
type Generator struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	persona config.PersonaConfig
}

func NewGenerator(ctx context.Context, chatModel model.BaseChatModel, persona config.PersonaConfig) (*Generator, error) {
	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(answerSystemTemplate()),
		schema.MessagesPlaceholder("chat_history", true),
		schema.UserMessage("{input}"),
	)
	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tpl).
		AppendChatModel(chatModel).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile answer chain: %w", err)
	}
	return &Generator{chain: chain, persona: persona}, nil
}

func (g *Generator) Generate(ctx context.Context, profile models.UserProfile, history []models.Exchange, question string, docs []*schema.Document) (Answer, error) {
	if docs == nil {
		docs = []*schema.Document{}
	}
	msg, err := g.chain.Invoke(ctx, map[string]any{
		"language":     g.persona.Language,
		"max_chars":    strconv.Itoa(g.persona.MaxChars),
		"profile":      profile.Text(),
		"context":      renderContext(retrieval.SourceRefs(docs)),
		"chat_history": historyMessages(history),
		"input":        question,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return Answer{}, fmt.Errorf("generate answer: %w", ErrEmptyAnswer)
	}
	return Answer{
		Text:    truncateRunes(strings.TrimSpace(msg.Content), g.persona.HardLimitRunes),
		Context: docs,
	}, nil
}

// truncateRunes cuts s to limit runes; limit <= 0 leaves s untouched.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
