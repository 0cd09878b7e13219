package ai

import (
	"context"
	"fmt"
	"strings"

	"mediguide/internal/models"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Rewriter turns a follow-up utterance into a standalone question.
type Rewriter struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

func NewRewriter(ctx context.Context, chatModel model.BaseChatModel) (*Rewriter, error) {
	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(rewriteSystemPrompt),
		schema.MessagesPlaceholder("chat_history", true),
		schema.UserMessage("{input}"),
	)
	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tpl).
		AppendChatModel(chatModel).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile rewrite chain: %w", err)
	}
	return &Rewriter{chain: chain}, nil
}

// Rewrite returns utterance unchanged when there is no history to resolve
// against, and also when the model comes back blank.
func (r *Rewriter) Rewrite(ctx context.Context, history []models.Exchange, utterance string) (string, error) {
	if len(history) == 0 {
		return utterance, nil
	}
	msg, err := r.chain.Invoke(ctx, map[string]any{
		"chat_history": historyMessages(history),
		"input":        utterance,
	})
	if err != nil {
		return "", fmt.Errorf("rewrite question: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return utterance, nil
	}
	return strings.TrimSpace(msg.Content), nil
}
