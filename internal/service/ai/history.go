package ai

import (
	"mediguide/internal/models"

	"github.com/cloudwego/eino/schema"
)

// historyMessages expands memory into alternating user/assistant messages.
func historyMessages(history []models.Exchange) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)*2)
	for _, ex := range history {
		messages = append(messages,
			schema.UserMessage(ex.Input),
			schema.AssistantMessage(ex.Output, nil),
		)
	}
	return messages
}
