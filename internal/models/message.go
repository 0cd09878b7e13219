package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one rendered bubble in the session transcript.
type ChatTurn struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	References []SourceRef `json:"references"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewChatTurn stamps a turn with a fresh id and creation time.
func NewChatTurn(role Role, content string, refs []SourceRef) *ChatTurn {
	if refs == nil {
		refs = []SourceRef{}
	}
	return &ChatTurn{
		ID:         uuid.NewString(),
		Role:       role,
		Content:    content,
		References: refs,
		CreatedAt:  time.Now().UTC(),
	}
}

// SourceRef is the citation projection of one retrieved document.
type SourceRef struct {
	ID           string `json:"id"`
	Department   string `json:"department"`
	Symptom      string `json:"symptom"`
	Answer       string `json:"answer"`
	QuestionText string `json:"question"`
}

// DisplayAnswer drops the "回覆" marker the source records prefix doctor replies with.
func (r SourceRef) DisplayAnswer() string {
	return strings.TrimSpace(strings.ReplaceAll(r.Answer, "回覆", ""))
}

// Exchange is one completed (input, output) pair kept in conversation memory.
type Exchange struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}
