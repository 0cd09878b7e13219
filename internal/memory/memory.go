// Package memory keeps the (question, answer) log that follow-up questions are
// resolved against.
package memory

import (
	"sync"

	"mediguide/internal/models"
)

// ConversationMemory is the ordered log of completed turns read by the rewriter
// and generator and appended to after each successful turn.
type ConversationMemory interface {
	Load() []models.Exchange
	Save(input, output string)
}

// Buffer keeps the whole conversation in process memory.
type Buffer struct {
	mu        sync.RWMutex
	exchanges []models.Exchange
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Load returns a copy so callers cannot mutate the log.
func (b *Buffer) Load() []models.Exchange {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Exchange, len(b.exchanges))
	copy(out, b.exchanges)
	return out
}

func (b *Buffer) Save(input, output string) {
	b.mu.Lock()
	b.exchanges = append(b.exchanges, models.Exchange{Input: input, Output: output})
	b.mu.Unlock()
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.exchanges)
}
