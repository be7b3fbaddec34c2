// Package memory maintains the bounded per-user conversation transcript.
package memory

import (
	"context"
	"fmt"

	"github.com/antonstanevich/majordomo/internal/llm"
	"github.com/antonstanevich/majordomo/internal/models"
	"github.com/antonstanevich/majordomo/internal/storage"
)

// Memory records chat turns and serves the rolling context window.
type Memory struct {
	storage storage.Storage
	window  int
}

func New(store storage.Storage, window int) *Memory {
	return &Memory{storage: store, window: window}
}

// TurnMeta carries optional bookkeeping for an assistant turn.
type TurnMeta struct {
	ToolUsed  string
	LLMModel  string
	TokenUsed int
}

// Record appends one turn to the user's transcript.
func (m *Memory) Record(ctx context.Context, userID, role, content string, meta TurnMeta) error {
	turn := &models.ChatTurn{
		UserID:    userID,
		Role:      role,
		Content:   content,
		ToolUsed:  meta.ToolUsed,
		LLMModel:  meta.LLMModel,
		TokenUsed: meta.TokenUsed,
	}
	if err := m.storage.SaveChatTurn(ctx, turn); err != nil {
		return fmt.Errorf("failed to record chat turn: %w", err)
	}
	return nil
}

// Context returns the most recent turns in chronological order, projected to
// role and content only. The cut is most-recent-N, not token-budget-aware.
func (m *Memory) Context(ctx context.Context, userID string) ([]llm.Message, error) {
	turns, err := m.storage.GetChatContext(ctx, userID, m.window)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat context: %w", err)
	}

	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return messages, nil
}
