package llm

import (
	"context"

	"github.com/antonstanevich/majordomo/internal/tool"
)

// Tier selects a cost/quality class of model within a provider.
type Tier string

const (
	TierCheap Tier = "cheap"
	TierMid   Tier = "mid"
)

// Message is one transcript entry in the uniform shape providers translate
// from. Role is "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// ToolCall is the single function call a model may request in its reply.
type ToolCall struct {
	Name string
	Args map[string]any
}

// Result is the uniform chat response. TokensUsed sums input and output
// tokens as reported by the provider; zero when usage is not reported.
type Result struct {
	Content    string
	ToolCall   *ToolCall
	Model      string
	TokensUsed int
}

// Provider is one LLM backend. Implementations translate the uniform message
// list and tool specs into their native request shape and back.
type Provider interface {
	Name() string
	// IsConfigured reports whether credentials were present at startup.
	IsConfigured() bool
	// Model returns the model id for a tier.
	Model(tier Tier) string
	Chat(ctx context.Context, messages []Message, tier Tier, system string, tools []tool.Spec) (*Result, error)
}
