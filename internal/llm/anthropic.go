package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/antonstanevich/majordomo/internal/tool"
)

// ClaudeProvider backs the "claude" provider name with the Anthropic API.
type ClaudeProvider struct {
	client     anthropic.Client
	configured bool
	cheapModel string
	midModel   string
	maxTokens  int
	logger     *zap.Logger
}

func NewClaudeProvider(apiKey, cheapModel, midModel string, maxTokens int, logger *zap.Logger) *ClaudeProvider {
	p := &ClaudeProvider{
		cheapModel: cheapModel,
		midModel:   midModel,
		maxTokens:  maxTokens,
		logger:     logger,
	}
	if apiKey != "" {
		p.client = anthropic.NewClient(option.WithAPIKey(apiKey))
		p.configured = true
	}
	return p
}

func (p *ClaudeProvider) Name() string { return "claude" }

func (p *ClaudeProvider) IsConfigured() bool { return p.configured }

func (p *ClaudeProvider) Model(tier Tier) string {
	if tier == TierMid {
		return p.midModel
	}
	return p.cheapModel
}

// convertToolSpec translates the uniform spec into the Anthropic tool_use
// declaration shape.
func (p *ClaudeProvider) convertToolSpec(spec tool.Spec) anthropic.ToolUnionParam {
	param := anthropic.ToolParam{
		Name:        spec.Name,
		Description: anthropic.String(spec.Description),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: spec.Parameters.Properties,
			Required:   spec.Parameters.Required,
		},
	}
	return anthropic.ToolUnionParam{OfTool: &param}
}

func (p *ClaudeProvider) Chat(ctx context.Context, messages []Message, tier Tier, system string, tools []tool.Spec) (*Result, error) {
	if !p.configured {
		return nil, fmt.Errorf("provider claude is not configured")
	}

	model := p.Model(tier)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(p.maxTokens),
		Messages:  p.convertMessages(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		converted := make([]anthropic.ToolUnionParam, 0, len(tools))
		for _, spec := range tools {
			converted = append(converted, p.convertToolSpec(spec))
		}
		params.Tools = converted
	}

	return chatWithRetry(ctx, p.logger, func() (*Result, error) {
		msg, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return nil, p.classify(err)
		}
		return p.convertResponse(msg, model), nil
	})
}

func (p *ClaudeProvider) convertMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func (p *ClaudeProvider) convertResponse(msg *anthropic.Message, model string) *Result {
	result := &Result{
		Model:      model,
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}

	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Content += variant.Text
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			if len(variant.Input) > 0 {
				if err := json.Unmarshal(variant.Input, &args); err != nil {
					p.logger.Warn("Failed to decode tool_use input",
						zap.String("tool", variant.Name),
						zap.Error(err))
				}
			}
			result.ToolCall = &ToolCall{Name: variant.Name, Args: args}
		}
	}

	return result
}

func (p *ClaudeProvider) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case authStatus(apiErr.StatusCode):
			return &AuthError{Provider: p.Name(), Err: err}
		case transientStatus(apiErr.StatusCode):
			return &TransportError{Provider: p.Name(), Err: err}
		}
		return err
	}

	// No typed API error means the request never got a response.
	return &TransportError{Provider: p.Name(), Err: err}
}
