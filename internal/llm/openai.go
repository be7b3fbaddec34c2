package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/antonstanevich/majordomo/internal/tool"
)

// OpenAIProvider backs the "openai" provider name.
type OpenAIProvider struct {
	client     *openai.Client
	cheapModel string
	midModel   string
	maxTokens  int
	logger     *zap.Logger
}

func NewOpenAIProvider(apiKey, cheapModel, midModel string, maxTokens int, logger *zap.Logger) *OpenAIProvider {
	p := &OpenAIProvider{
		cheapModel: cheapModel,
		midModel:   midModel,
		maxTokens:  maxTokens,
		logger:     logger,
	}
	if apiKey != "" {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) IsConfigured() bool { return p.client != nil }

func (p *OpenAIProvider) Model(tier Tier) string {
	if tier == TierMid {
		return p.midModel
	}
	return p.cheapModel
}

// convertToolSpec translates the uniform spec into the OpenAI function
// declaration shape.
func (p *OpenAIProvider) convertToolSpec(spec tool.Spec) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.Parameters,
		},
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, tier Tier, system string, tools []tool.Spec) (*Result, error) {
	if p.client == nil {
		return nil, fmt.Errorf("provider openai is not configured")
	}

	model := p.Model(tier)

	request := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: p.maxTokens,
	}
	if system != "" {
		request.Messages = append(request.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		request.Messages = append(request.Messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	for _, spec := range tools {
		request.Tools = append(request.Tools, p.convertToolSpec(spec))
	}

	return chatWithRetry(ctx, p.logger, func() (*Result, error) {
		resp, err := p.client.CreateChatCompletion(ctx, request)
		if err != nil {
			return nil, p.classify(err)
		}
		return p.convertResponse(&resp, model), nil
	})
}

func (p *OpenAIProvider) convertResponse(resp *openai.ChatCompletionResponse, model string) *Result {
	result := &Result{
		Model:      model,
		TokensUsed: resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
	}

	if len(resp.Choices) == 0 {
		return result
	}

	message := resp.Choices[0].Message
	result.Content = message.Content

	// At most one function call per turn; extras are ignored.
	if len(message.ToolCalls) > 0 {
		call := message.ToolCalls[0]
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				p.logger.Warn("Failed to decode tool call arguments",
					zap.String("tool", call.Function.Name),
					zap.Error(err))
			}
		}
		result.ToolCall = &ToolCall{Name: call.Function.Name, Args: args}
	}

	return result
}

func (p *OpenAIProvider) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case authStatus(apiErr.HTTPStatusCode):
			return &AuthError{Provider: p.Name(), Err: err}
		case transientStatus(apiErr.HTTPStatusCode):
			return &TransportError{Provider: p.Name(), Err: err}
		}
		return err
	}

	return &TransportError{Provider: p.Name(), Err: err}
}
