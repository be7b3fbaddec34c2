// Package dispatcher decides how an inbound message is satisfied: a reserved
// command handled locally, a direct tool command, or a free-form turn routed
// through the LLM with function calling.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/antonstanevich/majordomo/internal/llm"
	"github.com/antonstanevich/majordomo/internal/memory"
	"github.com/antonstanevich/majordomo/internal/models"
	"github.com/antonstanevich/majordomo/internal/storage"
	"github.com/antonstanevich/majordomo/internal/tool"
)

const systemPrompt = "You are Majordomo, a personal assistant. Reply concisely and to the point. " +
	"When the user's request matches one of the available tools, call that tool instead of " +
	"answering from memory. Otherwise answer from your own knowledge. " +
	"Always keep reference links verbatim."

// Dispatcher routes one inbound message to a reply. It never returns an
// error to the transport: every turn completes with a reply, a refusal, or a
// failure message.
type Dispatcher struct {
	tools           *tool.Registry
	router          *llm.Router
	memory          *memory.Memory
	storage         storage.Storage
	defaultProvider string
	defaultTimezone string
	logger          *zap.Logger
}

type Options struct {
	DefaultProvider string
	DefaultTimezone string
}

func New(tools *tool.Registry, router *llm.Router, mem *memory.Memory, store storage.Storage, opts Options, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		tools:           tools,
		router:          router,
		memory:          mem,
		storage:         store,
		defaultProvider: opts.DefaultProvider,
		defaultTimezone: opts.DefaultTimezone,
		logger:          logger,
	}
}

// Result is the outcome of one dispatch turn.
type Result struct {
	Reply      string
	ToolUsed   string
	LLMModel   string
	TokensUsed int
}

// ParseCommand splits a message into a leading slash command and its
// arguments. The command token is case-folded and any @botname suffix is
// stripped; a message without a leading command yields an empty command and
// the full text as args.
func ParseCommand(text string) (command, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		command, args = text[:i], strings.TrimSpace(text[i:])
	} else {
		command = text
	}

	command = strings.ToLower(command)
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	return command, args
}

// Process runs the full pipeline for one inbound message: dispatch, then
// persist both turns with the bookkeeping metadata. Memory writes happen
// only after a reply exists, so a failed turn never leaves partial state.
func (d *Dispatcher) Process(ctx context.Context, user *models.User, text string) *Result {
	result := d.Dispatch(ctx, user, text)

	if err := d.memory.Record(ctx, user.ID, "user", text, memory.TurnMeta{}); err != nil {
		d.logger.Error("Failed to persist user turn", zap.Error(err), zap.String("user_id", user.ID))
	}
	if err := d.memory.Record(ctx, user.ID, "assistant", result.Reply, memory.TurnMeta{
		ToolUsed:  result.ToolUsed,
		LLMModel:  result.LLMModel,
		TokenUsed: result.TokensUsed,
	}); err != nil {
		d.logger.Error("Failed to persist assistant turn", zap.Error(err), zap.String("user_id", user.ID))
	}

	return result
}

// Dispatch applies the routing decision and produces the reply.
func (d *Dispatcher) Dispatch(ctx context.Context, user *models.User, text string) *Result {
	turnID := uuid.New().String()
	command, args := ParseCommand(text)

	switch command {
	case "/start", "/help":
		return &Result{Reply: d.tools.HelpText()}
	case "/model":
		return &Result{Reply: d.handleModel(ctx, user, args)}
	case "/users", "/adduser", "/rmuser":
		return &Result{Reply: d.handleUserCommand(ctx, user, command, args)}
	}

	// Direct command → tool, no LLM tokens spent.
	if command != "" {
		if t := d.tools.ByCommand(command); t != nil {
			d.logger.Info("Direct command",
				zap.String("turn_id", turnID),
				zap.String("command", command),
				zap.String("tool", t.Name()))
			reply, err := d.executeTool(ctx, user.ID, t, args)
			if err != nil {
				return &Result{
					Reply:    fmt.Sprintf("⚠️ %s failed: %v\nPlease try again.", t.Name(), err),
					ToolUsed: t.Name(),
				}
			}
			return &Result{Reply: reply, ToolUsed: t.Name()}
		}
	}

	return d.dispatchFreeForm(ctx, turnID, user, text)
}

// dispatchFreeForm routes a message through the LLM, executing at most one
// tool call and summarizing its output unless the tool opts out.
func (d *Dispatcher) dispatchFreeForm(ctx context.Context, turnID string, user *models.User, text string) *Result {
	provider := user.DefaultLLM
	if provider == "" {
		provider = d.defaultProvider
	}

	context_, err := d.memory.Context(ctx, user.ID)
	if err != nil {
		d.logger.Error("Failed to load context, continuing without history",
			zap.String("turn_id", turnID), zap.Error(err))
	}
	context_ = append(context_, llm.Message{Role: "user", Content: text})

	resp, err := d.router.Chat(ctx, llm.Request{
		Messages: context_,
		Provider: provider,
		Tier:     llm.TierCheap,
		System:   systemPrompt,
		Tools:    d.tools.Specs(),
	})
	if err != nil {
		d.logger.Error("LLM dispatch failed", zap.String("turn_id", turnID), zap.Error(err))
		if errors.Is(err, llm.ErrNoProvider) {
			return &Result{Reply: fmt.Sprintf("⚠️ %v", err)}
		}
		return &Result{Reply: fmt.Sprintf("⚠️ Processing failed: %v\nPlease try again.", err)}
	}

	if resp.ToolCall == nil {
		return &Result{Reply: resp.Content, LLMModel: resp.Model, TokensUsed: resp.TokensUsed}
	}

	selected := d.tools.ByName(resp.ToolCall.Name)
	if selected == nil {
		// Degrade to the model's own text; a hallucinated tool name is a
		// warning, not a user-visible error.
		d.logger.Warn("Model selected unknown tool",
			zap.String("turn_id", turnID),
			zap.String("tool", resp.ToolCall.Name))
		return &Result{Reply: resp.Content, LLMModel: resp.Model, TokensUsed: resp.TokensUsed}
	}

	d.logger.Info("Model selected tool",
		zap.String("turn_id", turnID),
		zap.String("tool", selected.Name()))

	toolArgs := stringArg(resp.ToolCall.Args, "args")
	output, err := d.executeTool(ctx, user.ID, selected, toolArgs)
	if err != nil {
		return &Result{
			Reply:      fmt.Sprintf("⚠️ Calling %s failed: %v", selected.Name(), err),
			ToolUsed:   selected.Name(),
			LLMModel:   resp.Model,
			TokensUsed: resp.TokensUsed,
		}
	}

	if selected.DirectOutput() {
		// Raw output is the reply; paraphrasing would mangle links and
		// formatted listings.
		return &Result{
			Reply:      output,
			ToolUsed:   selected.Name(),
			LLMModel:   resp.Model,
			TokensUsed: resp.TokensUsed,
		}
	}

	summaryMessages := append(context_,
		llm.Message{Role: "assistant", Content: fmt.Sprintf("[invoked %s]", selected.Name())},
		llm.Message{Role: "user", Content: fmt.Sprintf(
			"Result of %s:\n%s\n\nSummarize this for the user. Keep any reference links verbatim.",
			selected.Name(), output)},
	)

	summary, err := d.router.Chat(ctx, llm.Request{
		Messages: summaryMessages,
		Provider: provider,
		Tier:     llm.TierCheap,
		System:   systemPrompt,
	})
	if err != nil {
		d.logger.Error("Summary call failed, replying with raw output",
			zap.String("turn_id", turnID), zap.Error(err))
		return &Result{
			Reply:      output,
			ToolUsed:   selected.Name(),
			LLMModel:   resp.Model,
			TokensUsed: resp.TokensUsed,
		}
	}

	return &Result{
		Reply:      summary.Content,
		ToolUsed:   selected.Name(),
		LLMModel:   summary.Model,
		TokensUsed: resp.TokensUsed + summary.TokensUsed,
	}
}

// executeTool runs a tool and writes the audit log entry. The error comes
// back to the caller for the user-facing message; it is never retried here.
func (d *Dispatcher) executeTool(ctx context.Context, userID string, t tool.Tool, args string) (string, error) {
	output, err := t.Execute(ctx, userID, args)

	entry := &models.ToolLog{
		UserID:       userID,
		ToolName:     t.Name(),
		InputSummary: args,
		Status:       models.StatusSuccess,
	}
	if err != nil {
		entry.Status = models.StatusFailed
		entry.ErrorMessage = err.Error()
		d.logger.Error("Tool execution failed",
			zap.String("tool", t.Name()),
			zap.String("user_id", userID),
			zap.Error(err))
	} else {
		entry.OutputSummary = output
	}

	if logErr := d.storage.LogToolUsage(ctx, entry); logErr != nil {
		d.logger.Error("Failed to write tool log", zap.Error(logErr))
	}

	return output, err
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	value, ok := args[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}
