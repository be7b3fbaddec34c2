package dispatcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/antonstanevich/majordomo/internal/llm"
	"github.com/antonstanevich/majordomo/internal/memory"
	"github.com/antonstanevich/majordomo/internal/models"
	"github.com/antonstanevich/majordomo/internal/storage"
	"github.com/antonstanevich/majordomo/internal/tool"
)

type fakeTool struct {
	name     string
	commands []string
	direct   bool
	output   string
	err      error
	calls    int
	lastArgs string
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return "fake " + t.name }
func (t *fakeTool) Commands() []string  { return t.commands }
func (t *fakeTool) DirectOutput() bool  { return t.direct }
func (t *fakeTool) Spec() tool.Spec {
	return tool.Spec{Name: t.name, Description: "fake " + t.name, Parameters: tool.ArgsParameters("args")}
}
func (t *fakeTool) Execute(ctx context.Context, userID, args string) (string, error) {
	t.calls++
	t.lastArgs = args
	return t.output, t.err
}

type fakeProvider struct {
	name       string
	configured bool
	results    []*llm.Result
	err        error
	calls      int
}

func (p *fakeProvider) Name() string             { return p.name }
func (p *fakeProvider) IsConfigured() bool       { return p.configured }
func (p *fakeProvider) Model(tier llm.Tier) string { return p.name + "-model" }

func (p *fakeProvider) Chat(ctx context.Context, messages []llm.Message, tier llm.Tier, system string, tools []tool.Spec) (*llm.Result, error) {
	i := p.calls
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if i < len(p.results) {
		return p.results[i], nil
	}
	return &llm.Result{Content: "fallthrough", Model: p.Model(tier)}, nil
}

type fixture struct {
	dispatcher *Dispatcher
	store      *storage.MemoryStorage
	provider   *fakeProvider
	user       *models.User
}

func newFixture(t *testing.T, provider *fakeProvider, tools ...tool.Tool) *fixture {
	t.Helper()
	logger := zap.NewNop()

	store := storage.NewMemoryStorage()
	user := &models.User{
		ID:          "100",
		ChatID:      100,
		DisplayName: "Tester",
		Role:        models.RoleUser,
	}
	if err := store.UpsertUser(context.Background(), user); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	registry := llm.NewRegistry(logger)
	registry.RegisterAll(provider)
	router := llm.NewRouter(registry, logger)

	toolRegistry := tool.NewRegistry(logger)
	toolRegistry.RegisterAll(tools...)

	mem := memory.New(store, 10)
	d := New(toolRegistry, router, mem, store, Options{
		DefaultProvider: provider.Name(),
		DefaultTimezone: "Asia/Bangkok",
	}, logger)

	return &fixture{dispatcher: d, store: store, provider: provider, user: user}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text        string
		wantCommand string
		wantArgs    string
	}{
		{"/help", "/help", ""},
		{"/NEWS tech today", "/news", "tech today"},
		{"/news@majordomo_bot ai", "/news", "ai"},
		{"  /traffic  home to office  ", "/traffic", "home to office"},
		{"what's the weather?", "", "what's the weather?"},
		{"", "", ""},
		{"/model", "/model", ""},
	}
	for _, c := range cases {
		command, args := ParseCommand(c.text)
		if command != c.wantCommand || args != c.wantArgs {
			t.Errorf("ParseCommand(%q) = (%q, %q), want (%q, %q)",
				c.text, command, args, c.wantCommand, c.wantArgs)
		}
	}
}

func TestHelpIsLocal(t *testing.T) {
	f := newFixture(t,
		&fakeProvider{name: "claude", configured: true},
		&fakeTool{name: "news_summary", commands: []string{"/news"}},
	)

	result := f.dispatcher.Dispatch(context.Background(), f.user, "/help")
	if !strings.Contains(result.Reply, "/news") {
		t.Errorf("help text should list tool commands, got %q", result.Reply)
	}
	if result.TokensUsed != 0 || result.LLMModel != "" || result.ToolUsed != "" {
		t.Errorf("help must not spend tokens or run tools: %+v", result)
	}
	if f.provider.calls != 0 {
		t.Errorf("provider called %d times for /help, want 0", f.provider.calls)
	}
	if len(f.store.ToolLogs()) != 0 {
		t.Errorf("tool log written for /help: %+v", f.store.ToolLogs())
	}
}

func TestModelSwitchRejectsUnconfiguredProvider(t *testing.T) {
	f := newFixture(t, &fakeProvider{name: "claude", configured: true})

	result := f.dispatcher.Dispatch(context.Background(), f.user, "/model geminix")
	if !strings.Contains(result.Reply, "not available") {
		t.Errorf("reply = %q, want a not-available refusal", result.Reply)
	}
	if !strings.Contains(result.Reply, "claude") {
		t.Errorf("reply = %q, should list the configured options", result.Reply)
	}

	stored, err := f.store.GetUser(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if stored.DefaultLLM != "" {
		t.Errorf("preference changed to %q on a rejected switch", stored.DefaultLLM)
	}
	if f.provider.calls != 0 {
		t.Errorf("provider called %d times for /model, want 0", f.provider.calls)
	}
}

func TestModelSwitchPersistsPreference(t *testing.T) {
	f := newFixture(t, &fakeProvider{name: "claude", configured: true})

	result := f.dispatcher.Dispatch(context.Background(), f.user, "/model Claude")
	if !strings.Contains(result.Reply, "claude") {
		t.Errorf("reply = %q, want a confirmation naming the provider", result.Reply)
	}

	stored, err := f.store.GetUser(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if stored.DefaultLLM != "claude" {
		t.Errorf("DefaultLLM = %q, want claude", stored.DefaultLLM)
	}
}

func TestDirectCommandBypassesLLM(t *testing.T) {
	news := &fakeTool{name: "news_summary", commands: []string{"/news"}, output: "- [story](https://example.com)"}
	f := newFixture(t, &fakeProvider{name: "claude", configured: true}, news)

	result := f.dispatcher.Dispatch(context.Background(), f.user, "/news ai")
	if result.Reply != news.output {
		t.Errorf("Reply = %q, want the raw tool output", result.Reply)
	}
	if result.ToolUsed != "news_summary" || result.TokensUsed != 0 {
		t.Errorf("unexpected bookkeeping: %+v", result)
	}
	if news.calls != 1 || news.lastArgs != "ai" {
		t.Errorf("tool calls=%d lastArgs=%q, want 1/%q", news.calls, news.lastArgs, "ai")
	}
	if f.provider.calls != 0 {
		t.Errorf("provider called %d times for a direct command, want 0", f.provider.calls)
	}

	logs := f.store.ToolLogs()
	if len(logs) != 1 || logs[0].Status != models.StatusSuccess || logs[0].ToolName != "news_summary" {
		t.Fatalf("tool logs = %+v, want one success entry", logs)
	}
}

func TestDirectCommandFailureIsReportedAndLogged(t *testing.T) {
	broken := &fakeTool{name: "traffic", commands: []string{"/traffic"}, err: errors.New("upstream timeout")}
	f := newFixture(t, &fakeProvider{name: "claude", configured: true}, broken)

	result := f.dispatcher.Dispatch(context.Background(), f.user, "/traffic home to office")
	if !strings.Contains(result.Reply, "traffic failed") || !strings.Contains(result.Reply, "upstream timeout") {
		t.Errorf("Reply = %q, want a failure message naming the tool and cause", result.Reply)
	}
	if f.provider.calls != 0 {
		t.Errorf("provider called %d times on a tool failure, want 0", f.provider.calls)
	}

	logs := f.store.ToolLogs()
	if len(logs) != 1 {
		t.Fatalf("got %d tool logs, want 1", len(logs))
	}
	if logs[0].Status != models.StatusFailed || !strings.Contains(logs[0].ErrorMessage, "upstream timeout") {
		t.Errorf("log entry = %+v, want a failed entry with the error message", logs[0])
	}
}

func TestFreeFormWithoutToolCall(t *testing.T) {
	f := newFixture(t, &fakeProvider{
		name:       "claude",
		configured: true,
		results:    []*llm.Result{{Content: "Paris is the capital of France.", Model: "claude-model", TokensUsed: 21}},
	})

	result := f.dispatcher.Process(context.Background(), f.user, "capital of France?")
	if result.Reply != "Paris is the capital of France." {
		t.Errorf("Reply = %q, want the model text verbatim", result.Reply)
	}
	if result.LLMModel != "claude-model" || result.TokensUsed != 21 || result.ToolUsed != "" {
		t.Errorf("unexpected bookkeeping: %+v", result)
	}

	// Process persists both turns after the reply exists.
	messages, err := memory.New(f.store, 10).Context(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d persisted turns, want 2", len(messages))
	}
	if messages[0].Role != "user" || messages[1].Role != "assistant" {
		t.Errorf("turn roles = %q/%q, want user then assistant", messages[0].Role, messages[1].Role)
	}
}

func TestFreeFormToolCallWithSummary(t *testing.T) {
	news := &fakeTool{name: "news_summary", commands: []string{"/news"}, output: "- [story](https://example.com)"}
	f := newFixture(t, &fakeProvider{
		name:       "claude",
		configured: true,
		results: []*llm.Result{
			{ToolCall: &llm.ToolCall{Name: "news_summary", Args: map[string]any{"args": "ai"}}, Model: "claude-model", TokensUsed: 30},
			{Content: "Today in AI: one story. https://example.com", Model: "claude-model", TokensUsed: 12},
		},
	}, news)

	result := f.dispatcher.Dispatch(context.Background(), f.user, "any ai news?")
	if result.Reply != "Today in AI: one story. https://example.com" {
		t.Errorf("Reply = %q, want the summary round's text", result.Reply)
	}
	if result.TokensUsed != 42 {
		t.Errorf("TokensUsed = %d, want the sum of both rounds (42)", result.TokensUsed)
	}
	if result.ToolUsed != "news_summary" {
		t.Errorf("ToolUsed = %q, want news_summary", result.ToolUsed)
	}
	if news.calls != 1 || news.lastArgs != "ai" {
		t.Errorf("tool calls=%d lastArgs=%q, want exactly one execution with %q", news.calls, news.lastArgs, "ai")
	}
	if f.provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2 (selection + summary)", f.provider.calls)
	}
}

func TestFreeFormDirectOutputSkipsSummary(t *testing.T) {
	places := &fakeTool{
		name:     "places",
		commands: []string{"/places"},
		direct:   true,
		output:   "1. Cafe One — https://maps.google.com/?q=Cafe+One",
	}
	f := newFixture(t, &fakeProvider{
		name:       "claude",
		configured: true,
		results: []*llm.Result{
			{ToolCall: &llm.ToolCall{Name: "places", Args: map[string]any{"args": "coffee nearby"}}, Model: "claude-model", TokensUsed: 18},
		},
	}, places)

	result := f.dispatcher.Dispatch(context.Background(), f.user, "find me coffee")
	if result.Reply != places.output {
		t.Errorf("Reply = %q, want the raw tool output", result.Reply)
	}
	if f.provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (no summary round)", f.provider.calls)
	}
	if result.TokensUsed != 18 {
		t.Errorf("TokensUsed = %d, want 18", result.TokensUsed)
	}
}

func TestFreeFormUnknownToolDegradesToModelText(t *testing.T) {
	f := newFixture(t, &fakeProvider{
		name:       "claude",
		configured: true,
		results: []*llm.Result{
			{
				Content:    "I can't check your calendar.",
				ToolCall:   &llm.ToolCall{Name: "calendar_peek"},
				Model:      "claude-model",
				TokensUsed: 9,
			},
		},
	})

	result := f.dispatcher.Dispatch(context.Background(), f.user, "what's on my calendar?")
	if result.Reply != "I can't check your calendar." {
		t.Errorf("Reply = %q, want the model's own text", result.Reply)
	}
	if result.ToolUsed != "" {
		t.Errorf("ToolUsed = %q, nothing should have executed", result.ToolUsed)
	}
	if len(f.store.ToolLogs()) != 0 {
		t.Errorf("tool log written for an unknown tool: %+v", f.store.ToolLogs())
	}
}

func TestFreeFormNoProviderConfigured(t *testing.T) {
	f := newFixture(t, &fakeProvider{name: "claude", configured: false})

	result := f.dispatcher.Dispatch(context.Background(), f.user, "hello")
	if !strings.Contains(result.Reply, "no LLM provider available") {
		t.Errorf("Reply = %q, want the no-provider message", result.Reply)
	}
	if result.TokensUsed != 0 {
		t.Errorf("TokensUsed = %d, want 0", result.TokensUsed)
	}
}

func TestUserCommandsAreOwnerOnly(t *testing.T) {
	f := newFixture(t, &fakeProvider{name: "claude", configured: true})

	for _, text := range []string{"/users", "/adduser 200 Guest", "/rmuser 200"} {
		result := f.dispatcher.Dispatch(context.Background(), f.user, text)
		if result.Reply != permissionDenied {
			t.Errorf("Dispatch(%q) by non-owner = %q, want permission denial", text, result.Reply)
		}
	}
}

func TestOwnerManagesUsers(t *testing.T) {
	f := newFixture(t, &fakeProvider{name: "claude", configured: true})
	owner := &models.User{ID: "1", ChatID: 1, DisplayName: "Owner", Role: models.RoleOwner}
	if err := f.store.UpsertUser(context.Background(), owner); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	ctx := context.Background()

	result := f.dispatcher.Dispatch(ctx, owner, "/adduser 200 Guest")
	if !strings.Contains(result.Reply, "Guest") {
		t.Fatalf("adduser reply = %q", result.Reply)
	}
	added, err := f.store.GetUserByChatID(ctx, 200)
	if err != nil || added == nil {
		t.Fatalf("added user not found: %v, %v", added, err)
	}
	if added.Role != models.RoleUser || !added.IsActive {
		t.Errorf("added user = %+v, want an active regular user", added)
	}

	if result := f.dispatcher.Dispatch(ctx, owner, "/rmuser 1"); !strings.Contains(result.Reply, "cannot deactivate yourself") {
		t.Errorf("self-removal reply = %q, want refusal", result.Reply)
	}

	if result := f.dispatcher.Dispatch(ctx, owner, "/rmuser 200"); !strings.Contains(result.Reply, "Deactivated") {
		t.Errorf("rmuser reply = %q", result.Reply)
	}
	removed, err := f.store.GetUserByChatID(ctx, 200)
	if err != nil {
		t.Fatalf("GetUserByChatID: %v", err)
	}
	if removed != nil {
		t.Errorf("deactivated user still resolves by chat id: %+v", removed)
	}
}
