package tool

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Registry holds the tools available to the dispatcher and scheduler.
// Registration happens once at startup; the registry is read-only afterwards.
type Registry struct {
	tools    map[string]Tool
	commands map[string]Tool
	order    []string
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		commands: make(map[string]Tool),
		logger:   logger,
	}
}

// Register adds one tool. A tool with an empty or duplicate name is rejected.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool has empty name: %T", t)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}

	r.tools[name] = t
	r.order = append(r.order, name)
	for _, cmd := range t.Commands() {
		r.commands[cmd] = t
	}

	r.logger.Info("Registered tool",
		zap.String("name", name),
		zap.Strings("commands", t.Commands()),
		zap.Bool("direct_output", t.DirectOutput()))
	return nil
}

// RegisterAll registers every tool in the list. A faulty entry is logged and
// skipped; it never aborts registration of the rest.
func (r *Registry) RegisterAll(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			r.logger.Warn("Skipping tool registration", zap.Error(err))
		}
	}
	r.logger.Info("Tool registration complete", zap.Strings("tools", r.Names()))
}

// ByName returns the tool with the given name, or nil.
func (r *Registry) ByName(name string) Tool {
	return r.tools[name]
}

// ByCommand returns the tool registered for a slash command, or nil.
func (r *Registry) ByCommand(command string) Tool {
	return r.commands[command]
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Specs exports every tool's function-calling specification in registration
// order. The output is stable across calls.
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// HelpText renders the /help reply from the registered tools plus the fixed
// system command section.
func (r *Registry) HelpText() string {
	var b strings.Builder
	b.WriteString("🤖 Majordomo — available commands\n")

	if len(r.order) > 0 {
		b.WriteString("\n🔧 Tools\n")
		for _, name := range r.order {
			t := r.tools[name]
			cmds := make([]string, len(t.Commands()))
			copy(cmds, t.Commands())
			sort.Strings(cmds)
			fmt.Fprintf(&b, "  %s — %s\n", strings.Join(cmds, ", "), t.Description())
		}
	}

	b.WriteString("\n⚙️ System\n")
	b.WriteString("  /model — show or switch the LLM provider\n")
	b.WriteString("  /help — show this message\n")
	b.WriteString("\n💡 Or just type freely — the assistant picks the right tool for you.\n")

	return b.String()
}
