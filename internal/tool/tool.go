package tool

import "context"

// Tool is a named, stateless unit of work the dispatcher and scheduler can
// invoke. Implementations live in internal/tools.
type Tool interface {
	// Name is the unique registry key.
	Name() string
	// Description is shown to the LLM and in the help text.
	Description() string
	// Commands are the slash commands that invoke this tool directly.
	Commands() []string
	// DirectOutput marks tools whose raw result is delivered to the user
	// without an LLM summarization round (maps links, formatted listings).
	DirectOutput() bool
	// Spec exports the function-calling specification.
	Spec() Spec
	// Execute runs the tool for a user and returns the result text.
	Execute(ctx context.Context, userID, args string) (string, error)
}

// Spec is the uniform function-calling specification exchanged with LLM
// providers. Each provider owns its own translation into native format.
type Spec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema is a JSON-schema object description.
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// EmptyParameters is the schema exported by tools that take no arguments.
func EmptyParameters() ParameterSchema {
	return ParameterSchema{
		Type:       "object",
		Properties: map[string]Property{},
	}
}

// ArgsParameters is the common one-field schema for tools that take a single
// free-text argument string.
func ArgsParameters(description string) ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]Property{
			"args": {Type: "string", Description: description},
		},
	}
}
