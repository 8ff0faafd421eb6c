package chatports

import (
	"context"
	"encoding/json"
)

// PromptMessage is a single chat message in the model's running transcript.
type PromptMessage struct {
	Role    string // "system", "user", "assistant", "tool"
	Content string
}

// PromptInput aggregates everything the provider needs to produce a completion.
type PromptInput struct {
	System   string
	Messages []PromptMessage
	Tools    []ToolSpec
	Meta     map[string]string // lightweight metadata for tracing
}

// Options controls the provider call.
type Options struct {
	Model        string
	MaxNewTokens int
	Temperature  float32
}

// Usage captures measured token accounting for spark settlement.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ToolSpec describes a callable tool exposed to the model.
type ToolSpec struct {
	Name        string
	Description string
	JSONSchema  []byte
}

// ToolCall is a model-requested function invocation with JSON arguments.
type ToolCall struct {
	Name string
	Args json.RawMessage
}

// Completion is the provider's response: either final text or one or more
// tool-call requests.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
	Usage     *Usage
}

// Provider is the abstraction over the model backend. The actual transport is
// out of scope here; completions arrive as one opaque operation.
type Provider interface {
	Complete(ctx context.Context, in PromptInput, opts Options) (Completion, error)
}
