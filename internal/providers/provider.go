// Package providers implements the LLM provider clients (C7): a uniform
// interface each concrete backend satisfies, plus the RemoteChat
// (OpenAI-compatible HTTP) and Mock (deterministic/scriptable) concretes.
package providers

import (
	"context"

	"github.com/haasonsaas/docassist/pkg/models"
)

// Options carries per-request tuning knobs a caller passes through to a
// provider. Fields are provider-agnostic; a provider ignores options it
// doesn't understand.
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	TopP        *float64
}

// StreamEventType discriminates StreamEvent.
type StreamEventType string

const (
	EventTokenDelta    StreamEventType = "token_delta"
	EventToolCallDelta StreamEventType = "tool_call_delta"
	EventEnd           StreamEventType = "end"
)

// StreamEvent is one item in a StreamQuery sequence.
type StreamEvent struct {
	Type      StreamEventType
	Token     string           // set on EventTokenDelta
	ToolCalls []models.ToolCall // set on EventEnd once deltas are assembled
	Usage     models.Usage     // set on EventEnd
	Err       error
}

// Capabilities describes what a provider supports.
type Capabilities struct {
	MaxContext        int
	SupportsTools     bool
	SupportsStreaming bool
	SupportedModels   []string
}

// LLMProvider is the uniform interface every concrete provider satisfies.
type LLMProvider interface {
	Name() string
	Query(ctx context.Context, messages []models.Message, opts Options, tools []ToolDefinition) (models.LLMResponse, error)
	StreamQuery(ctx context.Context, messages []models.Message, opts Options, tools []ToolDefinition) (<-chan StreamEvent, error)
	Capabilities() Capabilities
	CountTokens(text string) int
}

// ToolDefinition is the provider-facing shape of a callable tool: name,
// description, and a JSON-Schema parameters document. It mirrors
// registry.FunctionDefinition's public fields without importing the
// registry package, keeping providers free of a dependency on C6.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema []byte
}
