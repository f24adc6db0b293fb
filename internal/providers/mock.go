package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/haasonsaas/docassist/internal/tokencount"
	"github.com/haasonsaas/docassist/pkg/models"
)

// callToolPattern recognizes the "please call tool X" convention spec.md
// §4.7 names for exercising the tool loop deterministically:
// "please call tool <name> with {...}".
var callToolPattern = regexp.MustCompile(`(?i)please call tool (\S+)(?:\s+with\s+(\{.*\}))?`)

// ScriptedError, when set for a given trigger substring, makes Mock fail
// that call instead of returning a response.
type ScriptedError struct {
	Trigger string
	Err     error
}

// Mock is a deterministic, scriptable provider for tests and local
// development: its response is a pure function of the last user message,
// with optional scripted delays and errors for exercising timeout/retry
// paths without a live backend.
type Mock struct {
	model          string
	delay          time.Duration
	scriptedErrors []ScriptedError
}

// MockConfig configures a Mock provider.
type MockConfig struct {
	Model          string
	Delay          time.Duration
	ScriptedErrors []ScriptedError
}

// NewMock creates a Mock provider.
func NewMock(cfg MockConfig) *Mock {
	if cfg.Model == "" {
		cfg.Model = "mock-1"
	}
	return &Mock{model: cfg.Model, delay: cfg.Delay, scriptedErrors: cfg.ScriptedErrors}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Capabilities() Capabilities {
	return Capabilities{
		MaxContext:        32000,
		SupportsTools:     true,
		SupportsStreaming: true,
		SupportedModels:   []string{m.model},
	}
}

func (m *Mock) CountTokens(text string) int {
	return tokencount.Count(text)
}

func (m *Mock) Query(ctx context.Context, messages []models.Message, opts Options, tools []ToolDefinition) (models.LLMResponse, error) {
	lastUser := lastUserContent(messages)

	if err := m.checkScripted(lastUser); err != nil {
		return models.LLMResponse{}, err
	}
	if err := m.sleep(ctx); err != nil {
		return models.LLMResponse{}, err
	}

	resp := models.LLMResponse{Model: m.model, Provider: m.Name()}
	if name, args, ok := matchCallTool(lastUser); ok {
		resp.ToolCalls = []models.ToolCall{{ID: "mock-call-1", Name: name, Arguments: args}}
	} else {
		resp.Content = deterministicReply(lastUser)
	}
	resp.Usage = models.Usage{
		PromptTokens:     tokencount.CountMessages(messages),
		CompletionTokens: tokencount.Count(resp.Content),
	}
	resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
	return resp, nil
}

func (m *Mock) StreamQuery(ctx context.Context, messages []models.Message, opts Options, tools []ToolDefinition) (<-chan StreamEvent, error) {
	lastUser := lastUserContent(messages)
	if err := m.checkScripted(lastUser); err != nil {
		return nil, err
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		if err := m.sleep(ctx); err != nil {
			out <- StreamEvent{Type: EventEnd, Err: err}
			return
		}

		if name, args, ok := matchCallTool(lastUser); ok {
			out <- StreamEvent{Type: EventToolCallDelta}
			out <- StreamEvent{
				Type:      EventEnd,
				ToolCalls: []models.ToolCall{{ID: "mock-call-1", Name: name, Arguments: args}},
			}
			return
		}

		reply := deterministicReply(lastUser)
		for _, word := range strings.Fields(reply) {
			select {
			case <-ctx.Done():
				out <- StreamEvent{Type: EventEnd, Err: ctx.Err()}
				return
			case out <- StreamEvent{Type: EventTokenDelta, Token: word + " "}:
			}
		}
		out <- StreamEvent{Type: EventEnd, Usage: models.Usage{CompletionTokens: tokencount.Count(reply)}}
	}()
	return out, nil
}

func (m *Mock) checkScripted(lastUser string) error {
	for _, se := range m.scriptedErrors {
		if se.Trigger != "" && strings.Contains(lastUser, se.Trigger) {
			return se.Err
		}
	}
	return nil
}

func (m *Mock) sleep(ctx context.Context) error {
	if m.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(m.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func lastUserContent(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func matchCallTool(content string) (name string, args json.RawMessage, ok bool) {
	m := callToolPattern.FindStringSubmatch(content)
	if m == nil {
		return "", nil, false
	}
	args = json.RawMessage(`{}`)
	if len(m) > 2 && m[2] != "" {
		args = json.RawMessage(m[2])
	}
	return m[1], args, true
}

func deterministicReply(lastUser string) string {
	if lastUser == "" {
		return "mock: no input provided"
	}
	return fmt.Sprintf("mock reply to: %s", lastUser)
}
