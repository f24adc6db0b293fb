// Package models defines the core data types shared across the orchestration
// core: the conversation message model, tool-call/tool-result shapes, the
// repository/document context the system-prompt builder consumes, and the
// LLM response envelope returned to callers.
package models

import (
	"encoding/json"
	"fmt"
)

// Role indicates the message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a tagged-union conversation entry.
//
// Invariants (enforced by Validate, not by the type system — Go has no sum
// types): ToolCalls is only ever non-empty on an assistant message; a tool
// message always carries a non-empty ToolCallID referencing a prior
// assistant message's ToolCalls entry; Content may be empty on an assistant
// message that carries ToolCalls.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Validate checks the tagged-union invariants spec.md §3 requires.
func (m Message) Validate() error {
	switch m.Role {
	case RoleTool:
		if m.ToolCallID == "" {
			return fmt.Errorf("tool message missing tool_call_id")
		}
		if len(m.ToolCalls) != 0 {
			return fmt.Errorf("tool message must not carry tool_calls")
		}
	case RoleAssistant:
		if m.Content == "" && len(m.ToolCalls) == 0 {
			return fmt.Errorf("assistant message needs content or tool_calls")
		}
	default:
		if len(m.ToolCalls) != 0 {
			return fmt.Errorf("%s message must not carry tool_calls", m.Role)
		}
		if m.ToolCallID != "" {
			return fmt.Errorf("%s message must not carry tool_call_id", m.Role)
		}
	}
	return nil
}

// ToolCall is a model-issued request to invoke a registered function.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a ToolCall, rendered back into the
// conversation as a tool-role Message.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
}

// GitService identifies a supported Git hosting backend.
type GitService string

const (
	GitServiceGitHub  GitService = "github"
	GitServiceForgejo GitService = "forgejo"
	GitServiceMock    GitService = "mock"
)

// RepositoryContext identifies what document/repository the user is looking
// at. Ref is passed through as given: neither the system-prompt builder nor
// the Git tool adapters resolve an empty Ref to the repository's default
// branch.
type RepositoryContext struct {
	Service     GitService `json:"service"`
	Owner       string     `json:"owner"`
	Repo        string     `json:"repo"`
	Ref         string     `json:"ref,omitempty"`
	CurrentPath string     `json:"current_path,omitempty"`
}

// DocumentType identifies the format of a document's content.
type DocumentType string

const (
	DocumentMarkdown DocumentType = "markdown"
	DocumentHTML     DocumentType = "html"
	DocumentText     DocumentType = "text"
)

// DocumentMetadata describes the document currently in view, independent of
// its content (content, when present, travels alongside as a plain string).
type DocumentMetadata struct {
	Type         DocumentType   `json:"type"`
	LastModified string         `json:"last_modified,omitempty"`
	Title        string         `json:"title,omitempty"`
	Frontmatter  map[string]any `json:"frontmatter,omitempty"`
}

// Usage reports token accounting as returned by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// HistoryOptimizationInfo summarizes what the history optimizer did to reach
// the returned message list, including the partial-tool-loop marker C8 sets
// when the iteration budget is exhausted while tool calls remain.
type HistoryOptimizationInfo struct {
	WasOptimized     bool `json:"was_optimized"`
	OriginalCount    int  `json:"original_count"`
	OptimizedCount   int  `json:"optimized_count"`
	PartialToolLoop  bool `json:"partial_tool_loop,omitempty"`
}

// LLMResponse is the result of one orchestrator turn.
type LLMResponse struct {
	Content                     string                   `json:"content"`
	Model                       string                   `json:"model"`
	Provider                    string                   `json:"provider"`
	Usage                       Usage                    `json:"usage"`
	ToolCalls                   []ToolCall               `json:"tool_calls,omitempty"`
	ToolExecutionResults        []ToolResult             `json:"tool_execution_results,omitempty"`
	OptimizedConversationHistory []Message               `json:"optimized_conversation_history,omitempty"`
	HistoryOptimizationInfo     *HistoryOptimizationInfo `json:"history_optimization_info,omitempty"`
}
