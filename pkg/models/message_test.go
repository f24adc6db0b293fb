package models

import (
	"encoding/json"
	"testing"
)

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{
			name: "valid user message",
			msg:  Message{Role: RoleUser, Content: "hi"},
		},
		{
			name: "valid assistant with content only",
			msg:  Message{Role: RoleAssistant, Content: "hello"},
		},
		{
			name: "valid assistant with tool_calls and empty content",
			msg: Message{
				Role:      RoleAssistant,
				ToolCalls: []ToolCall{{ID: "tc-1", Name: "search", Arguments: json.RawMessage(`{}`)}},
			},
		},
		{
			name:    "invalid assistant with neither content nor tool_calls",
			msg:     Message{Role: RoleAssistant},
			wantErr: true,
		},
		{
			name: "valid tool message",
			msg:  Message{Role: RoleTool, ToolCallID: "tc-1", Content: "result"},
		},
		{
			name:    "invalid tool message missing tool_call_id",
			msg:     Message{Role: RoleTool, Content: "result"},
			wantErr: true,
		},
		{
			name: "invalid user message with tool_calls",
			msg: Message{
				Role:      RoleUser,
				Content:   "hi",
				ToolCalls: []ToolCall{{ID: "tc-1", Name: "x"}},
			},
			wantErr: true,
		},
		{
			name:    "invalid system message with tool_call_id",
			msg:     Message{Role: RoleSystem, Content: "sys", ToolCallID: "tc-1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	original := Message{
		Role:      RoleAssistant,
		ToolCalls: []ToolCall{{ID: "tc-1", Name: "search", Arguments: json.RawMessage(`{"q":"test"}`)}},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if len(decoded.ToolCalls) != 1 || decoded.ToolCalls[0].Name != "search" {
		t.Errorf("ToolCalls round-trip mismatch: %+v", decoded.ToolCalls)
	}
	if decoded.Content != "" {
		t.Errorf("Content = %q, want empty", decoded.Content)
	}
}

func TestRepositoryContext_Defaults(t *testing.T) {
	rc := RepositoryContext{Service: GitServiceGitHub, Owner: "o", Repo: "r"}
	if rc.Ref != "" {
		t.Errorf("Ref should default to empty until resolved, got %q", rc.Ref)
	}
}
