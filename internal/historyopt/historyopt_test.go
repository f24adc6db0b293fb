package historyopt

import (
	"encoding/json"
	"testing"

	"github.com/haasonsaas/docassist/pkg/models"
)

func msg(role models.Role, content string) models.Message {
	return models.Message{Role: role, Content: content}
}

func TestOptimize_NoTrimNeeded(t *testing.T) {
	messages := []models.Message{
		msg(models.RoleSystem, "sys"),
		msg(models.RoleUser, "hi"),
		msg(models.RoleAssistant, "hello"),
	}
	res := Optimize(messages, 10000, 4)
	if res.WasOptimized {
		t.Errorf("expected no optimization under a generous budget")
	}
	if len(res.Messages) != len(messages) {
		t.Errorf("Messages len = %d, want %d", len(res.Messages), len(messages))
	}
}

func TestOptimize_KeepsLeadingSystemAndTail(t *testing.T) {
	messages := []models.Message{msg(models.RoleSystem, "sys")}
	for i := 0; i < 20; i++ {
		messages = append(messages, msg(models.RoleUser, "a long filler message to inflate the token estimate substantially"))
	}

	res := Optimize(messages, 40, 4)

	if res.Messages[0].Role != models.RoleSystem {
		t.Fatalf("expected leading system message to survive trimming")
	}
	last4 := messages[len(messages)-4:]
	gotTail := res.Messages[len(res.Messages)-4:]
	for i := range last4 {
		if gotTail[i].Content != last4[i].Content {
			t.Errorf("tail[%d] = %q, want %q", i, gotTail[i].Content, last4[i].Content)
		}
	}
	if !res.WasOptimized {
		t.Errorf("expected WasOptimized = true")
	}
	if res.OriginalCount != 21 {
		t.Errorf("OriginalCount = %d, want 21", res.OriginalCount)
	}
}

func TestOptimize_NeverSplitsToolPair(t *testing.T) {
	toolCall := models.ToolCall{ID: "tc-1", Name: "search", Arguments: json.RawMessage(`{}`)}
	messages := []models.Message{
		msg(models.RoleSystem, "sys"),
	}
	for i := 0; i < 10; i++ {
		messages = append(messages, msg(models.RoleUser, "padding message to burn through the token budget here"))
	}
	messages = append(messages,
		models.Message{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{toolCall}},
		models.Message{Role: models.RoleTool, ToolCallID: "tc-1", Content: "result"},
	)
	for i := 0; i < 5; i++ {
		messages = append(messages, msg(models.RoleUser, "more padding after the tool exchange to push it toward the middle"))
	}

	res := Optimize(messages, 60, 2)

	var sawAssistantToolCall, sawToolResult bool
	for _, m := range res.Messages {
		if m.Role == models.RoleAssistant && len(m.ToolCalls) > 0 {
			sawAssistantToolCall = true
		}
		if m.Role == models.RoleTool {
			sawToolResult = true
		}
	}
	if sawAssistantToolCall != sawToolResult {
		t.Errorf("tool pair was split: assistant present=%v, tool present=%v", sawAssistantToolCall, sawToolResult)
	}
}

func TestOptimize_Idempotent(t *testing.T) {
	messages := []models.Message{msg(models.RoleSystem, "sys")}
	for i := 0; i < 30; i++ {
		messages = append(messages, msg(models.RoleUser, "filler content to exceed the small token budget in this test case"))
	}

	first := Optimize(messages, 50, 4)
	second := Optimize(first.Messages, 50, 4)

	if len(second.Messages) != len(first.Messages) {
		t.Errorf("re-optimizing trimmed output changed length: %d vs %d", len(second.Messages), len(first.Messages))
	}
}

func TestOptimize_EmptyInput(t *testing.T) {
	res := Optimize(nil, 100, 4)
	if len(res.Messages) != 0 || res.OriginalCount != 0 {
		t.Errorf("expected empty result for empty input, got %+v", res)
	}
}
