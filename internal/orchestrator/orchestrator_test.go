package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/docassist/internal/cache"
	"github.com/haasonsaas/docassist/internal/errkind"
	"github.com/haasonsaas/docassist/internal/promptbuilder"
	"github.com/haasonsaas/docassist/internal/providers"
	"github.com/haasonsaas/docassist/internal/registry"
	"github.com/haasonsaas/docassist/internal/templates"
	"github.com/haasonsaas/docassist/pkg/models"
)

func newTestBuilder(t *testing.T) *promptbuilder.Builder {
	t.Helper()
	store, err := templates.NewStore([]templates.Template{
		{ID: "default", Text: "you are a helpful assistant"},
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	store.SetDefault("default")
	return promptbuilder.New(store, 0)
}

func newOrchestrator(t *testing.T, provider providers.LLMProvider, reg *registry.Registry, respCache *cache.ResponseCache) *Orchestrator {
	t.Helper()
	return New(provider, reg, respCache, newTestBuilder(t), Config{})
}

func TestOrchestrator_Query_SimpleNoTools(t *testing.T) {
	provider := providers.NewMock(providers.MockConfig{})
	o := newOrchestrator(t, provider, registry.New(0), nil)

	resp, err := o.Query(context.Background(), QueryRequest{Prompt: "hello there"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if resp.Content == "" {
		t.Errorf("expected non-empty content")
	}
	if resp.HistoryOptimizationInfo == nil {
		t.Errorf("expected HistoryOptimizationInfo to be set")
	}
}

func TestOrchestrator_Query_CachesWhenToolsDisabled(t *testing.T) {
	provider := providers.NewMock(providers.MockConfig{})
	c := cache.New(cache.Options{})
	o := newOrchestrator(t, provider, registry.New(0), c)

	req := QueryRequest{Prompt: "cache me"}
	first, err := o.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 after first query", c.Size())
	}

	second, err := o.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if second.Content != first.Content {
		t.Errorf("expected cached content to match, got %q vs %q", second.Content, first.Content)
	}
}

// sequencedProvider is a test double returning one scripted response per
// call, in order — unlike providers.Mock (deterministic purely by last user
// message), it lets a test express "emit a tool_call, then on the
// follow-up return plain text", per spec.md §8 scenario 2.
type sequencedProvider struct {
	responses []models.LLMResponse
	calls     int
}

func (p *sequencedProvider) Name() string { return "sequenced" }
func (p *sequencedProvider) Query(ctx context.Context, messages []models.Message, opts providers.Options, tools []providers.ToolDefinition) (models.LLMResponse, error) {
	if p.calls >= len(p.responses) {
		return models.LLMResponse{}, errors.New("sequencedProvider: no more scripted responses")
	}
	r := p.responses[p.calls]
	p.calls++
	return r, nil
}
func (p *sequencedProvider) StreamQuery(ctx context.Context, messages []models.Message, opts providers.Options, tools []providers.ToolDefinition) (<-chan providers.StreamEvent, error) {
	return nil, errors.New("not implemented")
}
func (p *sequencedProvider) Capabilities() providers.Capabilities {
	return providers.Capabilities{MaxContext: 8000, SupportsTools: true}
}
func (p *sequencedProvider) CountTokens(s string) int { return len(s) / 4 }

// tinyContextProvider wraps a Mock but reports MaxContext <= 0 so the
// orchestrator's FallbackMaxContextTokens takes effect, for exercising the
// context_overflow path without a real provider's large context window.
type tinyContextProvider struct {
	*providers.Mock
}

func (p *tinyContextProvider) Capabilities() providers.Capabilities {
	caps := p.Mock.Capabilities()
	caps.MaxContext = 0
	return caps
}

func TestOrchestrator_Query_ToolLoop_ExecutesAndReturnsFinalAnswer(t *testing.T) {
	provider := &sequencedProvider{responses: []models.LLMResponse{
		{ToolCalls: []models.ToolCall{{ID: "1", Name: "analyze_document_quality", Arguments: json.RawMessage(`{}`)}}},
		{Content: "Quality grade: C"},
	}}
	reg := registry.New(0)
	if err := reg.Register(registry.FunctionDefinition{
		Name:             "analyze_document_quality",
		ParametersSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			return map[string]string{"grade": "C"}, nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	o := newOrchestrator(t, provider, reg, nil)

	req := QueryRequest{Prompt: "summarize document quality", ToolsEnabled: true}
	resp, err := o.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("expected exactly 2 provider calls, got %d", provider.calls)
	}
	if len(resp.ToolExecutionResults) != 1 {
		t.Fatalf("expected 1 tool execution result, got %d", len(resp.ToolExecutionResults))
	}
	if resp.HistoryOptimizationInfo.PartialToolLoop {
		t.Errorf("expected the loop to terminate normally, got partial_tool_loop=true")
	}
	if resp.Content != "Quality grade: C" {
		t.Errorf("Content = %q, want %q", resp.Content, "Quality grade: C")
	}
	if len(resp.ToolCalls) != 0 {
		t.Errorf("expected no pending tool_calls in the final response, got %+v", resp.ToolCalls)
	}
}

func TestOrchestrator_Query_ToolIterationCapExhausted(t *testing.T) {
	provider := providers.NewMock(providers.MockConfig{})
	reg := registry.New(0)
	if err := reg.Register(registry.FunctionDefinition{
		Name:             "loop_tool",
		ParametersSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			return "again", nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	o := newOrchestrator(t, provider, reg, nil)

	// providers.Mock's "please call tool X" convention keys off the last
	// *user* message, which never changes across round-trips, so it keeps
	// emitting the same tool_call every turn — exercising the iteration cap
	// per spec.md §8 scenario 3 ("mock perpetually emits tool calls").
	req := QueryRequest{
		Prompt:            "please call tool loop_tool",
		ToolsEnabled:      true,
		MaxToolIterations: 2,
	}
	resp, err := o.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if resp.HistoryOptimizationInfo == nil || !resp.HistoryOptimizationInfo.PartialToolLoop {
		t.Errorf("expected partial_tool_loop=true when the iteration budget is exhausted, got %+v", resp.HistoryOptimizationInfo)
	}
}

func TestOrchestrator_Query_NonRetryableErrorFailsImmediately(t *testing.T) {
	wantErr := errors.New("400 Bad Request")
	provider := providers.NewMock(providers.MockConfig{
		ScriptedErrors: []providers.ScriptedError{{Trigger: "bad-request", Err: wantErr}},
	})
	o := newOrchestrator(t, provider, registry.New(0), nil)

	_, err := o.Query(context.Background(), QueryRequest{Prompt: "trigger bad-request please"})
	if err == nil {
		t.Fatalf("expected an error")
	}
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %T", err)
	}
	if qe.Kind != errkind.InvalidRequest {
		t.Errorf("Kind = %v, want %v", qe.Kind, errkind.InvalidRequest)
	}
}

func TestOrchestrator_Query_ContextOverflowFailsFast(t *testing.T) {
	// providers.Mock.Capabilities() reports a fixed MaxContext, so a tiny
	// FallbackMaxContextTokens only takes effect via tinyContextProvider,
	// which reports MaxContext <= 0 to force the fallback path.
	provider := &tinyContextProvider{Mock: providers.NewMock(providers.MockConfig{})}
	o := New(provider, registry.New(0), nil, newTestBuilder(t), Config{FallbackMaxContextTokens: 1})

	history := make([]models.Message, 0, 20)
	for i := 0; i < 20; i++ {
		history = append(history, models.Message{Role: models.RoleUser, Content: "this is a reasonably long message to burn through the tiny token budget"})
	}

	_, err := o.Query(context.Background(), QueryRequest{Prompt: "hi", History: history})
	var qe *QueryError
	if !errors.As(err, &qe) || qe.Kind != errkind.ContextOverflow {
		t.Fatalf("expected context_overflow error, got %v", err)
	}
}

func TestOrchestrator_Stream_EmitsTextThenDone(t *testing.T) {
	provider := providers.NewMock(providers.MockConfig{})
	o := newOrchestrator(t, provider, registry.New(0), nil)

	events, err := o.Stream(context.Background(), QueryRequest{Prompt: "stream me a reply"})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var sawText, sawDone bool
	for ev := range events {
		switch ev.Type {
		case EventText:
			sawText = true
		case EventDone:
			sawDone = true
		}
	}
	if !sawText || !sawDone {
		t.Errorf("expected both text and done events, sawText=%v sawDone=%v", sawText, sawDone)
	}
}

func TestOrchestrator_Stream_ToolUseEmitsTurnBoundary(t *testing.T) {
	provider := providers.NewMock(providers.MockConfig{})
	reg := registry.New(0)
	if err := reg.Register(registry.FunctionDefinition{
		Name:             "search_code",
		ParametersSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			return "ok", nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	o := newOrchestrator(t, provider, reg, nil)

	events, err := o.Stream(context.Background(), QueryRequest{
		Prompt:       `please call tool search_code with {"query":"foo"}`,
		ToolsEnabled: true,
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var sawTurnBoundary, sawToolStarted, sawToolCompleted bool
	for ev := range events {
		switch ev.Type {
		case EventTurnBoundary:
			sawTurnBoundary = true
		case EventToolCallStarted:
			sawToolStarted = true
		case EventToolCallCompleted:
			sawToolCompleted = true
		}
	}
	if !sawTurnBoundary || !sawToolStarted || !sawToolCompleted {
		t.Errorf("expected turn_boundary + tool_call_started + tool_call_completed, got boundary=%v started=%v completed=%v", sawTurnBoundary, sawToolStarted, sawToolCompleted)
	}
}

func TestOrchestrator_Stream_RespectsCancellation(t *testing.T) {
	provider := providers.NewMock(providers.MockConfig{Delay: time.Second})
	o := newOrchestrator(t, provider, registry.New(0), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	events, err := o.Stream(ctx, QueryRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	for range events {
		// drain until the channel closes; the goroutine must exit once ctx
		// is done rather than blocking forever.
	}
}
