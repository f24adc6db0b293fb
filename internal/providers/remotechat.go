package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/docassist/internal/tokencount"
	"github.com/haasonsaas/docassist/pkg/models"
)

// RemoteChat is an OpenAI-compatible chat-completions client. It translates
// messages to the provider wire format, issues an HTTPS request, and maps
// the response back — no retries at this layer; spec.md §4.7 assigns retry
// policy to the orchestrator.
type RemoteChat struct {
	client             *openai.Client
	defaultModel       string
	maxContext         int
	supportedModels    []string
	requestTimeout     time.Duration
	streamIdleTimeout  time.Duration
}

// RemoteChatConfig configures a RemoteChat client.
type RemoteChatConfig struct {
	APIKey            string
	BaseURL           string // overridable for proxy compatibility
	DefaultModel      string
	MaxContext        int
	SupportedModels   []string
	RequestTimeout    time.Duration // default 60s
	StreamIdleTimeout time.Duration // default 30s between stream chunks
}

// NewRemoteChat creates a RemoteChat client. Panics are never raised for a
// missing API key; Query/StreamQuery instead fail with an Auth-classified
// ProviderError so the orchestrator can surface a clean error response.
func NewRemoteChat(cfg RemoteChatConfig) *RemoteChat {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.StreamIdleTimeout <= 0 {
		cfg.StreamIdleTimeout = 30 * time.Second
	}
	if cfg.MaxContext <= 0 {
		cfg.MaxContext = 128000
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	return &RemoteChat{
		client:            openai.NewClientWithConfig(clientCfg),
		defaultModel:      cfg.DefaultModel,
		maxContext:        cfg.MaxContext,
		supportedModels:   cfg.SupportedModels,
		requestTimeout:    cfg.RequestTimeout,
		streamIdleTimeout: cfg.StreamIdleTimeout,
	}
}

func (p *RemoteChat) Name() string { return "remote_chat" }

func (p *RemoteChat) Capabilities() Capabilities {
	supported := p.supportedModels
	if len(supported) == 0 {
		supported = []string{p.defaultModel}
	}
	return Capabilities{
		MaxContext:        p.maxContext,
		SupportsTools:     true,
		SupportsStreaming: true,
		SupportedModels:   supported,
	}
}

func (p *RemoteChat) CountTokens(text string) int {
	return tokencount.Count(text)
}

// Query issues a non-streaming chat completion.
func (p *RemoteChat) Query(ctx context.Context, messages []models.Message, opts Options, tools []ToolDefinition) (models.LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	req := p.buildRequest(messages, opts, tools, false)

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return models.LLMResponse{}, p.wrapError(req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return models.LLMResponse{}, p.wrapError(req.Model, errors.New("provider returned no choices"))
	}

	choice := resp.Choices[0]
	out := models.LLMResponse{
		Content:  choice.Message.Content,
		Model:    resp.Model,
		Provider: p.Name(),
		Usage: models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

// StreamQuery issues a streaming chat completion. Token deltas are emitted
// as they arrive; tool-call deltas are buffered by index and assembled into
// a single tool_calls list emitted with the terminal EventEnd event, per
// spec.md §4.7.
func (p *RemoteChat) StreamQuery(ctx context.Context, messages []models.Message, opts Options, tools []ToolDefinition) (<-chan StreamEvent, error) {
	req := p.buildRequest(messages, opts, tools, true)

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, p.wrapError(req.Model, err)
	}

	out := make(chan StreamEvent)
	go p.pump(ctx, stream, out)
	return out, nil
}

func (p *RemoteChat) pump(ctx context.Context, stream *openai.ChatCompletionStream, out chan<- StreamEvent) {
	defer close(out)
	defer stream.Close()

	toolCalls := make(map[int]*models.ToolCall)
	var usage models.Usage

	for {
		idleCtx, cancel := context.WithTimeout(ctx, p.streamIdleTimeout)
		type recvResult struct {
			resp openai.ChatCompletionStreamResponse
			err  error
		}
		recvCh := make(chan recvResult, 1)
		go func() {
			resp, err := stream.Recv()
			recvCh <- recvResult{resp: resp, err: err}
		}()

		select {
		case <-idleCtx.Done():
			cancel()
			out <- StreamEvent{Type: EventEnd, Err: idleCtx.Err()}
			return
		case r := <-recvCh:
			cancel()
			if r.err != nil {
				if r.err == io.EOF {
					out <- StreamEvent{Type: EventEnd, ToolCalls: assembledToolCalls(toolCalls), Usage: usage}
					return
				}
				out <- StreamEvent{Type: EventEnd, Err: p.wrapError(p.defaultModel, r.err)}
				return
			}
			if r.resp.Usage != nil {
				usage = models.Usage{
					PromptTokens:     r.resp.Usage.PromptTokens,
					CompletionTokens: r.resp.Usage.CompletionTokens,
					TotalTokens:      r.resp.Usage.TotalTokens,
				}
			}
			if len(r.resp.Choices) == 0 {
				continue
			}
			delta := r.resp.Choices[0].Delta
			if delta.Content != "" {
				out <- StreamEvent{Type: EventTokenDelta, Token: delta.Content}
			}
			for _, tc := range delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				if toolCalls[idx] == nil {
					toolCalls[idx] = &models.ToolCall{}
				}
				if tc.ID != "" {
					toolCalls[idx].ID = tc.ID
				}
				if tc.Function.Name != "" {
					toolCalls[idx].Name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					toolCalls[idx].Arguments = append(toolCalls[idx].Arguments, []byte(tc.Function.Arguments)...)
				}
				out <- StreamEvent{Type: EventToolCallDelta}
			}
			if r.resp.Choices[0].FinishReason == openai.FinishReasonToolCalls {
				out <- StreamEvent{Type: EventEnd, ToolCalls: assembledToolCalls(toolCalls), Usage: usage}
				return
			}
		}
	}
}

func assembledToolCalls(m map[int]*models.ToolCall) []models.ToolCall {
	if len(m) == 0 {
		return nil
	}
	indices := make([]int, 0, len(m))
	for i := range m {
		indices = append(indices, i)
	}
	for i := 0; i < len(indices); i++ {
		for j := i + 1; j < len(indices); j++ {
			if indices[j] < indices[i] {
				indices[i], indices[j] = indices[j], indices[i]
			}
		}
	}
	out := make([]models.ToolCall, 0, len(indices))
	for _, i := range indices {
		if tc := m[i]; tc != nil && tc.ID != "" && tc.Name != "" {
			out = append(out, *tc)
		}
	}
	return out
}

func (p *RemoteChat) buildRequest(messages []models.Message, opts Options, tools []ToolDefinition, stream bool) openai.ChatCompletionRequest {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
		Stream:   stream,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	if opts.TopP != nil {
		req.TopP = float32(*opts.TopP)
	}
	if stream {
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}
	return req
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, oaiMsg)
		case models.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(t.ParametersSchema, &schemaMap); err != nil {
			schemaMap = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaMap,
			},
		})
	}
	return out
}

func (p *RemoteChat) wrapError(model string, err error) *ProviderError {
	return &ProviderError{
		Kind:     ClassifyError(err),
		Provider: p.Name(),
		Model:    model,
		Message:  err.Error(),
		Cause:    err,
	}
}
