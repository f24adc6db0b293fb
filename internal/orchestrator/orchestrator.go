// Package orchestrator implements the query orchestrator (C8): the
// end-to-end driver that turns a QueryRequest into an LLMResponse by wiring
// together the system-prompt builder, history optimizer, response cache,
// function registry, and an LLM provider, including the bounded tool loop.
package orchestrator

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/docassist/internal/cache"
	"github.com/haasonsaas/docassist/internal/errkind"
	"github.com/haasonsaas/docassist/internal/historyopt"
	"github.com/haasonsaas/docassist/internal/promptbuilder"
	"github.com/haasonsaas/docassist/internal/providers"
	"github.com/haasonsaas/docassist/internal/registry"
	"github.com/haasonsaas/docassist/internal/retry"
	"github.com/haasonsaas/docassist/internal/tokencount"
	"github.com/haasonsaas/docassist/internal/toolctx"
	"github.com/haasonsaas/docassist/pkg/models"
)

// DefaultMaxToolIterations bounds the tool loop when QueryRequest doesn't
// specify one, per spec.md §4.8 step 6.
const DefaultMaxToolIterations = 5

// DefaultRetryAttempts is the number of provider-call attempts (the initial
// call plus up to 2 retries), per spec.md §4.8's failure semantics.
const DefaultRetryAttempts = 3

// QueryRequest is C8's input, matching spec.md §4.8's QueryRequest shape.
type QueryRequest struct {
	Prompt             string
	History            []models.Message
	RepositoryContext  *models.RepositoryContext
	DocumentMetadata   *models.DocumentMetadata
	DocumentContent    string
	IncludeContent     bool
	TemplateID         string
	ToolsEnabled       bool
	Options            providers.Options
	MaxToolIterations  int
	// ToolOptions is consulted by each registered tool's capability gate
	// (registry.FunctionDefinition.Available), e.g. to check for a Git
	// credential before offering a Git-write tool.
	ToolOptions map[string]any
}

// QueryError reports a failure classified with the caller-facing error-kind
// taxonomy, per spec.md §4.8's failure semantics and §7's error-kind table.
type QueryError struct {
	Kind errkind.Kind
	Msg  string
}

func (e *QueryError) Error() string { return string(e.Kind) + ": " + e.Msg }

// Config tunes an Orchestrator's behavior beyond its wired dependencies.
type Config struct {
	// FallbackMaxContextTokens is used when the provider's reported
	// Capabilities().MaxContext is zero.
	FallbackMaxContextTokens int
	// PreserveRecentN is passed through to historyopt.Optimize.
	PreserveRecentN int
	// CacheTTL overrides the cache's default TTL for entries this
	// orchestrator writes; zero uses the cache's own default.
	CacheTTL time.Duration
	// RetryConfig governs provider-call retries. Zero value uses
	// retry.DefaultConfig() with MaxAttempts overridden to
	// DefaultRetryAttempts.
	RetryConfig retry.Config
}

// Orchestrator drives one turn end to end.
type Orchestrator struct {
	provider providers.LLMProvider
	registry *registry.Registry
	cache    *cache.ResponseCache
	builder  *promptbuilder.Builder
	cfg      Config
	tracer   trace.Tracer
	metrics  *Metrics
}

// New creates an Orchestrator. cache may be nil to disable caching entirely.
func New(provider providers.LLMProvider, reg *registry.Registry, respCache *cache.ResponseCache, builder *promptbuilder.Builder, cfg Config) *Orchestrator {
	if cfg.RetryConfig.MaxAttempts <= 0 {
		cfg.RetryConfig = retry.DefaultConfig()
		cfg.RetryConfig.MaxAttempts = DefaultRetryAttempts
	}
	if cfg.FallbackMaxContextTokens <= 0 {
		cfg.FallbackMaxContextTokens = 8000
	}
	return &Orchestrator{
		provider: provider,
		registry: reg,
		cache:    respCache,
		builder:  builder,
		cfg:      cfg,
		tracer:   otel.Tracer("orchestrator"),
		metrics:  NewMetrics(),
	}
}

// Metrics exposes o's Prometheus collectors so a caller can Register them
// against a registerer wired to an HTTP /metrics handler.
func (o *Orchestrator) Metrics() *Metrics { return o.metrics }

// turnContext is the shared preparation state for both Query and Stream: the
// assembled+optimized message list, the selected tool set, and whether any
// selected tool is side-effecting (which disables caching for the turn).
type turnContext struct {
	messages        []models.Message
	historyInfo     models.HistoryOptimizationInfo
	tools           []registry.FunctionDefinition
	toolDefs        []providers.ToolDefinition
	sideEffecting   bool
	cacheEligible   bool
}

// prepare implements spec.md §4.8 steps 1, 2, and 4: build the system
// message, assemble and optimize history, and select tools. It does not
// consult or write the cache — step 3 is the caller's job since only the
// non-streaming path uses the cache.
func (o *Orchestrator) prepare(ctx context.Context, req QueryRequest) (turnContext, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.build_system")
	systemMsg, err := o.builder.Build(promptbuilder.Input{
		TemplateID:        req.TemplateID,
		RepositoryContext: req.RepositoryContext,
		DocumentMetadata:  req.DocumentMetadata,
		DocumentContent:   req.DocumentContent,
		IncludeContent:    req.IncludeContent,
	})
	span.End()
	if err != nil {
		return turnContext{}, &QueryError{Kind: errkind.TemplateError, Msg: err.Error()}
	}

	messages := make([]models.Message, 0, len(req.History)+2)
	if systemMsg != nil {
		messages = append(messages, *systemMsg)
	}
	messages = append(messages, req.History...)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: req.Prompt})

	maxContext := o.provider.Capabilities().MaxContext
	if maxContext <= 0 {
		maxContext = o.cfg.FallbackMaxContextTokens
	}

	_, optSpan := o.tracer.Start(ctx, "orchestrator.history_optimize")
	opt := historyopt.Optimize(messages, maxContext, o.cfg.PreserveRecentN)
	optSpan.End()

	if tokencount.CountMessages(opt.Messages) > maxContext {
		return turnContext{}, &QueryError{Kind: errkind.ContextOverflow, Msg: "conversation still exceeds provider max_context after optimization"}
	}

	var tools []registry.FunctionDefinition
	if req.ToolsEnabled && o.registry != nil {
		tools = o.registry.Selected(req.ToolOptions)
	}

	return turnContext{
		messages:      opt.Messages,
		historyInfo:   opt.HistoryOptimizationInfo,
		tools:         tools,
		toolDefs:      toProviderToolDefs(tools),
		sideEffecting: anySideEffecting(tools),
		cacheEligible: !req.ToolsEnabled && o.cache != nil,
	}, nil
}

// Query runs the non-streaming flow: spec.md §4.8 steps 1-8.
func (o *Orchestrator) Query(ctx context.Context, req QueryRequest) (models.LLMResponse, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.query")
	defer span.End()
	start := time.Now()

	ctx = toolctx.WithTurnData(ctx, toolctx.TurnData{
		RepositoryContext: req.RepositoryContext,
		Options:           req.ToolOptions,
	})

	tc, err := o.prepare(ctx, req)
	if err != nil {
		o.metrics.recordTurn("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.LLMResponse{}, err
	}

	var fingerprint string
	if tc.cacheEligible {
		fingerprint = cache.Fingerprint(cache.FingerprintInput{
			ProviderID: o.provider.Name(),
			Model:      req.Options.Model,
			Messages:   tc.messages,
			Options:    optionsMap(req.Options),
		})
		if cached, ok := o.cache.Get(fingerprint); ok {
			o.metrics.CacheHits.Inc()
			cached.OptimizedConversationHistory = tc.messages
			info := tc.historyInfo
			cached.HistoryOptimizationInfo = &info
			o.metrics.recordTurn("cache_hit")
			return cached, nil
		}
		o.metrics.CacheMisses.Inc()
	}

	maxIter := req.MaxToolIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxToolIterations
	}

	resp, err := o.queryWithRetry(ctx, tc.messages, req.Options, tc.toolDefs)
	if err != nil {
		o.metrics.recordTurn("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.LLMResponse{}, err
	}

	var allResults []models.ToolResult
	iterationsLeft := maxIter
	cacheEligible := tc.cacheEligible && !tc.sideEffecting

	for len(resp.ToolCalls) > 0 {
		if iterationsLeft <= 0 {
			info := tc.historyInfo
			info.PartialToolLoop = true
			resp.OptimizedConversationHistory = tc.messages
			resp.HistoryOptimizationInfo = &info
			resp.ToolExecutionResults = allResults
			o.metrics.ToolIterations.Observe(float64(maxIter))
			o.metrics.recordTurn("partial_tool_loop")
			return resp, nil
		}

		tc.messages = append(tc.messages, models.Message{
			Role:      models.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if o.calledAnySideEffecting(resp.ToolCalls) {
			cacheEligible = false
		}

		_, toolSpan := o.tracer.Start(ctx, "orchestrator.tool_exec")
		results := o.registry.CallOrdered(ctx, resp.ToolCalls)
		toolSpan.End()
		allResults = append(allResults, results...)

		for _, tr := range results {
			tc.messages = append(tc.messages, models.Message{
				Role:       models.RoleTool,
				Content:    tr.Content,
				ToolCallID: tr.ToolCallID,
			})
		}

		resp, err = o.queryWithRetry(ctx, tc.messages, req.Options, tc.toolDefs)
		if err != nil {
			o.metrics.recordTurn("error")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return models.LLMResponse{}, err
		}
		iterationsLeft--
	}

	resp.ToolExecutionResults = allResults
	resp.OptimizedConversationHistory = tc.messages
	info := tc.historyInfo
	resp.HistoryOptimizationInfo = &info
	if batches := maxIter - iterationsLeft; batches > 0 {
		o.metrics.ToolIterations.Observe(float64(batches))
	}

	if cacheEligible && fingerprint != "" {
		o.cache.Put(fingerprint, resp, o.cfg.CacheTTL)
	}

	o.metrics.recordTurn("success")
	o.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	return resp, nil
}

// queryWithRetry wraps provider.Query in spec.md §4.8's failure semantics:
// up to DefaultRetryAttempts total attempts, exponential backoff on
// transient classes, immediate failure on non-retryable classes.
func (o *Orchestrator) queryWithRetry(ctx context.Context, messages []models.Message, opts providers.Options, tools []providers.ToolDefinition) (models.LLMResponse, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.provider_query", trace.WithAttributes(attribute.String("provider", o.provider.Name())))
	defer span.End()

	resp, result := retry.DoWithValue(ctx, o.cfg.RetryConfig, func() (models.LLMResponse, error) {
		r, err := o.provider.Query(ctx, messages, opts, tools)
		if err != nil {
			kind := providers.ClassifyError(err)
			if !kind.Retryable() {
				return models.LLMResponse{}, retry.Permanent(err)
			}
			return models.LLMResponse{}, err
		}
		return r, nil
	})

	if result.Err != nil {
		kind := providers.ClassifyError(result.Err)
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
		return models.LLMResponse{}, &QueryError{Kind: kind, Msg: result.Err.Error()}
	}
	return resp, nil
}

func (o *Orchestrator) calledAnySideEffecting(calls []models.ToolCall) bool {
	if o.registry == nil {
		return false
	}
	for _, c := range calls {
		if def, ok := o.registry.Get(c.Name); ok && def.SideEffecting {
			return true
		}
	}
	return false
}

func anySideEffecting(tools []registry.FunctionDefinition) bool {
	for _, t := range tools {
		if t.SideEffecting {
			return true
		}
	}
	return false
}

func toProviderToolDefs(tools []registry.FunctionDefinition) []providers.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	out := make([]providers.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		out = append(out, providers.ToolDefinition{
			Name:             t.Name,
			Description:      t.Description,
			ParametersSchema: []byte(t.ParametersSchema),
		})
	}
	return out
}

func optionsMap(opts providers.Options) map[string]any {
	m := map[string]any{"model": opts.Model, "max_tokens": strconv.Itoa(opts.MaxTokens)}
	if opts.Temperature != nil {
		m["temperature"] = strconv.FormatFloat(*opts.Temperature, 'f', -1, 64)
	}
	if opts.TopP != nil {
		m["top_p"] = strconv.FormatFloat(*opts.TopP, 'f', -1, 64)
	}
	return m
}
