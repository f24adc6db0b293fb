package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/docassist/internal/errkind"
	"github.com/haasonsaas/docassist/internal/providers"
	"github.com/haasonsaas/docassist/internal/toolctx"
	"github.com/haasonsaas/docassist/pkg/models"
)

// EventType discriminates a streaming Event, matching the SSE frame shapes
// spec.md §4.11 names.
type EventType string

const (
	EventText              EventType = "text"
	EventToolCallStarted   EventType = "tool_call_started"
	EventToolCallCompleted EventType = "tool_call_completed"
	EventTurnBoundary      EventType = "turn_boundary"
	EventErr               EventType = "error"
	EventDone              EventType = "done"
)

// Event is one item the Stream method emits. A component that encodes SSE
// wire frames (C11) renders each Event into the corresponding `data:`
// frame; Event itself carries no transport detail.
type Event struct {
	Type       EventType
	Text       string
	ToolCallID string
	ToolName   string
	ErrorKind  string
	Message    string
}

// Stream runs the streaming flow: spec.md §4.8's streaming paragraph. Token
// deltas are forwarded immediately; on a tool-using turn the stream closes,
// the orchestrator executes the tools, and a new stream is opened for the
// follow-up turn, separated by a turn_boundary event. Caching is never
// consulted or written, per spec.md §9 decision 2.
func (o *Orchestrator) Stream(ctx context.Context, req QueryRequest) (<-chan Event, error) {
	ctx = toolctx.WithTurnData(ctx, toolctx.TurnData{
		RepositoryContext: req.RepositoryContext,
		Options:           req.ToolOptions,
	})

	tc, err := o.prepare(ctx, req)
	if err != nil {
		out := make(chan Event, 1)
		out <- errEvent(err)
		close(out)
		return out, nil
	}

	maxIter := req.MaxToolIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxToolIterations
	}

	out := make(chan Event)
	go o.runStream(ctx, tc.messages, req.Options, tc.toolDefs, maxIter, out)
	return out, nil
}

func (o *Orchestrator) runStream(ctx context.Context, messages []models.Message, opts providers.Options, toolDefs []providers.ToolDefinition, iterationsLeft int, out chan<- Event) {
	defer close(out)

	ctx, span := o.tracer.Start(ctx, "orchestrator.stream")
	defer span.End()

	first := true
	for {
		if !first {
			if !o.send(ctx, out, Event{Type: EventTurnBoundary}) {
				return
			}
		}
		first = false

		assistantText, toolCalls, err := o.streamOneRoundTrip(ctx, messages, opts, toolDefs, out)
		if err != nil {
			kind := providers.ClassifyError(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.send(ctx, out, Event{Type: EventErr, ErrorKind: string(kind), Message: err.Error()})
			return
		}

		if len(toolCalls) == 0 {
			o.send(ctx, out, Event{Type: EventDone})
			return
		}
		if iterationsLeft <= 0 {
			// partial_tool_loop: the best-effort text already streamed is
			// the final answer for this turn; no further round-trip.
			o.send(ctx, out, Event{Type: EventDone})
			return
		}

		messages = append(messages, models.Message{
			Role:      models.RoleAssistant,
			Content:   assistantText,
			ToolCalls: toolCalls,
		})

		for _, tc := range toolCalls {
			if !o.send(ctx, out, Event{Type: EventToolCallStarted, ToolCallID: tc.ID, ToolName: tc.Name}) {
				return
			}
		}

		_, toolSpan := o.tracer.Start(ctx, "orchestrator.tool_exec")
		results := o.registry.CallOrdered(ctx, toolCalls)
		toolSpan.End()

		byID := make(map[string]string, len(toolCalls))
		for _, tc := range toolCalls {
			byID[tc.ID] = tc.Name
		}
		for _, tr := range results {
			messages = append(messages, models.Message{
				Role:       models.RoleTool,
				Content:    tr.Content,
				ToolCallID: tr.ToolCallID,
			})
			if !o.send(ctx, out, Event{Type: EventToolCallCompleted, ToolCallID: tr.ToolCallID, ToolName: byID[tr.ToolCallID]}) {
				return
			}
		}
		iterationsLeft--
	}
}

// streamOneRoundTrip opens a single stream_query call, forwards token
// deltas as they arrive, and returns the accumulated text plus any
// assembled tool calls from the terminal event.
func (o *Orchestrator) streamOneRoundTrip(ctx context.Context, messages []models.Message, opts providers.Options, toolDefs []providers.ToolDefinition, out chan<- Event) (string, []models.ToolCall, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.provider_stream_query", trace.WithAttributes(attribute.String("provider", o.provider.Name())))
	defer span.End()

	events, err := o.provider.StreamQuery(ctx, messages, opts, toolDefs)
	if err != nil {
		return "", nil, err
	}

	var text string
	var toolCalls []models.ToolCall
	for ev := range events {
		switch ev.Type {
		case providers.EventTokenDelta:
			text += ev.Token
			if !o.send(ctx, out, Event{Type: EventText, Text: ev.Token}) {
				return text, nil, context.Canceled
			}
		case providers.EventEnd:
			if ev.Err != nil {
				return text, nil, ev.Err
			}
			toolCalls = ev.ToolCalls
		}
	}
	return text, toolCalls, nil
}

// send writes ev to out unless ctx is already done (the client disconnected
// and C11 cancelled the turn), in which case it returns false without
// blocking forever on a consumer that will never read again.
func (o *Orchestrator) send(ctx context.Context, out chan<- Event, ev Event) bool {
	o.metrics.StreamEvents.WithLabelValues(string(ev.Type)).Inc()
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func errEvent(err error) Event {
	kind := errkind.Unknown
	if qe, ok := err.(*QueryError); ok {
		kind = qe.Kind
	}
	return Event{Type: EventErr, ErrorKind: string(kind), Message: err.Error()}
}
