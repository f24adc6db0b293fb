// Package registry implements the function registry (C6): tool
// registration, JSON-Schema argument validation, and per-call timeout
// enforcement around handler execution.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/docassist/internal/errkind"
	"github.com/haasonsaas/docassist/pkg/models"
)

// MaxNameLength bounds a registered tool's name, mirroring the teacher's
// resource-exhaustion guard on tool registration.
const MaxNameLength = 256

// MaxArgumentsBytes bounds a single call's argument payload size.
const MaxArgumentsBytes = 1 << 20 // 1MB

// Handler executes a tool call's already-validated arguments and returns a
// result payload (any JSON-marshalable value) or an error.
type Handler func(ctx context.Context, arguments json.RawMessage) (any, error)

// FunctionDefinition describes a registerable tool: its name, description,
// JSON Schema for arguments, and the handler invoked on Call.
type FunctionDefinition struct {
	Name             string
	Description      string
	ParametersSchema json.RawMessage
	Handler          Handler
	// Timeout bounds a single Call invocation of Handler. Zero uses the
	// registry's DefaultTimeout.
	Timeout time.Duration
	// SideEffecting marks a tool whose Call has an observable effect beyond
	// the conversation (e.g. a Git-write tool opening an issue). The
	// orchestrator disables response caching for any turn in which a
	// side-effecting tool is selectable.
	SideEffecting bool
	// Available, if set, gates whether this tool is offered to the
	// provider for a given turn, keyed on caller-supplied options (e.g. a
	// Git tool requires a credential to be present in options). A nil
	// Available means the tool is always offered.
	Available func(options map[string]any) bool
}

// RegistrationError reports a failed Register call (name collision, or an
// invalid ParametersSchema document).
type RegistrationError struct {
	Name string
	Msg  string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register tool %q: %s", e.Name, e.Msg)
}

type registeredTool struct {
	def    FunctionDefinition
	schema *jsonschema.Schema
}

// Result is the structured outcome of Call, rendered into a tool-role
// Message's Content by the caller.
type Result struct {
	OK        bool   `json:"ok"`
	Result    any    `json:"result,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Registry holds the set of callable tools exposed to a provider.
type Registry struct {
	mu             sync.RWMutex
	tools          map[string]*registeredTool
	defaultTimeout time.Duration
}

// New creates an empty Registry. defaultTimeout <= 0 means 30s.
func New(defaultTimeout time.Duration) *Registry {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Registry{tools: make(map[string]*registeredTool), defaultTimeout: defaultTimeout}
}

// Register adds def to the registry. A name collision or an invalid
// ParametersSchema document fails with *RegistrationError.
func (r *Registry) Register(def FunctionDefinition) error {
	if def.Name == "" {
		return &RegistrationError{Name: def.Name, Msg: "name is required"}
	}
	if len(def.Name) > MaxNameLength {
		return &RegistrationError{Name: def.Name, Msg: "name exceeds maximum length"}
	}
	if def.Handler == nil {
		return &RegistrationError{Name: def.Name, Msg: "handler is required"}
	}

	schema, err := compileSchema(def.Name, def.ParametersSchema)
	if err != nil {
		return &RegistrationError{Name: def.Name, Msg: err.Error()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return &RegistrationError{Name: def.Name, Msg: "a tool with this name is already registered"}
	}
	r.tools[def.Name] = &registeredTool{def: def, schema: schema}
	return nil
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{"type":"object"}`)
	}
	compiler := jsonschema.NewCompiler()
	resource := "mem://" + name + ".json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("invalid parameters_schema: %w", err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters_schema: %w", err)
	}
	return schema, nil
}

// Get returns the FunctionDefinition registered under name, if any.
func (r *Registry) Get(name string) (FunctionDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return FunctionDefinition{}, false
	}
	return t.def, true
}

// Unregister removes a tool by name, if present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// List returns the FunctionDefinition for every registered tool, for
// exposure to a provider as callable tools.
func (r *Registry) List() []FunctionDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]FunctionDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.def)
	}
	return out
}

// Selected returns the FunctionDefinitions whose Available gate (if any)
// passes for options, per spec.md §4.8 step 4's "capability flags declared
// per tool" selection rule.
func (r *Registry) Selected(options map[string]any) []FunctionDefinition {
	all := r.List()
	out := make([]FunctionDefinition, 0, len(all))
	for _, def := range all {
		if def.Available == nil || def.Available(options) {
			out = append(out, def)
		}
	}
	return out
}

// Call validates arguments against the named tool's schema, then invokes
// its handler under a per-call timeout. Argument validation failures never
// invoke the handler and return error_kind=invalid_arguments. An unknown
// tool name returns error_kind=tool_not_found. A handler panic or deadline
// is recovered and surfaced as tool_execution/tool_timeout, never
// propagated to the caller as a Go panic.
func (r *Registry) Call(ctx context.Context, name string, arguments json.RawMessage) Result {
	if len(arguments) > MaxArgumentsBytes {
		return Result{ErrorKind: string(errkind.InvalidArguments), Message: "arguments exceed maximum size"}
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Result{ErrorKind: string(errkind.ToolNotFound), Message: "tool not found: " + name}
	}

	var decoded any
	if len(arguments) == 0 {
		decoded = map[string]any{}
	} else if err := json.Unmarshal(arguments, &decoded); err != nil {
		return Result{ErrorKind: string(errkind.InvalidArguments), Message: "arguments are not valid JSON: " + err.Error()}
	}
	if err := tool.schema.Validate(decoded); err != nil {
		return Result{ErrorKind: string(errkind.InvalidArguments), Message: err.Error()}
	}

	timeout := tool.def.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return r.invoke(callCtx, tool.def, arguments)
}

// invoke runs handler, converting a panic or a context deadline into a
// structured Result instead of letting either escape to the caller.
func (r *Registry) invoke(ctx context.Context, def FunctionDefinition, arguments json.RawMessage) Result {
	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("tool panic: %v", rec)}
			}
		}()
		v, err := def.Handler(ctx, arguments)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return Result{ErrorKind: string(errkind.ToolExecution), Message: o.err.Error()}
		}
		return Result{OK: true, Result: o.value}
	case <-ctx.Done():
		return Result{ErrorKind: string(errkind.ToolTimeout), Message: "tool call exceeded its timeout"}
	}
}

// CallOrdered runs Call for every entry of calls concurrently and returns
// the results in the original calls order, each written back at its
// originating index. C8 calls it once per tool-call batch so it never
// manages goroutines directly.
func (r *Registry) CallOrdered(ctx context.Context, calls []models.ToolCall) []models.ToolResult {
	results := make([]models.ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call models.ToolCall) {
			defer wg.Done()
			res := r.Call(ctx, call.Name, call.Arguments)
			results[i] = toMessageResult(call.ID, res)
		}(i, call)
	}
	wg.Wait()
	return results
}

func toMessageResult(toolCallID string, res Result) models.ToolResult {
	payload, err := json.Marshal(res)
	content := string(payload)
	if err != nil {
		content = res.Message
	}
	return models.ToolResult{
		ToolCallID: toolCallID,
		Content:    content,
		IsError:    !res.OK,
		ErrorKind:  res.ErrorKind,
	}
}
