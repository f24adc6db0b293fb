package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/haasonsaas/docassist/internal/errkind"
	"github.com/haasonsaas/docassist/pkg/models"
)

func echoDef(name string) FunctionDefinition {
	return FunctionDefinition{
		Name:             name,
		Description:      "echoes its query argument",
		ParametersSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			return map[string]string{"echoed": in.Query}, nil
		},
	}
}

func TestRegistry_RegisterDuplicateName(t *testing.T) {
	r := New(0)
	if err := r.Register(echoDef("search")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	err := r.Register(echoDef("search"))
	if err == nil {
		t.Fatalf("expected error registering duplicate name")
	}
}

func TestRegistry_Call_Success(t *testing.T) {
	r := New(0)
	if err := r.Register(echoDef("search")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res := r.Call(context.Background(), "search", json.RawMessage(`{"query":"hello"}`))
	if !res.OK {
		t.Fatalf("expected OK result, got %+v", res)
	}
}

func TestRegistry_Call_UnknownTool(t *testing.T) {
	r := New(0)
	res := r.Call(context.Background(), "does-not-exist", json.RawMessage(`{}`))
	if res.OK || res.ErrorKind != string(errkind.ToolNotFound) {
		t.Errorf("Call() = %+v, want error_kind=%s", res, errkind.ToolNotFound)
	}
}

func TestRegistry_Call_InvalidArgumentsNeverInvokesHandler(t *testing.T) {
	r := New(0)
	invoked := false
	def := echoDef("search")
	def.Handler = func(ctx context.Context, args json.RawMessage) (any, error) {
		invoked = true
		return nil, nil
	}
	if err := r.Register(def); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res := r.Call(context.Background(), "search", json.RawMessage(`{}`)) // missing required "query"
	if res.OK || res.ErrorKind != string(errkind.InvalidArguments) {
		t.Errorf("Call() = %+v, want error_kind=%s", res, errkind.InvalidArguments)
	}
	if invoked {
		t.Errorf("handler must not run when argument validation fails")
	}
}

func TestRegistry_Call_Timeout(t *testing.T) {
	r := New(0)
	def := FunctionDefinition{
		Name:             "slow",
		ParametersSchema: json.RawMessage(`{"type":"object"}`),
		Timeout:          10 * time.Millisecond,
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	if err := r.Register(def); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res := r.Call(context.Background(), "slow", json.RawMessage(`{}`))
	if res.OK || res.ErrorKind != string(errkind.ToolTimeout) {
		t.Errorf("Call() = %+v, want error_kind=%s", res, errkind.ToolTimeout)
	}
}

func TestRegistry_Call_HandlerPanicRecovered(t *testing.T) {
	r := New(0)
	def := FunctionDefinition{
		Name:             "panics",
		ParametersSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			panic("boom")
		},
	}
	if err := r.Register(def); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res := r.Call(context.Background(), "panics", json.RawMessage(`{}`))
	if res.OK || res.ErrorKind != string(errkind.ToolExecution) {
		t.Errorf("Call() = %+v, want error_kind=%s", res, errkind.ToolExecution)
	}
}

func TestRegistry_Selected_FiltersByAvailableGate(t *testing.T) {
	r := New(0)
	pure := echoDef("pure")
	gated := echoDef("gated")
	gated.SideEffecting = true
	gated.Available = func(options map[string]any) bool {
		_, ok := options["credential"]
		return ok
	}
	if err := r.Register(pure); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(gated); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	without := r.Selected(map[string]any{})
	if len(without) != 1 || without[0].Name != "pure" {
		t.Errorf("Selected(no credential) = %+v, want only [pure]", without)
	}

	with := r.Selected(map[string]any{"credential": "token"})
	names := map[string]bool{}
	for _, d := range with {
		names[d.Name] = true
	}
	if !names["pure"] || !names["gated"] {
		t.Errorf("Selected(with credential) = %+v, want both pure and gated", with)
	}
}

func TestRegistry_Get(t *testing.T) {
	r := New(0)
	if err := r.Register(echoDef("search")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, ok := r.Get("search"); !ok {
		t.Errorf("Get(%q) ok = false, want true", "search")
	}
	if _, ok := r.Get("missing"); ok {
		t.Errorf("Get(%q) ok = true, want false", "missing")
	}
}

func TestRegistry_CallOrdered_PreservesOrder(t *testing.T) {
	r := New(0)
	for _, name := range []string{"a", "b", "c"} {
		def := echoDef(name)
		if err := r.Register(def); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}

	calls := []models.ToolCall{
		{ID: "1", Name: "a", Arguments: json.RawMessage(`{"query":"x"}`)},
		{ID: "2", Name: "b", Arguments: json.RawMessage(`{"query":"y"}`)},
		{ID: "3", Name: "c", Arguments: json.RawMessage(`{"query":"z"}`)},
	}
	results := r.CallOrdered(context.Background(), calls)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"1", "2", "3"} {
		if results[i].ToolCallID != want {
			t.Errorf("results[%d].ToolCallID = %q, want %q", i, results[i].ToolCallID, want)
		}
	}
}
