package httpapi

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haasonsaas/docassist/internal/orchestrator"
	"github.com/haasonsaas/docassist/internal/promptbuilder"
	"github.com/haasonsaas/docassist/internal/providers"
	"github.com/haasonsaas/docassist/internal/registry"
	"github.com/haasonsaas/docassist/internal/templates"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := templates.NewStore(templates.Defaults())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	store.SetDefault("generic")

	prov := providers.NewMock(providers.MockConfig{})
	reg := registry.New(0)
	builder := promptbuilder.New(store, 0)
	orch := orchestrator.New(prov, reg, nil, builder, orchestrator.Config{})
	return New(orch, reg, store, prov, nil)
}

func TestHandleQuery_ReturnsResponse(t *testing.T) {
	s := newTestServer(t)
	body := strings.NewReader(`{"prompt":"hello there"}`)
	req := httptest.NewRequest(http.MethodPost, "/llm/query", body)
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec.Code, rec.Body.String())
	}
	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded["content"] == "" {
		t.Errorf("expected non-empty content in response")
	}
}

func TestHandleQuery_RejectsMissingPrompt(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/llm/query", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var decoded errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if decoded.ErrorKind != "invalid_request" {
		t.Errorf("ErrorKind = %q, want invalid_request", decoded.ErrorKind)
	}
}

func TestHandleTemplates_ListsCatalog(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/llm/templates", nil)
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var decoded struct {
		Templates []templates.Template `json:"templates"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(decoded.Templates) != len(templates.Defaults()) {
		t.Errorf("got %d templates, want %d", len(decoded.Templates), len(templates.Defaults()))
	}
}

func TestHandleCapabilities_ReportsMockProvider(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/llm/capabilities", nil)
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded["provider"] != "mock" {
		t.Errorf("provider = %v, want mock", decoded["provider"])
	}
}

func TestHandleStream_EmitsSSEFrames(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/llm/stream", strings.NewReader(`{"prompt":"hello there"}`))
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	sawDone := false
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"done":true`) {
			sawDone = true
		}
	}
	if !sawDone {
		t.Errorf("expected a {done:true} frame in the stream, got body = %q", rec.Body.String())
	}
}
