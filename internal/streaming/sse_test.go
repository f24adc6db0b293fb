package streaming

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/docassist/internal/orchestrator"
)

func TestWriter_Pump_RendersEventsAsDataFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec, time.Second)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	events := make(chan orchestrator.Event, 4)
	events <- orchestrator.Event{Type: orchestrator.EventText, Text: "hel"}
	events <- orchestrator.Event{Type: orchestrator.EventText, Text: "lo"}
	events <- orchestrator.Event{Type: orchestrator.EventDone}
	close(events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sw.Pump(ctx, events, cancel); err != nil {
		t.Fatalf("Pump() error = %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	lines := dataLines(t, rec.Body.String())
	want := []string{`{"text":"hel"}`, `{"text":"lo"}`, `{"done":true}`}
	if len(lines) != len(want) {
		t.Fatalf("got %d data lines, want %d: %v", len(lines), len(want), lines)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestWriter_Pump_RendersToolCallAndTurnBoundaryFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec, time.Second)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	events := make(chan orchestrator.Event, 4)
	events <- orchestrator.Event{Type: orchestrator.EventToolCallStarted, ToolCallID: "call_1", ToolName: "sentiment_snapshot"}
	events <- orchestrator.Event{Type: orchestrator.EventToolCallCompleted, ToolCallID: "call_1", ToolName: "sentiment_snapshot"}
	events <- orchestrator.Event{Type: orchestrator.EventTurnBoundary}
	events <- orchestrator.Event{Type: orchestrator.EventDone}
	close(events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sw.Pump(ctx, events, cancel); err != nil {
		t.Fatalf("Pump() error = %v", err)
	}

	lines := dataLines(t, rec.Body.String())
	want := []string{
		`{"tool_call_started":true,"id":"call_1","name":"sentiment_snapshot"}`,
		`{"tool_call_completed":true,"id":"call_1","name":"sentiment_snapshot"}`,
		`{"turn_boundary":true}`,
		`{"done":true}`,
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d data lines, want %d: %v", len(lines), len(want), lines)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestWriter_Pump_RendersErrorFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec, time.Second)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	events := make(chan orchestrator.Event, 1)
	events <- orchestrator.Event{Type: orchestrator.EventErr, ErrorKind: "provider_timeout", Message: "upstream timed out"}
	close(events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sw.Pump(ctx, events, cancel); err != nil {
		t.Fatalf("Pump() error = %v", err)
	}

	lines := dataLines(t, rec.Body.String())
	want := `{"error":true,"kind":"provider_timeout","message":"upstream timed out"}`
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("lines = %v, want [%q]", lines, want)
	}
}

func TestNewWriter_RejectsNonFlushingResponseWriter(t *testing.T) {
	if _, err := NewWriter(&nonFlushingWriter{header: make(http.Header)}, time.Second); err == nil {
		t.Fatalf("expected an error for a ResponseWriter that can't Flush")
	}
}

// nonFlushingWriter implements http.ResponseWriter but deliberately does not
// implement http.Flusher, exercising NewWriter's type-assertion failure path.
type nonFlushingWriter struct {
	header http.Header
}

func (w *nonFlushingWriter) Header() http.Header         { return w.header }
func (w *nonFlushingWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *nonFlushingWriter) WriteHeader(int)             {}

func dataLines(t *testing.T, body string) []string {
	t.Helper()
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") {
			lines = append(lines, strings.TrimPrefix(line, "data: "))
		}
	}
	return lines
}
